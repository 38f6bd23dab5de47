// Package identity classifies user input as a platform artist URL or a
// free-text artist name.
package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tinygems/tinygems/internal/provider"
)

// Kind says whether input was recognized as a platform URL or a plain name.
type Kind string

// Input kinds.
const (
	KindURL  Kind = "url"
	KindName Kind = "name"
)

// Reference is the classified form of a user input.
type Reference struct {
	Kind Kind `json:"kind"`

	// Set when Kind is KindURL.
	Platform         provider.Platform `json:"platform,omitempty"`
	PlatformArtistID string            `json:"platform_artist_id,omitempty"`
	URL              string            `json:"url,omitempty"`

	// Set when Kind is KindName.
	Text string `json:"text,omitempty"`
}

// InvalidURLError reports input that points at a recognized platform host
// but does not have that platform's artist URL shape.
type InvalidURLError struct {
	Platform provider.Platform
	Reason   string
	Example  string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("Invalid %s artist URL: %s. Example: %s", e.Platform.DisplayName(), e.Reason, e.Example)
}

// rule describes one platform's artist URL shape.
type rule struct {
	platform provider.Platform
	example  string
	// hostMatches reports whether host belongs to the platform at all.
	hostMatches func(host string) bool
	// extract validates host+path and returns the artist id, or a reason.
	extract func(host, path string) (id string, reason string)
}

var (
	spotifyPath    = regexp.MustCompile(`^/(?:intl-[a-z]{2}(?:-[a-z]{2})?/)?artist/([A-Za-z0-9]+)/?$`)
	soundcloudPath = regexp.MustCompile(`^/([A-Za-z0-9_-]+)/?$`)
	youtubePath    = regexp.MustCompile(`^/(?:(channel)/([A-Za-z0-9_-]+)|(c)/([A-Za-z0-9_.-]+)|@([A-Za-z0-9_.-]+))/?$`)
	bandcampHost   = regexp.MustCompile(`^([a-z0-9][a-z0-9-]*)\.bandcamp\.com$`)
	tidalPath      = regexp.MustCompile(`^/(?:browse/)?artist/([0-9]+)/?$`)
	appleMusicPath = regexp.MustCompile(`^/(?:[a-z]{2}/)?artist/[^/]+/([0-9]+)/?$`)
)

// soundcloudReserved are top-level SoundCloud paths that are not profiles.
var soundcloudReserved = map[string]bool{
	"discover": true, "search": true, "charts": true, "stream": true,
	"upload": true, "you": true, "feed": true, "messages": true,
	"settings": true, "pages": true, "terms-of-use": true, "mobile": true,
}

var rules = []rule{
	{
		platform:    provider.Spotify,
		example:     "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb",
		hostMatches: domainMatcher("spotify.com"),
		extract: func(host, path string) (string, string) {
			if host != "spotify.com" && host != "open.spotify.com" {
				return "", "host must be open.spotify.com"
			}
			m := spotifyPath.FindStringSubmatch(path)
			if m == nil {
				return "", "path must be /artist/<id>"
			}
			return m[1], ""
		},
	},
	{
		platform:    provider.SoundCloud,
		example:     "https://soundcloud.com/artist-name",
		hostMatches: domainMatcher("soundcloud.com"),
		extract: func(host, path string) (string, string) {
			if host != "soundcloud.com" && host != "www.soundcloud.com" {
				return "", "host must be soundcloud.com"
			}
			m := soundcloudPath.FindStringSubmatch(path)
			if m == nil {
				return "", "path must be /<profile>"
			}
			if soundcloudReserved[strings.ToLower(m[1])] {
				return "", fmt.Sprintf("%q is not a profile", m[1])
			}
			return m[1], ""
		},
	},
	{
		platform:    provider.YouTube,
		example:     "https://www.youtube.com/@artistname",
		hostMatches: domainMatcher("youtube.com"),
		extract: func(host, path string) (string, string) {
			if host != "youtube.com" && host != "www.youtube.com" {
				return "", "host must be youtube.com"
			}
			m := youtubePath.FindStringSubmatch(path)
			if m == nil {
				return "", "path must be /channel/<id>, /c/<name> or /@<handle>"
			}
			switch {
			case m[1] != "":
				return m[2], ""
			case m[3] != "":
				return "c/" + m[4], ""
			default:
				return "@" + m[5], ""
			}
		},
	},
	{
		platform:    provider.Bandcamp,
		example:     "https://artistname.bandcamp.com",
		hostMatches: domainMatcher("bandcamp.com"),
		extract: func(host, _ string) (string, string) {
			m := bandcampHost.FindStringSubmatch(host)
			if m == nil || m[1] == "www" {
				return "", "URL must be <artist>.bandcamp.com"
			}
			return m[1], ""
		},
	},
	{
		platform:    provider.Tidal,
		example:     "https://tidal.com/browse/artist/3995478",
		hostMatches: domainMatcher("tidal.com"),
		extract: func(host, path string) (string, string) {
			if host != "tidal.com" && host != "listen.tidal.com" {
				return "", "host must be tidal.com or listen.tidal.com"
			}
			m := tidalPath.FindStringSubmatch(path)
			if m == nil {
				return "", "path must be /artist/<numeric id> or /browse/artist/<numeric id>"
			}
			return m[1], ""
		},
	},
	{
		platform:    provider.AppleMusic,
		example:     "https://music.apple.com/us/artist/artist-name/1234567890",
		hostMatches: func(host string) bool { return host == "music.apple.com" },
		extract: func(_, path string) (string, string) {
			m := appleMusicPath.FindStringSubmatch(path)
			if m == nil {
				return "", "path must be /<locale>/artist/<name>/<numeric id>"
			}
			return m[1], ""
		},
	},
}

func domainMatcher(domain string) func(string) bool {
	return func(host string) bool {
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
}

// Classify decides whether input is a platform artist URL or a name. Input
// that matches no recognized platform host is a name. Input on a recognized
// host with the wrong shape yields *InvalidURLError.
func Classify(input string) (Reference, error) {
	text := strings.TrimSpace(input)
	u, ok := parseURLish(text)
	if !ok {
		return Reference{Kind: KindName, Text: text}, nil
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	for _, r := range rules {
		if !r.hostMatches(host) {
			continue
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return Reference{}, &InvalidURLError{Platform: r.platform, Reason: "scheme must be https", Example: r.example}
		}
		id, reason := r.extract(host, u.EscapedPath())
		if reason != "" {
			return Reference{}, &InvalidURLError{Platform: r.platform, Reason: reason, Example: r.example}
		}
		return Reference{
			Kind:             KindURL,
			Platform:         r.platform,
			PlatformArtistID: id,
			URL:              canonicalURL(u),
		}, nil
	}
	return Reference{Kind: KindName, Text: text}, nil
}

// ParseFor classifies rawURL and requires it to be an artist URL of platform
// p. Names and other platforms' URLs yield *InvalidURLError for p.
func ParseFor(p provider.Platform, rawURL string) (Reference, error) {
	ref, err := Classify(rawURL)
	if err != nil {
		return Reference{}, err
	}
	if ref.Kind != KindURL || ref.Platform != p {
		return Reference{}, &InvalidURLError{
			Platform: p,
			Reason:   "not a " + p.DisplayName() + " URL",
			Example:  Example(p),
		}
	}
	return ref, nil
}

// Example returns the sample artist URL shown to users for a platform.
func Example(p provider.Platform) string {
	for _, r := range rules {
		if r.platform == p {
			return r.example
		}
	}
	return ""
}

// parseURLish parses text as a URL when it plausibly is one: it has an
// http(s) scheme, or it has no spaces and starts with a host containing a dot.
func parseURLish(text string) (*url.URL, bool) {
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return nil, false
	}
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(text, "://") {
			u, err := url.Parse(text)
			if err != nil || u.Host == "" {
				return nil, false
			}
			return u, true
		}
		host, _, _ := strings.Cut(text, "/")
		if !strings.Contains(host, ".") {
			return nil, false
		}
		text = "https://" + text
	}
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return nil, false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, true
}

// canonicalURL drops query and fragment and forces https.
func canonicalURL(u *url.URL) string {
	c := url.URL{Scheme: "https", Host: strings.ToLower(u.Host), Path: strings.TrimSuffix(u.Path, "/")}
	return c.String()
}
