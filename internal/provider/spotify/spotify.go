// Package spotify implements the Spotify Web API adapter.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const (
	defaultBaseURL  = "https://api.spotify.com"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	searchLimit     = 10
)

// Credentials are the app credentials for the client-credentials flow.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Adapter implements provider.Adapter for the Spotify Web API. Requests are
// authorized with an app token from the client-credentials flow; the token
// is cached and refreshed by the oauth2 transport.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Spotify adapter against the public API.
func New(limiter *provider.RateLimiterMap, creds Credentials, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, creds, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom API and token
// endpoints (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, creds Credentials, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	base := &http.Client{Timeout: 10 * time.Second}
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
	}
	client := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	client.Timeout = 10 * time.Second

	return &Adapter{
		client:  client,
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.Spotify))),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Platform returns provider.Spotify.
func (a *Adapter) Platform() provider.Platform { return provider.Spotify }

// Search returns artists matching query, best match first as ranked by
// Spotify.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {query},
		"type":  {"artist"},
		"limit": {fmt.Sprint(searchLimit)},
	}
	body, err := a.get(ctx, "/v1/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(fmt.Errorf("parsing search response: %w", err))
	}

	results := make([]provider.ArtistData, 0, len(resp.Artists.Items))
	for _, item := range resp.Artists.Items {
		results = append(results, toArtistData(item))
	}

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL fetches the artist an open.spotify.com artist URL points at.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.Spotify, rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.get(ctx, "/v1/artists/"+url.PathEscape(ref.PlatformArtistID))
	if err != nil {
		// Spotify answers 400 "invalid id" for ids that are not base62.
		if code, ok := provider.HTTPStatus(err); ok && code == http.StatusBadRequest {
			return nil, &provider.ErrNotFound{Platform: provider.Spotify, ID: ref.PlatformArtistID}
		}
		return nil, err
	}

	var artist artistObject
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, unavailable(fmt.Errorf("parsing artist response: %w", err))
	}
	if artist.ID == "" {
		return nil, &provider.ErrNotFound{Platform: provider.Spotify, ID: ref.PlatformArtistID}
	}
	data := toArtistData(artist)
	return &data, nil
}

func (a *Adapter) get(ctx context.Context, path string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.Spotify); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return provider.Fetch(ctx, a.client, req, provider.Spotify, a.logger)
}

func toArtistData(o artistObject) provider.ArtistData {
	link := o.ExternalURLs.Spotify
	if link == "" {
		link = "https://open.spotify.com/artist/" + o.ID
	}
	return provider.ArtistData{
		Platform:   provider.Spotify,
		PlatformID: o.ID,
		Name:       o.Name,
		URL:        link,
		AvatarURL:  largestImage(o.Images),
		Audience: map[provider.Platform]provider.AudienceStats{
			provider.Spotify: {Followers: o.Followers.Total, Popularity: o.Popularity},
		},
		Metadata: provider.ArtistMetadata{Genres: o.Genres},
	}
}

func largestImage(images []image) string {
	if len(images) == 0 {
		return ""
	}
	best := images[0]
	for _, img := range images[1:] {
		if img.Width*img.Height > best.Width*best.Height {
			best = img
		}
	}
	return best.URL
}

func unavailable(err error) error {
	return &provider.ErrPlatformUnavailable{Platform: provider.Spotify, Cause: err}
}
