package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/tinygems/tinygems/internal/provider"
)

func TestClassifyValidURLs(t *testing.T) {
	tests := []struct {
		input    string
		platform provider.Platform
		id       string
	}{
		{"https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb", provider.Spotify, "4Z8W4fKeB5YxbusRsdQVPb"},
		{"https://spotify.com/artist/abc123", provider.Spotify, "abc123"},
		{"https://open.spotify.com/intl-de/artist/abc123?si=xyz", provider.Spotify, "abc123"},
		{"open.spotify.com/artist/abc123", provider.Spotify, "abc123"},
		{"https://soundcloud.com/some-artist", provider.SoundCloud, "some-artist"},
		{"https://www.soundcloud.com/some_artist/", provider.SoundCloud, "some_artist"},
		{"https://www.youtube.com/channel/UC1234abcd", provider.YouTube, "UC1234abcd"},
		{"https://youtube.com/c/SomeArtist", provider.YouTube, "c/SomeArtist"},
		{"https://www.youtube.com/@someartist", provider.YouTube, "@someartist"},
		{"https://someartist.bandcamp.com", provider.Bandcamp, "someartist"},
		{"https://some-artist.bandcamp.com/album/first", provider.Bandcamp, "some-artist"},
		{"https://tidal.com/artist/3995478", provider.Tidal, "3995478"},
		{"https://listen.tidal.com/browse/artist/3995478", provider.Tidal, "3995478"},
		{"https://music.apple.com/us/artist/some-artist/1234567890", provider.AppleMusic, "1234567890"},
		{"https://music.apple.com/artist/some-artist/42", provider.AppleMusic, "42"},
		{"HTTP://OPEN.SPOTIFY.COM/artist/abc", provider.Spotify, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := Classify(tt.input)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if ref.Kind != KindURL {
				t.Fatalf("Kind = %q, want url", ref.Kind)
			}
			if ref.Platform != tt.platform {
				t.Errorf("Platform = %q, want %q", ref.Platform, tt.platform)
			}
			if ref.PlatformArtistID != tt.id {
				t.Errorf("PlatformArtistID = %q, want %q", ref.PlatformArtistID, tt.id)
			}
			if !strings.HasPrefix(ref.URL, "https://") {
				t.Errorf("URL = %q, want https canonical form", ref.URL)
			}
		})
	}
}

func TestClassifyNames(t *testing.T) {
	inputs := []string{
		"not-a-valid-url",
		"Test Artist",
		"  Björk  ",
		"Mr. Bungle",
		"https://example.com/artist/1",
		"example.org",
		"",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			ref, err := Classify(in)
			if err != nil {
				t.Fatalf("Classify(%q): %v", in, err)
			}
			if ref.Kind != KindName {
				t.Errorf("Kind = %q, want name", ref.Kind)
			}
			if ref.Text != strings.TrimSpace(in) {
				t.Errorf("Text = %q, want %q", ref.Text, strings.TrimSpace(in))
			}
		})
	}
}

func TestClassifyInvalidURLs(t *testing.T) {
	tests := []struct {
		input    string
		platform provider.Platform
	}{
		{"https://open.spotify.com/album/abc123", provider.Spotify},
		{"https://open.spotify.com/artist/", provider.Spotify},
		{"https://www.spotify.com/artist/abc", provider.Spotify},
		{"https://soundcloud.com/artist/track-name", provider.SoundCloud},
		{"https://soundcloud.com/discover", provider.SoundCloud},
		{"https://soundcloud.com/", provider.SoundCloud},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", provider.YouTube},
		{"https://music.youtube.com/channel/UC1", provider.YouTube},
		{"https://bandcamp.com/someartist", provider.Bandcamp},
		{"https://www.bandcamp.com", provider.Bandcamp},
		{"https://tidal.com/browse/album/123", provider.Tidal},
		{"https://tidal.com/artist/abc", provider.Tidal},
		{"https://music.apple.com/us/album/x/123", provider.AppleMusic},
		{"https://music.apple.com/us/artist/name/notnumeric", provider.AppleMusic},
		{"ftp://open.spotify.com/artist/abc", provider.Spotify},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Classify(tt.input)
			var invalid *InvalidURLError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want InvalidURLError", err)
			}
			if invalid.Platform != tt.platform {
				t.Errorf("Platform = %q, want %q", invalid.Platform, tt.platform)
			}
			msg := invalid.Error()
			if !strings.Contains(msg, tt.platform.DisplayName()) || !strings.Contains(msg, "Example: ") {
				t.Errorf("message %q lacks platform name or example", msg)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	in := "https://open.spotify.com/artist/abc123"
	a, errA := Classify(in)
	b, errB := Classify(in)
	if errA != nil || errB != nil || a != b {
		t.Errorf("Classify not deterministic: %+v/%v vs %+v/%v", a, errA, b, errB)
	}
}

func TestExample(t *testing.T) {
	for _, p := range []provider.Platform{provider.Spotify, provider.SoundCloud, provider.YouTube, provider.Bandcamp, provider.Tidal, provider.AppleMusic} {
		ex := Example(p)
		ref, err := Classify(ex)
		if err != nil || ref.Platform != p {
			t.Errorf("example for %s (%q) does not classify back: %+v, %v", p, ex, ref, err)
		}
	}
}

func TestParseFor(t *testing.T) {
	ref, err := ParseFor(provider.Tidal, "https://listen.tidal.com/artist/123")
	if err != nil {
		t.Fatalf("ParseFor: %v", err)
	}
	if ref.PlatformArtistID != "123" {
		t.Errorf("id = %q, want 123", ref.PlatformArtistID)
	}

	for _, in := range []string{"Some Band", "https://open.spotify.com/artist/abc"} {
		_, err := ParseFor(provider.Tidal, in)
		var e *InvalidURLError
		if !errors.As(err, &e) || e.Platform != provider.Tidal {
			t.Errorf("ParseFor(tidal, %q) err = %v, want InvalidURLError for tidal", in, err)
		}
	}
}
