package soundcloud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const searchFixture = `{
  "collection": [
    {
      "id": 1234,
      "kind": "user",
      "username": "Test Artist SC",
      "permalink": "testartistsc",
      "permalink_url": "https://soundcloud.com/testartistsc",
      "avatar_url": "https://i1.sndcdn.com/avatars-000-abc-large.jpg",
      "city": "Leeds",
      "country_code": "GB",
      "description": "noise from leeds",
      "followers_count": 120,
      "track_count": 14
    }
  ],
  "total_results": 1
}`

const resolveFixture = `{
  "id": 1234,
  "kind": "user",
  "username": "Test Artist SC",
  "permalink": "testartistsc",
  "permalink_url": "https://soundcloud.com/testartistsc",
  "avatar_url": "",
  "city": "",
  "country_code": "GB",
  "followers_count": 120,
  "track_count": 14
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != "test-client" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search/users":
			if r.URL.Query().Get("q") == "nobody" {
				w.Write([]byte(`{"collection":[],"total_results":0}`))
				return
			}
			w.Write([]byte(searchFixture))
		case "/resolve":
			switch r.URL.Query().Get("url") {
			case "https://soundcloud.com/testartistsc":
				w.Write([]byte(resolveFixture))
			case "https://soundcloud.com/playlistowner":
				w.Write([]byte(`{"id": 99, "kind": "playlist"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL, clientID string) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(provider.NewRateLimiterMap(), clientID, logger, baseURL)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-client")

	results, err := a.Search(context.Background(), "Test Artist")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.Platform != provider.SoundCloud || got.PlatformID != "1234" || got.Name != "Test Artist SC" {
		t.Errorf("got %+v", got)
	}
	if got.AvatarURL != "https://i1.sndcdn.com/avatars-000-abc-t500x500.jpg" {
		t.Errorf("avatar = %q", got.AvatarURL)
	}
	if got.Metadata.Location != "Leeds, GB" {
		t.Errorf("location = %q", got.Metadata.Location)
	}
	if s := got.Audience[provider.SoundCloud]; s.Followers != 120 || s.Tracks != 14 {
		t.Errorf("audience = %+v", s)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-client")

	results, err := a.Search(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearchRejectedClientID(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "wrong")

	_, err := a.Search(context.Background(), "Test Artist")
	var pu *provider.ErrPlatformUnavailable
	if !errors.As(err, &pu) || pu.Platform != provider.SoundCloud {
		t.Errorf("err = %v, want ErrPlatformUnavailable", err)
	}
}

func TestResolveFromURL(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-client")

	got, err := a.ResolveFromURL(context.Background(), "soundcloud.com/testartistsc/")
	if err != nil {
		t.Fatalf("ResolveFromURL: %v", err)
	}
	if got.PlatformID != "1234" || got.Metadata.Location != "GB" {
		t.Errorf("got %+v", got)
	}

	tests := []struct {
		name  string
		url   string
		check func(error) bool
	}{
		{"unknown user", "https://soundcloud.com/nobodyhere", func(err error) bool {
			var e *provider.ErrNotFound
			return errors.As(err, &e)
		}},
		{"not a user", "https://soundcloud.com/playlistowner", func(err error) bool {
			var e *provider.ErrNotFound
			return errors.As(err, &e)
		}},
		{"track url", "https://soundcloud.com/testartistsc/some-track", func(err error) bool {
			var e *identity.InvalidURLError
			return errors.As(err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ResolveFromURL(context.Background(), tt.url); !tt.check(err) {
				t.Errorf("err = %v, unexpected", err)
			}
		})
	}
}
