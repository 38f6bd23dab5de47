package spotify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const searchFixture = `{
  "artists": {
    "items": [
      {
        "id": "4Z8W4fKeB5YxbusRsdQVPb",
        "name": "Test Artist",
        "type": "artist",
        "external_urls": {"spotify": "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb"},
        "followers": {"total": 5000},
        "genres": ["indie", "shoegaze"],
        "images": [
          {"url": "https://i.scdn.co/image/small", "height": 160, "width": 160},
          {"url": "https://i.scdn.co/image/large", "height": 640, "width": 640}
        ],
        "popularity": 60
      },
      {
        "id": "0abc",
        "name": "Test Artist Tribute",
        "type": "artist",
        "external_urls": {"spotify": ""},
        "followers": {"total": 12},
        "genres": [],
        "images": [],
        "popularity": 1
      }
    ],
    "total": 2
  }
}`

const artistFixture = `{
  "id": "4Z8W4fKeB5YxbusRsdQVPb",
  "name": "Test Artist",
  "type": "artist",
  "external_urls": {"spotify": "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb"},
  "followers": {"total": 5000},
  "genres": ["indie"],
  "images": [{"url": "https://i.scdn.co/image/large", "height": 640, "width": 640}],
  "popularity": 60
}`

func newTestServer(t *testing.T, tokenCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			tokenCalls.Add(1)
			if r.Method != http.MethodPost {
				t.Errorf("token method = %s, want POST", r.Method)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
			return
		}

		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/search":
			if r.URL.Query().Get("type") != "artist" {
				t.Errorf("search type = %q, want artist", r.URL.Query().Get("type"))
			}
			if r.URL.Query().Get("q") == "nobody" {
				w.Write([]byte(`{"artists":{"items":[],"total":0}}`))
				return
			}
			w.Write([]byte(searchFixture))
		case r.URL.Path == "/v1/artists/4Z8W4fKeB5YxbusRsdQVPb":
			w.Write([]byte(artistFixture))
		case r.URL.Path == "/v1/artists/abc":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"status":400,"message":"invalid id"}}`))
		case strings.HasPrefix(r.URL.Path, "/v1/artists/"):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"status":404,"message":"non existing id"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	creds := Credentials{ClientID: "id", ClientSecret: "secret"}
	return NewWithBaseURL(provider.NewRateLimiterMap(), creds, logger, srv.URL, srv.URL+"/api/token")
}

func TestPlatform(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	defer srv.Close()
	if got := newTestAdapter(t, srv).Platform(); got != provider.Spotify {
		t.Errorf("Platform() = %q, want spotify", got)
	}
}

func TestSearch(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	results, err := a.Search(context.Background(), "Test Artist")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	first := results[0]
	if first.Platform != provider.Spotify || first.PlatformID != "4Z8W4fKeB5YxbusRsdQVPb" || first.Name != "Test Artist" {
		t.Errorf("first = %+v", first)
	}
	if first.AvatarURL != "https://i.scdn.co/image/large" {
		t.Errorf("avatar = %q, want largest image", first.AvatarURL)
	}
	stats := first.Audience[provider.Spotify]
	if stats.Followers != 5000 || stats.Popularity == nil || *stats.Popularity != 60 {
		t.Errorf("audience = %+v, want 5000 followers popularity 60", stats)
	}
	if len(first.Metadata.Genres) != 2 {
		t.Errorf("genres = %v", first.Metadata.Genres)
	}

	second := results[1]
	if second.URL != "https://open.spotify.com/artist/0abc" {
		t.Errorf("fallback url = %q", second.URL)
	}
	if second.AvatarURL != "" {
		t.Errorf("avatar = %q, want empty", second.AvatarURL)
	}

	if _, err := a.Search(context.Background(), "Test Artist"); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token requested %d times, want 1 (cached)", n)
	}
}

func TestSearchNoResults(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	results, err := a.Search(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if results, _ := a.Search(context.Background(), "  "); results != nil {
		t.Errorf("blank query = %v, want nil", results)
	}
}

func TestResolveFromURL(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	got, err := a.ResolveFromURL(context.Background(), "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb?si=xyz")
	if err != nil {
		t.Fatalf("ResolveFromURL: %v", err)
	}
	if got.Name != "Test Artist" || got.PlatformID != "4Z8W4fKeB5YxbusRsdQVPb" {
		t.Errorf("got %+v", got)
	}
}

func TestResolveFromURLErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	_, err := a.ResolveFromURL(context.Background(), "https://open.spotify.com/artist/missing")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("missing artist err = %v, want ErrNotFound", err)
	}

	_, err = a.ResolveFromURL(context.Background(), "https://open.spotify.com/artist/abc")
	if !errors.As(err, &nf) {
		t.Errorf("truncated id err = %v, want ErrNotFound", err)
	}
	var unavailable *provider.ErrPlatformUnavailable
	if errors.As(err, &unavailable) {
		t.Errorf("truncated id reported as unavailable: %v", err)
	}

	_, err = a.ResolveFromURL(context.Background(), "https://open.spotify.com/track/abc")
	var inv *identity.InvalidURLError
	if !errors.As(err, &inv) {
		t.Errorf("track url err = %v, want InvalidURLError", err)
	}
}

func TestBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()
	a := newTestAdapter(t, srv)

	_, err := a.Search(context.Background(), "Test Artist")
	var pu *provider.ErrPlatformUnavailable
	if !errors.As(err, &pu) {
		t.Errorf("err = %v, want ErrPlatformUnavailable", err)
	}
}
