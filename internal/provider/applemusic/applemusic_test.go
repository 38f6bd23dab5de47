package applemusic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/time/rate"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const searchFixture = `{
  "resultCount": 3,
  "results": [
    {"wrapperType": "artist", "artistType": "Artist", "artistId": 1234567890, "artistName": "Test Artist",
     "artistLinkUrl": "https://music.apple.com/us/artist/test-artist/1234567890?uo=4", "primaryGenreName": "Alternative"},
    {"wrapperType": "collection", "artistId": 1, "artistName": "Some Album"},
    {"wrapperType": "artist", "artistType": "Artist", "artistId": 42, "artistName": "Test Artist Trio", "artistLinkUrl": ""}
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("country") != "gb" {
			t.Errorf("country = %q, want gb", q.Get("country"))
		}
		// The iTunes API really does answer with text/javascript.
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		switch r.URL.Path {
		case "/search":
			if q.Get("entity") != "musicArtist" {
				t.Errorf("entity = %q, want musicArtist", q.Get("entity"))
			}
			if q.Get("term") == "nobody" {
				w.Write([]byte(`{"resultCount":0,"results":[]}`))
				return
			}
			w.Write([]byte(searchFixture))
		case "/lookup":
			if q.Get("id") == "1234567890" {
				w.Write([]byte(searchFixture))
				return
			}
			w.Write([]byte(`{"resultCount":0,"results":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	limiter := provider.NewRateLimiterMap()
	limiter.SetLimit(provider.AppleMusic, rate.Inf, 1)
	return NewWithBaseURL(limiter, "GB", logger, srv.URL)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	results, err := a.Search(context.Background(), "Test Artist")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (non-artists skipped)", len(results))
	}
	first := results[0]
	if first.PlatformID != "1234567890" || first.URL != "https://music.apple.com/us/artist/test-artist/1234567890" {
		t.Errorf("first = %+v", first)
	}
	if len(first.Metadata.Genres) != 1 || first.Metadata.Genres[0] != "Alternative" {
		t.Errorf("genres = %v", first.Metadata.Genres)
	}
	if results[1].URL != "https://music.apple.com/us/artist/_/42" {
		t.Errorf("fallback url = %q", results[1].URL)
	}
	// The fallback must be a URL Connect accepts for this platform.
	ref, err := identity.ParseFor(provider.AppleMusic, results[1].URL)
	if err != nil {
		t.Fatalf("fallback url not accepted: %v", err)
	}
	if ref.PlatformArtistID != "42" {
		t.Errorf("fallback id = %q, want 42", ref.PlatformArtistID)
	}
	if len(first.Audience) != 0 {
		t.Errorf("audience = %v, want none", first.Audience)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	results, err := a.Search(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestResolveFromURL(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	got, err := a.ResolveFromURL(context.Background(), "https://music.apple.com/gb/artist/test-artist/1234567890")
	if err != nil {
		t.Fatalf("ResolveFromURL: %v", err)
	}
	if got.Name != "Test Artist" {
		t.Errorf("name = %q", got.Name)
	}

	_, err = a.ResolveFromURL(context.Background(), "https://music.apple.com/gb/artist/ghost/999")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
