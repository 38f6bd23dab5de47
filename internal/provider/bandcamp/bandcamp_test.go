package bandcamp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const searchPage = `<!DOCTYPE html>
<html><body>
<ul class="result-items">
  <li class="searchresult data-search">
    <a class="artcont" href="https://testartist.bandcamp.com?from=search&amp;search_item_id=1">
      <div class="art"><img src="https://f4.bcbits.com/img/0001_7.jpg"></div>
    </a>
    <div class="result-info">
      <div class="itemtype">ARTIST</div>
      <div class="heading"><a href="https://testartist.bandcamp.com?from=search&amp;search_item_id=1">Test Artist</a></div>
      <div class="subhead">Glasgow, UK</div>
      <div class="genre">genre: post-rock</div>
      <div class="tags">tags: ambient, drone</div>
      <div class="itemurl"><a href="https://testartist.bandcamp.com">https://testartist.bandcamp.com</a></div>
    </div>
  </li>
  <li class="searchresult data-search">
    <div class="result-info">
      <div class="itemtype">ALBUM</div>
      <div class="heading"><a href="https://testartist.bandcamp.com/album/x">Some Album</a></div>
    </div>
  </li>
  <li class="searchresult data-search">
    <div class="result-info">
      <div class="itemtype">ARTIST</div>
      <div class="heading"><a href="https://www.customdomain.com">Custom Domain Band</a></div>
    </div>
  </li>
  <li class="searchresult data-search">
    <div class="result-info">
      <div class="itemtype">ARTIST</div>
      <div class="heading"><a href="https://testartistsc.bandcamp.com">Test Artist SC</a></div>
    </div>
  </li>
</ul>
</body></html>`

const artistPage = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Test Artist">
<meta property="og:image" content="https://f4.bcbits.com/img/0001_10.jpg">
</head><body>
<p id="band-name-location"><span class="title">Test Artist</span><span class="location secondaryText">Glasgow, UK</span></p>
<div id="bio-container"><p id="bio-text">Slow loud guitars.</p></div>
<ol id="band-links">
  <li><a href="https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb">Spotify</a></li>
  <li><a href="https://testartist.com">testartist.com</a></li>
  <li><a href="https://another.example.org">another</a></li>
</ol>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("item_type") != "b" {
				t.Errorf("item_type = %q, want b", r.URL.Query().Get("item_type"))
			}
			if r.URL.Query().Get("q") == "nobody" {
				w.Write([]byte(`<html><body><ul class="result-items"></ul></body></html>`))
				return
			}
			w.Write([]byte(searchPage))
		case "/pages/testartist":
			w.Write([]byte(artistPage))
		case "/pages/blankpage":
			w.Write([]byte(`<html><body></body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	limiter := provider.NewRateLimiterMap()
	limiter.SetLimit(provider.Bandcamp, rate.Inf, 1)
	return NewWithBaseURL(limiter, logger, srv.URL+"/search", srv.URL+"/pages")
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	results, err := a.Search(context.Background(), "Test Artist")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var ids []string
	for _, r := range results {
		ids = append(ids, r.PlatformID)
	}
	if diff := cmp.Diff([]string{"testartist", "testartistsc"}, ids); diff != "" {
		t.Fatalf("result ids mismatch (-want +got):\n%s", diff)
	}

	got := results[0]
	want := provider.ArtistData{
		Platform:   provider.Bandcamp,
		PlatformID: "testartist",
		Name:       "Test Artist",
		URL:        "https://testartist.bandcamp.com",
		AvatarURL:  "https://f4.bcbits.com/img/0001_7.jpg",
		Metadata: provider.ArtistMetadata{
			Genres:   []string{"post-rock", "ambient", "drone"},
			Location: "Glasgow, UK",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first result mismatch (-want +got):\n%s", diff)
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

	got, err := a.ResolveFromURL(context.Background(), "https://testartist.bandcamp.com/music")
	if err != nil {
		t.Fatalf("ResolveFromURL: %v", err)
	}
	if got.Name != "Test Artist" || got.URL != "https://testartist.bandcamp.com" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata.Location != "Glasgow, UK" || got.Metadata.Description != "Slow loud guitars." {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	wantLinks := map[provider.Platform]string{
		provider.Spotify: "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb",
		provider.Other:   "https://testartist.com",
	}
	if diff := cmp.Diff(wantLinks, got.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFromURLErrors(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv)

	var nf *provider.ErrNotFound
	if _, err := a.ResolveFromURL(context.Background(), "https://gone.bandcamp.com"); !errors.As(err, &nf) {
		t.Errorf("404 page err = %v, want ErrNotFound", err)
	}
	if _, err := a.ResolveFromURL(context.Background(), "https://blankpage.bandcamp.com"); !errors.As(err, &nf) {
		t.Errorf("blank page err = %v, want ErrNotFound", err)
	}
	var inv *identity.InvalidURLError
	if _, err := a.ResolveFromURL(context.Background(), "https://bandcamp.com/discover"); !errors.As(err, &inv) {
		t.Errorf("bare domain err = %v, want InvalidURLError", err)
	}
}

func TestArtistHost(t *testing.T) {
	tests := []struct {
		href, sub, link string
	}{
		{"https://TestArtist.bandcamp.com/?from=search", "testartist", "https://testartist.bandcamp.com"},
		{"https://www.bandcamp.com", "", ""},
		{"https://a.b.bandcamp.com", "", ""},
		{"https://example.com", "", ""},
	}
	for _, tt := range tests {
		sub, link := artistHost(tt.href)
		if sub != tt.sub || link != tt.link {
			t.Errorf("artistHost(%q) = (%q, %q), want (%q, %q)", tt.href, sub, link, tt.sub, tt.link)
		}
	}
}
