// Package bandcamp implements a Bandcamp adapter. Bandcamp has no public
// artist API, so search results and artist pages are scraped.
package bandcamp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const (
	defaultSearchURL = "https://bandcamp.com/search"
	maxResults       = 10
)

// Adapter implements provider.Adapter for Bandcamp.
type Adapter struct {
	client    *http.Client
	limiter   *provider.RateLimiterMap
	logger    *slog.Logger
	searchURL string
	// pageBase, when set, replaces https://<sub>.bandcamp.com with
	// pageBase/<sub> for artist page fetches.
	pageBase string
}

// New creates a Bandcamp adapter against bandcamp.com.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultSearchURL, "")
}

// NewWithBaseURL creates a Bandcamp adapter with a custom search URL and
// artist page base (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, searchURL, pageBase string) *Adapter {
	return &Adapter{
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   limiter,
		logger:    logger.With(slog.String("provider", string(provider.Bandcamp))),
		searchURL: searchURL,
		pageBase:  strings.TrimRight(pageBase, "/"),
	}
}

// Platform returns provider.Bandcamp.
func (a *Adapter) Platform() provider.Platform { return provider.Bandcamp }

// Search scrapes Bandcamp's artist search results page.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{"q": {query}, "item_type": {"b"}}
	doc, err := a.fetchDocument(ctx, a.searchURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	results := make([]provider.ArtistData, 0, maxResults)
	doc.Find("li.searchresult").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if t := strings.TrimSpace(li.Find(".itemtype").Text()); t != "" && !strings.EqualFold(t, "artist") {
			return true
		}
		if d, ok := parseSearchResult(li); ok {
			results = append(results, d)
		}
		return len(results) < maxResults
	})

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL scrapes the artist page of a <sub>.bandcamp.com URL.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.Bandcamp, rawURL)
	if err != nil {
		return nil, err
	}
	sub := ref.PlatformArtistID

	pageURL := "https://" + sub + ".bandcamp.com/"
	if a.pageBase != "" {
		pageURL = a.pageBase + "/" + sub
	}
	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	d := parseArtistPage(doc, sub)
	if d.Name == "" {
		return nil, &provider.ErrNotFound{Platform: provider.Bandcamp, ID: sub}
	}
	return &d, nil
}

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := a.limiter.Wait(ctx, provider.Bandcamp); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	body, err := provider.Fetch(ctx, a.client, req, provider.Bandcamp, a.logger)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ErrPlatformUnavailable{
			Platform: provider.Bandcamp,
			Cause:    fmt.Errorf("parsing page: %w", err),
		}
	}
	return doc, nil
}

func parseSearchResult(li *goquery.Selection) (provider.ArtistData, bool) {
	heading := li.Find(".heading a").First()
	name := strings.TrimSpace(heading.Text())
	href, _ := heading.Attr("href")
	if href == "" {
		href = strings.TrimSpace(li.Find(".itemurl a").First().Text())
	}
	sub, link := artistHost(href)
	if name == "" || sub == "" {
		return provider.ArtistData{}, false
	}

	img, _ := li.Find(".art img").First().Attr("src")
	genre := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(li.Find(".genre").Text()), "genre:"))
	var genres []string
	if genre != "" {
		genres = append(genres, genre)
	}
	tags := strings.TrimPrefix(strings.TrimSpace(li.Find(".tags").Text()), "tags:")
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			genres = append(genres, tag)
		}
	}

	return provider.ArtistData{
		Platform:   provider.Bandcamp,
		PlatformID: sub,
		Name:       name,
		URL:        link,
		AvatarURL:  img,
		Metadata: provider.ArtistMetadata{
			Genres:   genres,
			Location: strings.TrimSpace(li.Find(".subhead").Text()),
		},
	}, true
}

func parseArtistPage(doc *goquery.Document, sub string) provider.ArtistData {
	name := strings.TrimSpace(doc.Find("#band-name-location .title").First().Text())
	if name == "" {
		name, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		name = strings.TrimSpace(name)
	}
	avatar, _ := doc.Find(`meta[property="og:image"]`).Attr("content")

	links := make(map[provider.Platform]string)
	doc.Find("#band-links a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		p := provider.Other
		if ref, err := identity.Classify(href); err == nil && ref.Kind == identity.KindURL {
			p = ref.Platform
		}
		if _, seen := links[p]; !seen && p != provider.Bandcamp {
			links[p] = href
		}
	})
	if len(links) == 0 {
		links = nil
	}

	return provider.ArtistData{
		Platform:   provider.Bandcamp,
		PlatformID: sub,
		Name:       name,
		URL:        "https://" + sub + ".bandcamp.com",
		AvatarURL:  avatar,
		Links:      links,
		Metadata: provider.ArtistMetadata{
			Description: strings.TrimSpace(doc.Find("#bio-text").First().Text()),
			Location:    strings.TrimSpace(doc.Find("#band-name-location .location").First().Text()),
		},
	}
}

// artistHost extracts the artist subdomain and canonical profile URL from a
// search result link. Links off bandcamp.com yield an empty subdomain.
func artistHost(href string) (sub, link string) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", ""
	}
	host := strings.ToLower(u.Hostname())
	sub, ok := strings.CutSuffix(host, ".bandcamp.com")
	if !ok || sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return "", ""
	}
	return sub, "https://" + host
}
