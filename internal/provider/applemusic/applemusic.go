// Package applemusic implements an Apple Music adapter over the keyless
// iTunes Search API.
package applemusic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
)

const (
	defaultBaseURL = "https://itunes.apple.com"
	defaultCountry = "us"
	searchLimit    = 10
)

// searchResponse is the JSON shape shared by /search and /lookup.
type searchResponse struct {
	ResultCount int      `json:"resultCount"`
	Results     []result `json:"results"`
}

type result struct {
	WrapperType      string `json:"wrapperType"`
	ArtistType       string `json:"artistType"`
	ArtistID         int64  `json:"artistId"`
	ArtistName       string `json:"artistName"`
	ArtistLinkURL    string `json:"artistLinkUrl"`
	PrimaryGenreName string `json:"primaryGenreName"`
}

// Adapter implements provider.Adapter for Apple Music. The iTunes API
// exposes no audience figures or artist images.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	country string
	baseURL string
}

// New creates an Apple Music adapter for the given storefront country.
func New(limiter *provider.RateLimiterMap, country string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, country, logger, defaultBaseURL)
}

// NewWithBaseURL creates an Apple Music adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, country string, logger *slog.Logger, baseURL string) *Adapter {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = defaultCountry
	}
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.AppleMusic))),
		country: country,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Platform returns provider.AppleMusic.
func (a *Adapter) Platform() provider.Platform { return provider.AppleMusic }

// Search returns music artists matching query.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	resp, err := a.get(ctx, "/search", url.Values{
		"term":   {query},
		"entity": {"musicArtist"},
		"limit":  {strconv.Itoa(searchLimit)},
	})
	if err != nil {
		return nil, err
	}

	results := make([]provider.ArtistData, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.WrapperType != "artist" || r.ArtistID == 0 {
			continue
		}
		results = append(results, toArtistData(r))
	}

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL looks up the artist a music.apple.com artist URL points at.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.AppleMusic, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := a.get(ctx, "/lookup", url.Values{"id": {ref.PlatformArtistID}})
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Results {
		if r.WrapperType == "artist" {
			data := toArtistData(r)
			return &data, nil
		}
	}
	return nil, &provider.ErrNotFound{Platform: provider.AppleMusic, ID: ref.PlatformArtistID}
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) (*searchResponse, error) {
	if err := a.limiter.Wait(ctx, provider.AppleMusic); err != nil {
		return nil, err
	}
	params.Set("country", a.country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := provider.Fetch(ctx, a.client, req, provider.AppleMusic, a.logger)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &provider.ErrPlatformUnavailable{
			Platform: provider.AppleMusic,
			Cause:    fmt.Errorf("parsing %s response: %w", strings.TrimPrefix(path, "/"), err),
		}
	}
	return &resp, nil
}

func toArtistData(r result) provider.ArtistData {
	id := strconv.FormatInt(r.ArtistID, 10)
	d := provider.ArtistData{
		Platform:   provider.AppleMusic,
		PlatformID: id,
		Name:       r.ArtistName,
		URL:        stripQuery(r.ArtistLinkURL),
	}
	if d.URL == "" {
		// Apple Music ignores the slug segment but requires one.
		d.URL = "https://music.apple.com/us/artist/_/" + id
	}
	if r.PrimaryGenreName != "" {
		d.Metadata.Genres = []string{r.PrimaryGenreName}
	}
	return d
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
