// Package tidal implements the TIDAL open API (v2) adapter.
package tidal

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
	defaultBaseURL     = "https://openapi.tidal.com/v2"
	defaultTokenURL    = "https://auth.tidal.com/v1/oauth2/token"
	defaultCountryCode = "US"
	mediaType          = "application/vnd.api+json"
)

// Config holds the TIDAL app credentials and catalog country.
type Config struct {
	ClientID     string
	ClientSecret string
	// CountryCode selects the catalog; defaults to US.
	CountryCode string
}

// Adapter implements provider.Adapter for TIDAL.
type Adapter struct {
	client      *http.Client
	limiter     *provider.RateLimiterMap
	logger      *slog.Logger
	countryCode string
	baseURL     string
}

// New creates a TIDAL adapter against the public API.
func New(limiter *provider.RateLimiterMap, cfg Config, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, cfg, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a TIDAL adapter with custom API and token endpoints
// (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, cfg Config, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	base := &http.Client{Timeout: 10 * time.Second}
	client := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	client.Timeout = 10 * time.Second

	country := strings.ToUpper(strings.TrimSpace(cfg.CountryCode))
	if country == "" {
		country = defaultCountryCode
	}
	return &Adapter{
		client:      client,
		limiter:     limiter,
		logger:      logger.With(slog.String("provider", string(provider.Tidal))),
		countryCode: country,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Platform returns provider.Tidal.
func (a *Adapter) Platform() provider.Platform { return provider.Tidal }

// Search returns artists matching query in TIDAL's relevance order.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	path := "/searchResults/" + url.PathEscape(query) + "/relationships/artists"
	body, err := a.get(ctx, path, url.Values{"include": {"artists"}})
	if err != nil {
		return nil, err
	}

	var resp searchArtistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(fmt.Errorf("parsing search response: %w", err))
	}

	byID := make(map[string]artistResource, len(resp.Included))
	for _, inc := range resp.Included {
		if inc.Type == "artists" {
			byID[inc.ID] = inc
		}
	}
	results := make([]provider.ArtistData, 0, len(resp.Data))
	for _, ref := range resp.Data {
		if r, ok := byID[ref.ID]; ok {
			results = append(results, toArtistData(r))
		}
	}

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL fetches the artist a tidal.com artist URL points at.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.Tidal, rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.get(ctx, "/artists/"+url.PathEscape(ref.PlatformArtistID), url.Values{})
	if err != nil {
		return nil, err
	}
	var resp artistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(fmt.Errorf("parsing artist response: %w", err))
	}
	if resp.Data.ID == "" {
		return nil, &provider.ErrNotFound{Platform: provider.Tidal, ID: ref.PlatformArtistID}
	}
	data := toArtistData(resp.Data)
	return &data, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.Tidal); err != nil {
		return nil, err
	}
	params.Set("countryCode", a.countryCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", mediaType)
	return provider.Fetch(ctx, a.client, req, provider.Tidal, a.logger)
}

func toArtistData(r artistResource) provider.ArtistData {
	link := "https://tidal.com/browse/artist/" + r.ID
	for _, l := range r.Attributes.ExternalLinks {
		if l.Meta.Type == "TIDAL_SHARING" && l.Href != "" {
			link = l.Href
			break
		}
	}
	return provider.ArtistData{
		Platform:   provider.Tidal,
		PlatformID: r.ID,
		Name:       r.Attributes.Name,
		URL:        link,
		Audience: map[provider.Platform]provider.AudienceStats{
			provider.Tidal: {Popularity: r.Attributes.Popularity},
		},
	}
}

func unavailable(err error) error {
	return &provider.ErrPlatformUnavailable{Platform: provider.Tidal, Cause: err}
}
