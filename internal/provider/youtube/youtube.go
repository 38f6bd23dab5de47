// Package youtube implements the YouTube Data API v3 adapter. Artists are
// YouTube channels.
package youtube

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
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	searchLimit    = 10
)

// Adapter implements provider.Adapter for YouTube. A search costs one
// search.list call plus one channels.list call for the statistics.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	apiKey  string
	baseURL string
}

// New creates a YouTube adapter against the public API.
func New(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a YouTube adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.YouTube))),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Platform returns provider.YouTube.
func (a *Adapter) Platform() provider.Platform { return provider.YouTube }

// Search returns channels matching query in the API's relevance order.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	body, err := a.get(ctx, "/search", url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"q":          {query},
		"maxResults": {strconv.Itoa(searchLimit)},
	})
	if err != nil {
		return nil, err
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, unavailable(fmt.Errorf("parsing search response: %w", err))
	}

	ids := make([]string, 0, len(sr.Items))
	for _, it := range sr.Items {
		if it.ID.ChannelID != "" {
			ids = append(ids, it.ID.ChannelID)
		}
	}
	if len(ids) == 0 {
		return []provider.ArtistData{}, nil
	}

	channels, err := a.channels(ctx, url.Values{"id": {strings.Join(ids, ",")}})
	if err != nil {
		return nil, err
	}

	// channels.list does not preserve the order of the requested ids.
	byID := make(map[string]channel, len(channels))
	for _, c := range channels {
		byID[c.ID] = c
	}
	results := make([]provider.ArtistData, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			results = append(results, toArtistData(c))
		}
	}

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL resolves /channel/<id>, /@handle and legacy /c/<name> URLs.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.YouTube, rawURL)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	id := ref.PlatformArtistID
	switch {
	case strings.HasPrefix(id, "@"):
		params.Set("forHandle", id)
	case strings.HasPrefix(id, "c/"):
		params.Set("forUsername", strings.TrimPrefix(id, "c/"))
	default:
		params.Set("id", id)
	}

	channels, err := a.channels(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, &provider.ErrNotFound{Platform: provider.YouTube, ID: id}
	}
	data := toArtistData(channels[0])
	return &data, nil
}

func (a *Adapter) channels(ctx context.Context, params url.Values) ([]channel, error) {
	params.Set("part", "snippet,statistics")
	body, err := a.get(ctx, "/channels", params)
	if err != nil {
		return nil, err
	}
	var cr channelsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, unavailable(fmt.Errorf("parsing channels response: %w", err))
	}
	return cr.Items, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.YouTube); err != nil {
		return nil, err
	}
	params.Set("key", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return provider.Fetch(ctx, a.client, req, provider.YouTube, a.logger)
}

func toArtistData(c channel) provider.ArtistData {
	stats := provider.AudienceStats{
		Views:  parseCount(c.Statistics.ViewCount),
		Tracks: parseCount(c.Statistics.VideoCount),
	}
	if !c.Statistics.HiddenSubscriberCount {
		stats.Subscribers = parseCount(c.Statistics.SubscriberCount)
	}

	thumbs := c.Snippet.Thumbnails
	avatar := thumbs.High.URL
	if avatar == "" {
		avatar = thumbs.Medium.URL
	}
	if avatar == "" {
		avatar = thumbs.Default.URL
	}

	return provider.ArtistData{
		Platform:   provider.YouTube,
		PlatformID: c.ID,
		Name:       c.Snippet.Title,
		URL:        "https://www.youtube.com/channel/" + c.ID,
		AvatarURL:  avatar,
		Audience:   map[provider.Platform]provider.AudienceStats{provider.YouTube: stats},
		Metadata: provider.ArtistMetadata{
			Description: c.Snippet.Description,
			Location:    c.Snippet.Country,
		},
	}
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func unavailable(err error) error {
	return &provider.ErrPlatformUnavailable{Platform: provider.YouTube, Cause: err}
}
