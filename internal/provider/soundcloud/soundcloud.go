// Package soundcloud implements the SoundCloud API v2 adapter.
package soundcloud

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
	defaultBaseURL = "https://api-v2.soundcloud.com"
	searchLimit    = 10
)

// Adapter implements provider.Adapter for SoundCloud. Every request carries
// the configured client_id.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	logger   *slog.Logger
	clientID string
	baseURL  string
}

// New creates a SoundCloud adapter against the public API.
func New(limiter *provider.RateLimiterMap, clientID string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, clientID, logger, defaultBaseURL)
}

// NewWithBaseURL creates a SoundCloud adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, clientID string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		logger:   logger.With(slog.String("provider", string(provider.SoundCloud))),
		clientID: clientID,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Platform returns provider.SoundCloud.
func (a *Adapter) Platform() provider.Platform { return provider.SoundCloud }

// Search returns SoundCloud users matching query.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.ArtistData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	body, err := a.get(ctx, "/search/users", url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(searchLimit)},
	})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unavailable(fmt.Errorf("parsing search response: %w", err))
	}

	results := make([]provider.ArtistData, 0, len(resp.Collection))
	for _, u := range resp.Collection {
		results = append(results, toArtistData(u))
	}

	a.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// ResolveFromURL resolves a soundcloud.com profile URL to its user.
func (a *Adapter) ResolveFromURL(ctx context.Context, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(provider.SoundCloud, rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.get(ctx, "/resolve", url.Values{"url": {ref.URL}})
	if err != nil {
		return nil, err
	}

	var u user
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, unavailable(fmt.Errorf("parsing resolve response: %w", err))
	}
	if u.Kind != "user" || u.ID == 0 {
		return nil, &provider.ErrNotFound{Platform: provider.SoundCloud, ID: ref.PlatformArtistID}
	}
	data := toArtistData(u)
	return &data, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.SoundCloud); err != nil {
		return nil, err
	}
	params.Set("client_id", a.clientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return provider.Fetch(ctx, a.client, req, provider.SoundCloud, a.logger)
}

func toArtistData(u user) provider.ArtistData {
	name := u.Username
	if name == "" {
		name = u.FullName
	}
	link := u.PermalinkURL
	if link == "" && u.Permalink != "" {
		link = "https://soundcloud.com/" + u.Permalink
	}
	return provider.ArtistData{
		Platform:   provider.SoundCloud,
		PlatformID: strconv.FormatInt(u.ID, 10),
		Name:       name,
		URL:        link,
		AvatarURL:  largeAvatar(u.AvatarURL),
		Audience: map[provider.Platform]provider.AudienceStats{
			provider.SoundCloud: {Followers: u.FollowersCount, Tracks: u.TrackCount},
		},
		Metadata: provider.ArtistMetadata{
			Description: u.Description,
			Location:    location(u.City, u.CountryCode),
		},
	}
}

// largeAvatar swaps SoundCloud's default 100px artwork for the 500px variant.
func largeAvatar(u string) string {
	return strings.Replace(u, "-large.", "-t500x500.", 1)
}

func location(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

func unavailable(err error) error {
	return &provider.ErrPlatformUnavailable{Platform: provider.SoundCloud, Cause: err}
}
