package provider

import (
	"context"
	"strings"
)

// SearchCache stores adapter search results keyed by platform and query.
// Implementations must be safe for concurrent use.
type SearchCache interface {
	// Get returns the cached results and true on a hit.
	Get(ctx context.Context, p Platform, query string) ([]ArtistData, bool, error)
	// Set stores results for the platform and query.
	Set(ctx context.Context, p Platform, query string, results []ArtistData) error
}

// CacheKey builds the cache key for a platform search. Queries differing only
// in case or surrounding whitespace share a key.
func CacheKey(p Platform, query string) string {
	return "search:" + string(p) + ":" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
