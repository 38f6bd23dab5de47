package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per platform (requests per second).
var defaultRateLimits = map[Platform]rate.Limit{
	Spotify:    10,
	SoundCloud: 5,
	YouTube:    5,
	Bandcamp:   1,
	Tidal:      3,
	AppleMusic: 0.3, // iTunes Search API allows roughly 20 calls per minute
}

// RateLimiterMap holds one rate.Limiter per platform. It is shared by every
// session; adapters wait on it before each outbound request.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[Platform]*rate.Limiter
}

// NewRateLimiterMap creates limiters for every platform with a known limit.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[Platform]*rate.Limiter, len(defaultRateLimits)),
	}
	for p, limit := range defaultRateLimits {
		m.limiters[p] = rate.NewLimiter(limit, 1)
	}
	return m
}

// SetLimit overrides the limit for a platform.
func (m *RateLimiterMap) SetLimit(p Platform, limit rate.Limit, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[p] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the limiter for the platform allows a request, or the
// context is canceled. Platforms without a limiter never block.
func (m *RateLimiterMap) Wait(ctx context.Context, p Platform) error {
	m.mu.RLock()
	limiter, ok := m.limiters[p]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return &ErrPlatformUnavailable{Platform: p, Cause: err}
	}
	return nil
}
