// Package cache provides a Redis-backed provider.SearchCache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tinygems/tinygems/internal/provider"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 15 * time.Minute

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis stores search results as JSON strings with a fixed TTL.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

var _ provider.SearchCache = (*Redis)(nil)

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// New wraps client as a search cache. A zero ttl means DefaultTTL.
func New(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, prefix: "tinygems:"}
}

// Get returns cached results for the platform and query.
func (r *Redis) Get(ctx context.Context, p provider.Platform, query string) ([]provider.ArtistData, bool, error) {
	val, err := r.client.Get(ctx, r.key(p, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading search cache: %w", err)
	}

	var artists []provider.ArtistData
	if err := json.Unmarshal(val, &artists); err != nil {
		// A corrupt entry counts as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return artists, true, nil
}

// Set stores results for the platform and query. Empty result sets are
// cached too, so repeated misses do not hit the platform.
func (r *Redis) Set(ctx context.Context, p provider.Platform, query string, results []provider.ArtistData) error {
	if results == nil {
		results = []provider.ArtistData{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding search results: %w", err)
	}
	if err := r.client.Set(ctx, r.key(p, query), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing search cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached results for the platform and query.
func (r *Redis) Invalidate(ctx context.Context, p provider.Platform, query string) error {
	if err := r.client.Del(ctx, r.key(p, query)).Err(); err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	return nil
}

func (r *Redis) key(p provider.Platform, query string) string {
	return r.prefix + provider.CacheKey(p, query)
}
