package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPlatformTimeout bounds a single adapter search.
const DefaultPlatformTimeout = 8 * time.Second

// PlatformResult is one platform's answer to a cross-platform search.
// Exactly one of Artists (possibly empty) or Err is meaningful.
type PlatformResult struct {
	Platform Platform      `json:"platform"`
	Artists  []ArtistData  `json:"artists"`
	Err      error         `json:"-"`
	Cached   bool          `json:"cached,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the platform search errored or timed out.
func (r PlatformResult) Failed() bool { return r.Err != nil }

// Coordinator fans a search out to every configured adapter concurrently.
type Coordinator struct {
	registry *Registry
	cache    SearchCache
	timeout  time.Duration
	logger   *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPlatformTimeout sets the per-adapter timeout.
func WithPlatformTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSearchCache makes the coordinator consult and fill cache.
func WithSearchCache(cache SearchCache) CoordinatorOption {
	return func(c *Coordinator) { c.cache = cache }
}

// NewCoordinator creates a Coordinator over the adapters in registry.
func NewCoordinator(registry *Registry, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		registry: registry,
		timeout:  DefaultPlatformTimeout,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Platforms returns the configured platforms in canonical order.
func (c *Coordinator) Platforms() []Platform {
	return c.registry.Platforms()
}

// FindAcrossPlatforms searches every configured adapter for query. The
// result has one entry per configured adapter, in canonical platform order,
// whether that adapter succeeded, failed, or timed out.
//
// If ctx is canceled before all adapters answer, the collected results are
// discarded and ctx.Err() is returned.
func (c *Coordinator) FindAcrossPlatforms(ctx context.Context, query string) ([]PlatformResult, error) {
	return c.FindOn(ctx, query, c.registry.Platforms())
}

// FindOn is FindAcrossPlatforms restricted to the given platforms. Platforms
// without a configured adapter yield an *ErrAuthRequired entry.
func (c *Coordinator) FindOn(ctx context.Context, query string, platforms []Platform) ([]PlatformResult, error) {
	ordered := canonicalOrder(platforms)
	results := make([]PlatformResult, len(ordered))

	var g errgroup.Group
	g.SetLimit(max(len(ordered), 1))
	for i, p := range ordered {
		g.Go(func() error {
			results[i] = c.SearchPlatform(ctx, p, query)
			return nil
		})
	}
	_ = g.Wait() // per-platform failures are carried in the results

	if err := ctx.Err(); err != nil {
		c.logger.Debug("search abandoned, discarding results",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil, err
	}
	return results, nil
}

// SearchPlatform runs a single adapter search bounded by the per-platform
// timeout. It never returns a Go error; failures land in PlatformResult.Err.
func (c *Coordinator) SearchPlatform(ctx context.Context, p Platform, query string) PlatformResult {
	start := time.Now()
	res := PlatformResult{Platform: p}

	a := c.registry.Get(p)
	if a == nil {
		res.Err = &ErrAuthRequired{Platform: p}
		return res
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, p, query)
		if err != nil {
			c.logger.Warn("search cache read failed",
				slog.String("platform", string(p)),
				slog.String("error", err.Error()))
		} else if ok {
			res.Artists = cached
			res.Cached = true
			res.Duration = time.Since(start)
			return res
		}
	}

	artists, err := c.callWithTimeout(ctx, a, query)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		c.logger.Warn("platform search failed",
			slog.String("platform", string(p)),
			slog.Duration("duration", res.Duration),
			slog.String("error", err.Error()))
		return res
	}
	if artists == nil {
		artists = []ArtistData{}
	}
	res.Artists = artists

	if c.cache != nil {
		if err := c.cache.Set(ctx, p, query, artists); err != nil {
			c.logger.Warn("search cache write failed",
				slog.String("platform", string(p)),
				slog.String("error", err.Error()))
		}
	}
	return res
}

type searchOutcome struct {
	artists []ArtistData
	err     error
}

// callWithTimeout runs the adapter in its own goroutine so an adapter that
// ignores its context still cannot hold up the join past the timeout.
func (c *Coordinator) callWithTimeout(ctx context.Context, a Adapter, query string) ([]ArtistData, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan searchOutcome, 1)
	go func() {
		artists, err := a.Search(callCtx, query)
		done <- searchOutcome{artists: artists, err: err}
	}()

	select {
	case out := <-done:
		var notFound *ErrNotFound
		if errors.As(out.err, &notFound) {
			return []ArtistData{}, nil
		}
		if out.err != nil {
			return nil, asUnavailable(a.Platform(), out.err)
		}
		return out.artists, nil
	case <-callCtx.Done():
		return nil, &ErrPlatformUnavailable{
			Platform: a.Platform(),
			Cause:    fmt.Errorf("search timed out: %w", callCtx.Err()),
		}
	}
}

// asUnavailable keeps typed adapter errors and wraps anything else.
func asUnavailable(p Platform, err error) error {
	var unavailable *ErrPlatformUnavailable
	var notFound *ErrNotFound
	var authRequired *ErrAuthRequired
	if errors.As(err, &unavailable) || errors.As(err, &notFound) || errors.As(err, &authRequired) {
		return err
	}
	return &ErrPlatformUnavailable{Platform: p, Cause: err}
}

// canonicalOrder de-duplicates platforms and sorts them by priority.
func canonicalOrder(platforms []Platform) []Platform {
	seen := make(map[Platform]bool, len(platforms))
	for _, p := range platforms {
		seen[p] = true
	}
	out := make([]Platform, 0, len(seen))
	for _, p := range AllPlatforms() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
