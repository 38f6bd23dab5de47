package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinygems/tinygems/internal/event"
	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/provider"
)

// DefaultMaxCandidates is how many ranked candidates a platform keeps.
const DefaultMaxCandidates = 5

// Publisher receives session lifecycle events. *event.Bus satisfies it.
type Publisher interface {
	Publish(e event.Event)
}

// Resolver creates sessions wired to a shared search coordinator, adapter
// registry and profile store.
type Resolver struct {
	searcher      Searcher
	adapters      AdapterSource
	platforms     []provider.Platform
	store         Store
	scorer        *match.Scorer
	maxCandidates int
	events        Publisher
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore sets where finalized profiles are saved. Without a store,
// Finalize returns the profile without an ID.
func WithStore(s Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithScorer replaces the default candidate scorer.
func WithScorer(s *match.Scorer) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithMaxCandidates caps the ranked candidates kept per platform.
func WithMaxCandidates(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCandidates = n
		}
	}
}

// WithPublisher sets the event sink for session lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(r *Resolver) { r.events = p }
}

// NewResolver creates a Resolver over the configured platforms, which are
// taken from the registry in canonical order.
func NewResolver(coordinator *provider.Coordinator, registry *provider.Registry, logger *slog.Logger, opts ...Option) *Resolver {
	return newResolver(coordinator, registry, registry.Platforms(), logger, opts...)
}

func newResolver(searcher Searcher, adapters AdapterSource, platforms []provider.Platform, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		searcher:      searcher,
		adapters:      adapters,
		platforms:     platforms,
		scorer:        match.NewScorer(match.DefaultWeights()),
		maxCandidates: DefaultMaxCandidates,
		logger:        logger.With(slog.String("component", "resolve")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start classifies the seed input and opens a session. A plain name seeds
// the session directly. A recognized profile URL is resolved first; the
// resulting artist seeds the session and its platform starts out connected.
func (r *Resolver) Start(ctx context.Context, input string) (*Session, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptySeed
	}
	ref, err := identity.Classify(input)
	if err != nil {
		return nil, err
	}
	if ref.Kind == identity.KindName {
		return r.NewSession(Seed{Input: input, Name: ref.Text}), nil
	}

	adapter := r.adapters.Get(ref.Platform)
	if adapter == nil {
		return nil, unknownPlatform(ref.Platform)
	}
	data, err := adapter.ResolveFromURL(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("resolving seed url: %w", err)
	}

	s := r.NewSession(Seed{Input: input, Name: data.Name, Metadata: data.Metadata})
	s.mu.Lock()
	slot, ok := s.slots[ref.Platform]
	if ok {
		s.markConnected(slot, *data)
	}
	s.mu.Unlock()
	if !ok {
		s.Abandon()
		return nil, unknownPlatform(ref.Platform)
	}
	s.emit(event.PlatformConnected, map[string]any{
		"platform":  string(ref.Platform),
		"artist_id": data.PlatformID,
	})
	return s, nil
}

// NewSession opens a session for an already known seed with every platform
// idle.
func (r *Resolver) NewSession(seed Seed) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	s := &Session{
		id:            id,
		createdAt:     time.Now().UTC(),
		seed:          seed,
		order:         append([]provider.Platform(nil), r.platforms...),
		searcher:      r.searcher,
		adapters:      r.adapters,
		scorer:        r.scorer,
		store:         r.store,
		maxCandidates: r.maxCandidates,
		events:        r.events,
		logger:        r.logger.With(slog.String("session", id)),
		ctx:           ctx,
		cancel:        cancel,
		slots:         make(map[provider.Platform]*platformSlot, len(r.platforms)),
	}
	for _, p := range r.platforms {
		s.slots[p] = &platformSlot{state: PlatformState{Platform: p, Status: StatusIdle}}
	}
	s.logger.Info("session started", slog.String("seed", seed.Name))
	s.emit(event.SessionCreated, map[string]any{"seed": seed.Name})
	return s
}
