package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tinygems/tinygems/internal/resolve"
)

// DefaultSessionTTL is how long an untouched session stays reachable.
const DefaultSessionTTL = 2 * time.Hour

type sessionEntry struct {
	session  *resolve.Session
	lastUsed time.Time
}

// SessionRegistry keeps the live resolution sessions the API drives, keyed
// by session ID. Idle sessions are abandoned and dropped after a TTL.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionRegistry creates an empty registry. A zero ttl means
// DefaultSessionTTL.
func NewSessionRegistry(ttl time.Duration, logger *slog.Logger) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "session-registry")),
	}
}

// Add registers s.
func (r *SessionRegistry) Add(s *resolve.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = &sessionEntry{session: s, lastUsed: r.now()}
}

// Get returns the session with id and refreshes its idle timer.
func (r *SessionRegistry) Get(id string) (*resolve.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

// Remove abandons and drops the session with id, reporting whether it existed.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.session.Abandon()
	}
	return ok
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep abandons sessions idle longer than the TTL and drops closed ones.
// It returns how many were removed.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*resolve.Session

	r.mu.Lock()
	for id, e := range r.sessions {
		if e.session.Closed() || e.lastUsed.Before(cutoff) {
			expired = append(expired, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Abandon()
	}
	if len(expired) > 0 {
		r.logger.Debug("swept sessions", slog.Int("removed", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is canceled, then abandons every
// remaining session.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			remaining := r.sessions
			r.sessions = make(map[string]*sessionEntry)
			r.mu.Unlock()
			for _, e := range remaining {
				e.session.Abandon()
			}
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
