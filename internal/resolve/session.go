// Package resolve drives a single artist-resolution session: per-platform
// search state, user connect and disconnect decisions, and finalizing the
// confirmed identities into one merged artist profile.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tinygems/tinygems/internal/event"
	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/provider"
)

// Status is the lifecycle state of one platform within a session.
type Status string

// Platform statuses.
const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusFound     Status = "found"
	StatusNotFound  Status = "not-found"
	StatusError     Status = "error"
)

// PlatformState is the externally visible state of one platform.
type PlatformState struct {
	Platform      provider.Platform    `json:"platform"`
	Status        Status               `json:"status"`
	Candidates    []match.Candidate    `json:"candidates"`
	ConnectedData *provider.ArtistData `json:"connected_data,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Connected reports whether the user confirmed an identity on this platform.
func (s PlatformState) Connected() bool {
	return s.Status == StatusFound && s.ConnectedData != nil
}

func (s PlatformState) clone() PlatformState {
	out := s
	out.Candidates = slices.Clone(s.Candidates)
	if s.ConnectedData != nil {
		d := *s.ConnectedData
		out.ConnectedData = &d
	}
	return out
}

// Seed describes the artist the session is resolving.
type Seed struct {
	Input    string                  `json:"input"`
	Name     string                  `json:"name"`
	Metadata provider.ArtistMetadata `json:"metadata"`
}

// ConnectTarget selects what to connect: one of the platform's candidates by
// ID, or a profile URL pasted by the user. CandidateID wins when both are set.
type ConnectTarget struct {
	CandidateID string `json:"candidate_id,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID        string          `json:"id"`
	Seed      Seed            `json:"seed"`
	Platforms []PlatformState `json:"platforms"`
	Closed    bool            `json:"closed"`
	ProfileID string          `json:"profile_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Searcher runs platform searches. *provider.Coordinator satisfies it.
type Searcher interface {
	SearchPlatform(ctx context.Context, p provider.Platform, query string) provider.PlatformResult
	FindOn(ctx context.Context, query string, platforms []provider.Platform) ([]provider.PlatformResult, error)
}

// AdapterSource looks up the adapter for a platform. *provider.Registry
// satisfies it.
type AdapterSource interface {
	Get(p provider.Platform) provider.Adapter
}

// Store persists finalized profiles and returns the assigned ID.
type Store interface {
	Save(ctx context.Context, p *Profile) (string, error)
}

type platformSlot struct {
	state PlatformState
	// gen increases on every transition; an in-flight search only applies
	// its result if gen is unchanged.
	gen uint64
	// op serializes connect and disconnect on the platform.
	op sync.Mutex
}

// Session tracks the resolution of one artist across every configured
// platform. All methods are safe for concurrent use. Operations on different
// platforms run independently; connect and disconnect on the same platform
// are serialized and the last one applied wins.
type Session struct {
	id        string
	createdAt time.Time
	seed      Seed
	order     []provider.Platform

	searcher      Searcher
	adapters      AdapterSource
	scorer        *match.Scorer
	store         Store
	maxCandidates int
	events        Publisher
	logger        *slog.Logger

	// ctx is canceled when the session closes, aborting in-flight work.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	slots      map[provider.Platform]*platformSlot
	closed     bool
	finalizing bool
	profileID  string
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Seed returns the artist being resolved.
func (s *Session) Seed() Seed { return s.seed }

// CreatedAt returns when the session started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Platforms returns the session's platforms in canonical order.
func (s *Session) Platforms() []provider.Platform { return slices.Clone(s.order) }

// State returns a copy of one platform's state.
func (s *Session) State(p provider.Platform) (PlatformState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[p]
	if !ok {
		return PlatformState{}, false
	}
	return slot.state.clone(), true
}

// Snapshot returns a copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		Seed:      s.seed,
		Platforms: make([]PlatformState, 0, len(s.order)),
		Closed:    s.closed,
		ProfileID: s.profileID,
		CreatedAt: s.createdAt,
	}
	for _, p := range s.order {
		snap.Platforms = append(snap.Platforms, s.slots[p].state.clone())
	}
	return snap
}

// Closed reports whether the session was abandoned or finalized.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StartSearch searches one platform for the seed name. Calling it while the
// platform is already searching is a no-op that returns the current state.
// A platform holding a connected identity must be disconnected first.
// Adapter failures do not fail the call; they land in the platform's state.
func (s *Session) StartSearch(ctx context.Context, p provider.Platform) (PlatformState, error) {
	gen, started, err := s.beginSearch(p)
	if err != nil || !started {
		return s.stateOrZero(p), err
	}

	opCtx, done := s.opContext(ctx)
	defer done()
	res := s.searcher.SearchPlatform(opCtx, p, s.seed.Name)
	s.applyResult(p, gen, res.Artists, res.Err)
	return s.stateOrZero(p), nil
}

// SearchAll starts a search on every platform that is idle, not-found or in
// error, concurrently, and returns the resulting snapshot.
func (s *Session) SearchAll(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if err := s.mutableLocked("search"); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	var targets []provider.Platform
	gens := make(map[provider.Platform]uint64)
	for _, p := range s.order {
		slot := s.slots[p]
		switch slot.state.Status {
		case StatusIdle, StatusNotFound, StatusError:
			gens[p] = s.toSearching(slot)
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return s.Snapshot(), nil
	}

	opCtx, done := s.opContext(ctx)
	defer done()
	results, err := s.searcher.FindOn(opCtx, s.seed.Name, targets)
	if err != nil {
		for _, p := range targets {
			s.applyResult(p, gens[p], nil, err)
		}
		return s.Snapshot(), nil
	}
	for _, r := range results {
		s.applyResult(r.Platform, gens[r.Platform], r.Artists, r.Err)
	}
	return s.Snapshot(), nil
}

// ReceiveResults records a completed search for a platform that is
// searching. The artists are scored against the seed; the platform moves to
// found with the top candidates, or to not-found when there are none.
func (s *Session) ReceiveResults(p provider.Platform, artists []provider.ArtistData) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	slot, ok := s.slots[p]
	if !ok {
		s.mu.Unlock()
		return unknownPlatform(p)
	}
	if slot.state.Status != StatusSearching {
		from := slot.state.Status
		s.mu.Unlock()
		return transitionError("receive results for", p, from)
	}
	gen := slot.gen
	s.mu.Unlock()

	s.applyResult(p, gen, artists, nil)
	return nil
}

// Connect confirms an identity on a platform, either a candidate from the
// last search or a pasted profile URL. On failure the platform state is left
// unchanged. Connecting an already connected platform replaces the identity.
func (s *Session) Connect(ctx context.Context, p provider.Platform, target ConnectTarget) (PlatformState, error) {
	slot, err := s.slot(p)
	if err != nil {
		return PlatformState{}, err
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	if target.CandidateID != "" {
		return s.connectCandidate(p, slot, target.CandidateID)
	}
	if target.URL == "" {
		return PlatformState{}, ErrEmptyTarget
	}

	if err := s.checkConnectable(p, slot); err != nil {
		return PlatformState{}, err
	}
	data, err := s.resolveURL(ctx, p, target.URL)
	if err != nil {
		s.logger.Info("connect by url failed", slog.String("platform", string(p)), slog.String("error", err.Error()))
		return PlatformState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked("connect"); err != nil {
		return PlatformState{}, err
	}
	s.markConnected(slot, *data)
	s.logger.Info("platform connected", slog.String("platform", string(p)), slog.String("artist_id", data.PlatformID))
	s.emitConnected(p, data.PlatformID)
	return slot.state.clone(), nil
}

// Disconnect discards the confirmed identity and the candidates of a found
// platform, returning it to idle so it can be searched again.
func (s *Session) Disconnect(p provider.Platform) (PlatformState, error) {
	slot, err := s.slot(p)
	if err != nil {
		return PlatformState{}, err
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked("disconnect"); err != nil {
		return PlatformState{}, err
	}
	if slot.state.Status != StatusFound {
		return PlatformState{}, transitionError("disconnect", p, slot.state.Status)
	}
	slot.gen++
	slot.state = PlatformState{Platform: p, Status: StatusIdle}
	s.logger.Info("platform disconnected", slog.String("platform", string(p)))
	s.emit(event.PlatformDisconnected, map[string]any{"platform": string(p)})
	return slot.state.clone(), nil
}

// Finalize merges every connected identity into a profile and persists it.
// It fails with ErrInsufficientData when nothing is connected and with a
// *StorageError when saving fails; in both cases the session is unchanged.
// A successful Finalize closes the session.
func (s *Session) Finalize(ctx context.Context, overrides Overrides) (*Profile, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.finalizing {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: finalize already in progress", ErrInvalidTransition)
	}
	connected := s.connectedLocked()
	if len(connected) == 0 {
		s.mu.Unlock()
		return nil, ErrInsufficientData
	}
	s.finalizing = true
	s.mu.Unlock()

	profile := BuildProfile(connected, overrides, time.Now().UTC())

	if s.store != nil {
		id, err := s.store.Save(ctx, profile)
		if err != nil {
			s.mu.Lock()
			s.finalizing = false
			s.mu.Unlock()
			s.logger.Error("saving profile failed", slog.String("error", err.Error()))
			return nil, &StorageError{Cause: err}
		}
		profile.ID = id
	}

	s.mu.Lock()
	s.finalizing = false
	s.closed = true
	s.profileID = profile.ID
	s.mu.Unlock()
	s.cancel()

	s.logger.Info("profile finalized",
		slog.String("profile_id", profile.ID),
		slog.Int("platforms", len(connected)),
		slog.Float64("combined_popularity", profile.CombinedPopularity))
	s.emit(event.ProfileFinalized, map[string]any{
		"profile_id":          profile.ID,
		"name":                profile.Name,
		"combined_popularity": profile.CombinedPopularity,
	})
	return profile, nil
}

// Abandon closes the session without saving. In-flight searches are
// canceled and their results discarded. Abandoning twice is harmless.
func (s *Session) Abandon() {
	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	if !wasClosed {
		s.logger.Info("session abandoned")
		s.emit(event.SessionAbandoned, nil)
	}
}

func (s *Session) slot(p provider.Platform) (*platformSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	slot, ok := s.slots[p]
	if !ok {
		return nil, unknownPlatform(p)
	}
	return slot, nil
}

func (s *Session) stateOrZero(p provider.Platform) PlatformState {
	st, _ := s.State(p)
	return st
}

// beginSearch moves p to searching. started is false when a search is
// already running.
func (s *Session) beginSearch(p provider.Platform) (gen uint64, started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked("search"); err != nil {
		return 0, false, err
	}
	slot, ok := s.slots[p]
	if !ok {
		return 0, false, unknownPlatform(p)
	}
	switch slot.state.Status {
	case StatusSearching:
		return 0, false, nil
	case StatusFound:
		return 0, false, transitionError("search", p, slot.state.Status)
	}
	return s.toSearching(slot), true, nil
}

// mutableLocked reports whether platform state may change. Connected
// identities are frozen while Finalize saves them. Must be called with s.mu
// held.
func (s *Session) mutableLocked(op string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.finalizing {
		return fmt.Errorf("%w: cannot %s while finalizing", ErrInvalidTransition, op)
	}
	return nil
}

// toSearching must be called with s.mu held.
func (s *Session) toSearching(slot *platformSlot) uint64 {
	slot.gen++
	slot.state = PlatformState{Platform: slot.state.Platform, Status: StatusSearching}
	return slot.gen
}

// applyResult lands a search outcome if the platform is still in the search
// that produced it. Late results for closed sessions or superseded searches
// are dropped.
func (s *Session) applyResult(p provider.Platform, gen uint64, artists []provider.ArtistData, searchErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[p]
	if !ok || s.closed || slot.gen != gen || slot.state.Status != StatusSearching {
		s.logger.Debug("discarding stale search result", slog.String("platform", string(p)))
		return
	}
	slot.gen++
	if searchErr != nil {
		slot.state = PlatformState{Platform: p, Status: StatusError, Error: searchErr.Error()}
		s.logger.Warn("platform search failed", slog.String("platform", string(p)), slog.String("error", searchErr.Error()))
		return
	}
	candidates := s.scorer.Rank(s.matchSeedLocked(), artists, s.maxCandidates)
	status := StatusFound
	if len(candidates) == 0 {
		status = StatusNotFound
	}
	slot.state = PlatformState{Platform: p, Status: status, Candidates: candidates}
	s.emit(event.PlatformSearched, map[string]any{
		"platform":   string(p),
		"status":     string(status),
		"candidates": len(candidates),
	})
	s.logger.Debug("platform search complete",
		slog.String("platform", string(p)),
		slog.String("status", string(status)),
		slog.Int("candidates", len(candidates)))
}

func (s *Session) checkConnectable(p provider.Platform, slot *platformSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked("connect"); err != nil {
		return err
	}
	if slot.state.Status == StatusSearching {
		return transitionError("connect", p, slot.state.Status)
	}
	return nil
}

func (s *Session) connectCandidate(p provider.Platform, slot *platformSlot, id string) (PlatformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked("connect"); err != nil {
		return PlatformState{}, err
	}
	if slot.state.Status == StatusSearching {
		return PlatformState{}, transitionError("connect", p, slot.state.Status)
	}
	i := slices.IndexFunc(slot.state.Candidates, func(c match.Candidate) bool { return c.ArtistID == id })
	if i < 0 {
		return PlatformState{}, fmt.Errorf("%w: %s/%s", ErrUnknownCandidate, p, id)
	}
	s.markConnected(slot, slot.state.Candidates[i].Data)
	s.logger.Info("platform connected", slog.String("platform", string(p)), slog.String("artist_id", id))
	s.emitConnected(p, id)
	return slot.state.clone(), nil
}

// markConnected must be called with s.mu held.
func (s *Session) markConnected(slot *platformSlot, data provider.ArtistData) {
	slot.gen++
	slot.state.Status = StatusFound
	slot.state.ConnectedData = &data
	slot.state.Error = ""
}

func (s *Session) resolveURL(ctx context.Context, p provider.Platform, rawURL string) (*provider.ArtistData, error) {
	ref, err := identity.ParseFor(p, rawURL)
	if err != nil {
		return nil, err
	}
	adapter := s.adapters.Get(p)
	if adapter == nil {
		return nil, unknownPlatform(p)
	}
	opCtx, done := s.opContext(ctx)
	defer done()
	return adapter.ResolveFromURL(opCtx, ref.URL)
}

// opContext returns a context canceled when either ctx or the session ends.
func (s *Session) opContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) connectedLocked() []provider.ArtistData {
	var out []provider.ArtistData
	for _, p := range s.order {
		if st := s.slots[p].state; st.Connected() {
			out = append(out, *st.ConnectedData)
		}
	}
	return out
}

func (s *Session) matchSeedLocked() match.Seed {
	seed := match.Seed{
		Name:     s.seed.Name,
		Genres:   s.seed.Metadata.Genres,
		Location: s.seed.Metadata.Location,
	}
	for _, d := range s.connectedLocked() {
		if d.URL != "" {
			seed.ConnectedURLs = append(seed.ConnectedURLs, d.URL)
		}
	}
	return seed
}

func (s *Session) emitConnected(p provider.Platform, artistID string) {
	s.emit(event.PlatformConnected, map[string]any{
		"platform":  string(p),
		"artist_id": artistID,
	})
}

// emit publishes a lifecycle event tagged with the session ID. Publish never
// blocks, so it is safe to call with s.mu held.
func (s *Session) emit(t event.Type, data map[string]any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["session_id"] = s.id
	s.events.Publish(event.Event{Type: t, Data: data})
}
