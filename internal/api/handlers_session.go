package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/resolve"
)

// session looks up the {id} path session, writing 404 when it is unknown.
func (r *Router) session(w http.ResponseWriter, req *http.Request) (*resolve.Session, bool) {
	s, ok := r.sessions.Get(req.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// platform parses the {platform} path value. Unknown names are reported as
// unconfigured platforms.
func (r *Router) platform(w http.ResponseWriter, req *http.Request) (provider.Platform, bool) {
	p, ok := provider.ParsePlatform(req.PathValue("platform"))
	if !ok || p == provider.Other {
		r.writeErr(w, req, fmt.Errorf("%w: %s", resolve.ErrUnknownPlatform, req.PathValue("platform")))
		return "", false
	}
	return p, true
}

func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Input string `json:"input"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	s, err := r.resolver.Start(req.Context(), body.Input)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	r.sessions.Add(s)
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (r *Router) handleAbandonSession(w http.ResponseWriter, req *http.Request) {
	if !r.sessions.Remove(req.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleSearchAll(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	snap, err := s.SearchAll(req.Context())
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (r *Router) handleSearchPlatform(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	p, ok := r.platform(w, req)
	if !ok {
		return
	}
	state, err := s.StartSearch(req.Context(), p)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (r *Router) handleConnect(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	p, ok := r.platform(w, req)
	if !ok {
		return
	}
	var target resolve.ConnectTarget
	if !decodeJSON(w, req, &target) {
		return
	}
	state, err := s.Connect(req.Context(), p, target)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (r *Router) handleDisconnect(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	p, ok := r.platform(w, req)
	if !ok {
		return
	}
	state, err := s.Disconnect(p)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (r *Router) handleFinalize(w http.ResponseWriter, req *http.Request) {
	s, ok := r.session(w, req)
	if !ok {
		return
	}
	var overrides resolve.Overrides
	if !decodeJSON(w, req, &overrides) {
		return
	}
	profile, err := s.Finalize(req.Context(), overrides)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	r.sessions.Remove(s.ID())
	r.logger.Info("artist profile created",
		slog.String("profile_id", profile.ID),
		slog.String("name", profile.Name))
	writeJSON(w, http.StatusCreated, profile)
}
