// Package api exposes artist resolution sessions and stored profiles over
// HTTP as JSON.
package api

import (
	"log/slog"
	"net/http"

	"github.com/tinygems/tinygems/internal/api/middleware"
	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/resolve"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Resolver *resolve.Resolver
	Sessions *SessionRegistry
	Artists  ArtistStore
	Registry *provider.Registry
	// SessionLimiter throttles session creation per client IP. Nil disables it.
	SessionLimiter *middleware.IPRateLimiter
	Logger         *slog.Logger
	BasePath       string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	resolver       *resolve.Resolver
	sessions       *SessionRegistry
	artists        ArtistStore
	registry       *provider.Registry
	sessionLimiter *middleware.IPRateLimiter
	logger         *slog.Logger
	basePath       string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		resolver:       deps.Resolver,
		sessions:       deps.Sessions,
		artists:        deps.Artists,
		registry:       deps.Registry,
		sessionLimiter: deps.SessionLimiter,
		logger:         deps.Logger.With(slog.String("component", "api")),
		basePath:       deps.BasePath,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath + "/api/v1"

	createSession := http.Handler(http.HandlerFunc(r.handleCreateSession))
	if r.sessionLimiter != nil {
		createSession = r.sessionLimiter.Middleware(createSession)
	}

	mux.HandleFunc("GET "+bp+"/health", r.handleHealth)
	mux.HandleFunc("GET "+bp+"/classify", r.handleClassify)

	// Session routes
	mux.Handle("POST "+bp+"/sessions", createSession)
	mux.HandleFunc("GET "+bp+"/sessions/{id}", r.handleGetSession)
	mux.HandleFunc("DELETE "+bp+"/sessions/{id}", r.handleAbandonSession)
	mux.HandleFunc("POST "+bp+"/sessions/{id}/search", r.handleSearchAll)
	mux.HandleFunc("POST "+bp+"/sessions/{id}/platforms/{platform}/search", r.handleSearchPlatform)
	mux.HandleFunc("POST "+bp+"/sessions/{id}/platforms/{platform}/connect", r.handleConnect)
	mux.HandleFunc("DELETE "+bp+"/sessions/{id}/platforms/{platform}/connect", r.handleDisconnect)
	mux.HandleFunc("POST "+bp+"/sessions/{id}/finalize", r.handleFinalize)

	// Artist routes
	mux.HandleFunc("GET "+bp+"/artists", r.handleListArtists)
	mux.HandleFunc("GET "+bp+"/artists/{id}", r.handleGetArtist)
	mux.HandleFunc("DELETE "+bp+"/artists/{id}", r.handleDeleteArtist)

	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}
