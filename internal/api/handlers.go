package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinygems/tinygems/internal/artist"
	"github.com/tinygems/tinygems/internal/identity"
	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/resolve"
	"github.com/tinygems/tinygems/internal/version"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	platforms := make([]string, 0)
	for _, p := range r.registry.Platforms() {
		platforms = append(platforms, string(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.Version,
		"commit":    version.Commit,
		"time":      time.Now().UTC().Format(time.RFC3339),
		"platforms": platforms,
		"sessions":  r.sessions.Len(),
	})
}

func (r *Router) handleClassify(w http.ResponseWriter, req *http.Request) {
	input := req.URL.Query().Get("input")
	if input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	ref, err := identity.Classify(input)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string `json:"error"`
	Platform string `json:"platform,omitempty"`
	Example  string `json:"example,omitempty"`
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		invalidURL  *identity.InvalidURLError
		unavailable *provider.ErrPlatformUnavailable
		notFound    *provider.ErrNotFound
		authReq     *provider.ErrAuthRequired
		storage     *resolve.StorageError
	)
	switch {
	case errors.As(err, &invalidURL),
		errors.Is(err, resolve.ErrEmptySeed),
		errors.Is(err, resolve.ErrEmptyTarget):
		return http.StatusBadRequest
	case errors.As(err, &notFound),
		errors.Is(err, resolve.ErrUnknownPlatform),
		errors.Is(err, resolve.ErrUnknownCandidate),
		errors.Is(err, artist.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resolve.ErrInsufficientData),
		errors.Is(err, resolve.ErrInvalidTransition),
		errors.Is(err, resolve.ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &unavailable), errors.As(err, &authReq):
		return http.StatusBadGateway
	case errors.As(err, &storage):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeErr writes err with its mapped status. Server-side failures are
// logged and their details withheld from the client.
func (r *Router) writeErr(w http.ResponseWriter, req *http.Request, err error) {
	status := errorStatus(err)
	body := errorBody{Error: err.Error()}

	var invalidURL *identity.InvalidURLError
	if errors.As(err, &invalidURL) {
		body.Platform = string(invalidURL.Platform)
		body.Example = invalidURL.Example
	}
	var unavailable *provider.ErrPlatformUnavailable
	if errors.As(err, &unavailable) {
		body.Platform = string(unavailable.Platform)
		if unavailable.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(unavailable.RetryAfter.Seconds()+0.5)))
		}
	}

	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()))
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
			var storage *resolve.StorageError
			if errors.As(err, &storage) {
				body.Error = "saving the profile failed; try again"
			}
		}
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}
