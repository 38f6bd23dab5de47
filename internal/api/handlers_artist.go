package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tinygems/tinygems/internal/artist"
	"github.com/tinygems/tinygems/internal/resolve"
)

// ArtistStore is the read side of the profile store the API exposes.
type ArtistStore interface {
	GetByID(ctx context.Context, id string) (*resolve.Profile, error)
	List(ctx context.Context, params artist.ListParams) ([]resolve.Profile, int, error)
	Delete(ctx context.Context, id string) error
}

func (r *Router) handleListArtists(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	params := artist.ListParams{
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
		Search:   q.Get("search"),
		Platform: q.Get("platform"),
	}
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	params.Validate()

	profiles, total, err := r.artists.List(req.Context(), params)
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	if profiles == nil {
		profiles = []resolve.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artists":   profiles,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

func (r *Router) handleGetArtist(w http.ResponseWriter, req *http.Request) {
	p, err := r.artists.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeErr(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleDeleteArtist(w http.ResponseWriter, req *http.Request) {
	if err := r.artists.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.writeErr(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
