package api

import (
	"net/http"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/surface"
)

type sitesResponse struct {
	Count int                `json:"count"`
	Sites []surface.SiteView `json:"sites"`
}

// handleSites lists sites filtered by state, status, contaminant and an
// optional radius around lat/lon.
func (h *Handler) handleSites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := predicate.SiteFilter{
		State:       q.Get("state"),
		Status:      q.Get("status"),
		Contaminant: q.Get("contaminant"),
	}
	center, err := pointParam(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if center != nil {
		if f.Miles, err = floatParam(q, "radius", h.svc.DefaultRadius()); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Center = center
	}
	p, err := f.Predicate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := intParam(q, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sites, err := h.svc.Sites(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	count := len(sites)
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	writeJSON(w, http.StatusOK, sitesResponse{Count: count, Sites: surface.SiteViews(sites, center)})
}

// handleSearch ranks sites by text similarity to ?q=.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	if text == "" {
		h.fail(w, r, fault.InvalidArgument("api.search", "q is required"))
		return
	}
	limit, err := intParam(q, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hits, err := h.svc.SearchSites(r.Context(), text, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(hits), "matches": hits})
}
