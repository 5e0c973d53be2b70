package api

import "net/http"

// handleReload reloads every backend and drops cached scores.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Reload(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.Purge()
	writeJSON(w, http.StatusOK, st)
}
