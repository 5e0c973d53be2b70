// Package api implements the Hazardscope REST API over the scoring engine,
// the site backend and the batch evaluator.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazardscope/hazardscope/internal/logger"
	"github.com/hazardscope/hazardscope/internal/metrics"
	"github.com/hazardscope/hazardscope/internal/service"
	"github.com/hazardscope/hazardscope/pkg/fault"
)

// Handler is the top-level API handler.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
	cache  *ScoreCache
	apiKey string
}

// NewHandler creates a new API handler. Reload requires apiKey in the
// X-API-Key header unless it is empty.
func NewHandler(svc *service.Service, logger *slog.Logger, cache *ScoreCache, apiKey string) *Handler {
	if cache == nil {
		cache = NewScoreCacheFromEnv()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, cache: cache, apiKey: apiKey}
}

// Routes returns the router serving every endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(logger.AccessMiddleware(h.logger))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/score", h.handleScore)
		r.Get("/sites", h.handleSites)
		r.Get("/sites/search", h.handleSearch)
		r.Get("/portfolio/scores", h.handlePortfolio)
		r.Get("/portfolio/clearance", h.handleClearance)
		r.With(APIKeyAuth(h.apiKey)).Post("/reload", h.handleReload)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Status()
	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": st})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error's kind onto an HTTP status.
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalidArgument, fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindPrecondition:
		return http.StatusServiceUnavailable
	case fault.KindDataLoad:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status, logging server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request_failed", "path", r.URL.Path, "status", status, "err", err)
	}
	body := map[string]string{"error": err.Error()}
	if k := fault.KindOf(err); k != fault.KindUnknown {
		body["kind"] = string(k)
	}
	writeJSON(w, status, body)
}
