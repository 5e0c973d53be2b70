package api

import (
	"net/http"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/scoring"
	"github.com/hazardscope/hazardscope/pkg/surface"
)

type portfolioResponse struct {
	surface.BatchView
	Threshold scoring.Tier    `json:"threshold"`
	Flagged   []batch.Outcome `json:"flagged"`
}

// handlePortfolio scores every loaded subject and flags those at or worse
// than ?threshold=.
func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold := strings.TrimSpace(q.Get("threshold"))
	if threshold == "" {
		threshold = h.svc.Config().Batch.Threshold
	}
	tier, err := scoring.ParseTier(threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := floatParam(q, "radius", h.svc.DefaultRadius())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.Portfolio(r.Context(), radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	flagged := report.AtOrWorse(tier)
	if flagged == nil {
		flagged = []batch.Outcome{}
	}
	writeJSON(w, http.StatusOK, portfolioResponse{
		BatchView: surface.BatchView{
			Report:     report,
			TierCounts: report.TierCounts(),
			Failed:     len(report.Failures()),
		},
		Threshold: tier,
		Flagged:   flagged,
	})
}

// handleClearance lists subjects more than ?miles= from any site.
func (h *Handler) handleClearance(w http.ResponseWriter, r *http.Request) {
	miles, err := floatParam(r.URL.Query(), "miles", h.svc.DefaultRadius())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.svc.Clearance(r.Context(), miles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
