package surface

import (
	"encoding/json"
	"io"

	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// JSONRenderer marshals results to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, result *scoring.Result) error {
	return encode(w, result)
}

// BatchView is the JSON shape of a batch report.
type BatchView struct {
	*batch.Report
	TierCounts map[scoring.Tier]int `json:"tier_counts"`
	Failed     int                  `json:"failed"`
}

func (r *JSONRenderer) RenderBatch(w io.Writer, report *batch.Report) error {
	return encode(w, BatchView{Report: report, TierCounts: report.TierCounts(), Failed: len(report.Failures())})
}

// SiteView is a site with its distance from the query's reference point.
type SiteView struct {
	record.Site
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

// SiteViews annotates sites with their distance from center, if given.
func SiteViews(sites []record.Site, center *geo.Point) []SiteView {
	out := make([]SiteView, len(sites))
	for i, s := range sites {
		out[i].Site = s
		if loc, ok := s.Location(); ok && center != nil {
			d := geo.Distance(*center, loc)
			out[i].DistanceMiles = &d
		}
	}
	return out
}

func (r *JSONRenderer) RenderSites(w io.Writer, sites []record.Site, center *geo.Point) error {
	return encode(w, SiteViews(sites, center))
}

func (r *JSONRenderer) RenderClearance(w io.Writer, report *batch.ClearanceReport) error {
	return encode(w, report)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
