// Package surface renders score results, batch reports and site listings
// for people and machines.
package surface

import (
	"io"

	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// Renderer produces formatted output for each result shape.
type Renderer interface {
	// Render writes one score result.
	Render(w io.Writer, result *scoring.Result) error
	// RenderBatch writes a portfolio report in input order.
	RenderBatch(w io.Writer, report *batch.Report) error
	// RenderSites writes a site listing. center is the query's reference
	// point, or nil.
	RenderSites(w io.Writer, sites []record.Site, center *geo.Point) error
	// RenderClearance writes the subjects clear of every site.
	RenderClearance(w io.Writer, report *batch.ClearanceReport) error
}

// MaxEvidence is how many evidence sites the terminal shows per result.
const MaxEvidence = 5
