package batch

import (
	"context"
	"math"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/resolve"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// Clearance is a subject with no site, of any status, within the report's
// distance.
type Clearance struct {
	Subject record.Subject    `json:"subject"`
	Nearest *scoring.Evidence `json:"nearest"` // nil when no site has a coordinate
}

// ClearanceReport lists, in input order, the subjects farther than Miles
// from every site.
type ClearanceReport struct {
	Miles     float64     `json:"miles"`
	Checked   int         `json:"checked"`
	Clear     []Clearance `json:"clear"`
	Unlocated []Outcome   `json:"unlocated"`
}

// Clear measures each subject's distance to its nearest site and keeps
// those strictly farther than miles. Subjects without a coordinate are
// resolved by address; ones that cannot be located go to Unlocated. All
// subjects are measured against the same sites slice.
func Clear(ctx context.Context, subjects []record.Subject, sites []record.Site, miles float64, resolver resolve.Resolver) (*ClearanceReport, error) {
	const op = "batch.Clear"
	if math.IsNaN(miles) || math.IsInf(miles, 0) || miles < 0 {
		return nil, fault.InvalidArgument(op, "distance must be a non-negative number of miles, got %v", miles)
	}
	rep := &ClearanceReport{
		Miles:     miles,
		Checked:   len(subjects),
		Clear:     []Clearance{},
		Unlocated: []Outcome{},
	}
	for i, s := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := locate(ctx, op, resolver, s)
		if err != nil {
			rep.Unlocated = append(rep.Unlocated, Outcome{Index: i, Subject: s, Err: err})
			continue
		}
		near, ok := scoring.Nearest(loc, sites)
		switch {
		case !ok:
			rep.Clear = append(rep.Clear, Clearance{Subject: s})
		case near.DistanceMiles > miles:
			rep.Clear = append(rep.Clear, Clearance{Subject: s, Nearest: &near})
		}
	}
	return rep, nil
}
