package predicate

import (
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Reference returns the center of the first Radius found in a depth-first,
// left-to-right walk, Negation included. Query results are ordered by
// distance to it.
func Reference(p Predicate) (geo.Point, bool) {
	switch v := p.(type) {
	case *Radius:
		return v.Center, true
	case *Conjunction:
		if c, ok := Reference(v.Left); ok {
			return c, true
		}
		return Reference(v.Right)
	case *Disjunction:
		if c, ok := Reference(v.Left); ok {
			return c, true
		}
		return Reference(v.Right)
	case *Negation:
		return Reference(v.Inner)
	}
	return geo.Point{}, false
}

// Plan holds constraints every match must satisfy, gathered from the
// conjunctive spine of a predicate. Anything under Or or Not is ignored, so
// a Plan only ever narrows to a superset of the true matches.
type Plan struct {
	// Statuses is nil when the predicate does not constrain status.
	Statuses map[record.Status]bool
	// Equals maps a field to its required lower-cased value.
	Equals map[string]string
	// Radii lists every radius the record must lie within.
	Radii []*Radius
	// Unsatisfiable is set when two constraints contradict each other.
	Unsatisfiable bool
}

// Tightest returns the smallest radius constraint, or nil.
func (pl Plan) Tightest() *Radius {
	var best *Radius
	for _, r := range pl.Radii {
		if best == nil || r.Miles < best.Miles {
			best = r
		}
	}
	return best
}

// NewPlan extracts the index-usable constraints of p.
func NewPlan(p Predicate) Plan {
	pl := Plan{Equals: make(map[string]string)}
	pl.collect(p)
	return pl
}

func (pl *Plan) collect(p Predicate) {
	switch v := p.(type) {
	case *Conjunction:
		pl.collect(v.Left)
		pl.collect(v.Right)
	case *StatusSet:
		if pl.Statuses == nil {
			pl.Statuses = make(map[record.Status]bool, len(v.Statuses))
			for s := range v.Statuses {
				pl.Statuses[s] = true
			}
			break
		}
		for s := range pl.Statuses {
			if !v.Statuses[s] {
				delete(pl.Statuses, s)
			}
		}
		if len(pl.Statuses) == 0 {
			pl.Unsatisfiable = true
		}
	case *Equality:
		want := strings.ToLower(v.Value)
		if prev, ok := pl.Equals[v.Field]; ok && prev != want {
			pl.Unsatisfiable = true
		}
		pl.Equals[v.Field] = want
	case *Radius:
		pl.Radii = append(pl.Radii, v)
	}
}
