// Package predicate expresses filter criteria over records as composable,
// side-effect-free rules. Every backend evaluates the same Predicate value,
// which is what keeps their results interchangeable.
package predicate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Record is the read-only view a predicate needs. record.Site and
// record.Subject both implement it.
type Record interface {
	Field(name string) (string, bool)
	Location() (geo.Point, bool)
}

// Kind tags a predicate variant.
type Kind string

const (
	KindEquals   Kind = "EQUALS"
	KindContains Kind = "CONTAINS"
	KindStatusIn Kind = "STATUS_IN"
	KindRange    Kind = "RANGE"
	KindRadius   Kind = "RADIUS"
	KindAnd      Kind = "AND"
	KindOr       Kind = "OR"
	KindNot      Kind = "NOT"
)

// Predicate is a pure boolean rule over a Record. Evaluate never panics or
// errors for a well-formed record; missing data evaluates to false.
type Predicate interface {
	Kind() Kind
	Evaluate(r Record) bool
	String() string
}

// Equality matches a field by case-insensitive, trimmed comparison.
// Records without the field never match.
type Equality struct {
	Field string
	Value string
}

func Equals(field, value string) *Equality {
	return &Equality{Field: field, Value: strings.TrimSpace(value)}
}

func (p *Equality) Kind() Kind { return KindEquals }

func (p *Equality) Evaluate(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && strings.EqualFold(strings.TrimSpace(v), p.Value)
}

func (p *Equality) String() string { return fmt.Sprintf("%s = %q", p.Field, p.Value) }

// Containment matches a case-insensitive substring of a field, e.g. one
// contaminant in a site's contaminant list.
type Containment struct {
	Field  string
	Substr string
}

func Contains(field, substr string) *Containment {
	return &Containment{Field: field, Substr: strings.ToLower(strings.TrimSpace(substr))}
}

func (p *Containment) Kind() Kind { return KindContains }

func (p *Containment) Evaluate(r Record) bool {
	v, ok := r.Field(p.Field)
	return ok && strings.Contains(strings.ToLower(v), p.Substr)
}

func (p *Containment) String() string { return fmt.Sprintf("%s contains %q", p.Field, p.Substr) }

// StatusSet matches records whose remediation status is in the set.
type StatusSet struct {
	Statuses map[record.Status]bool
}

func StatusIn(statuses ...record.Status) *StatusSet {
	set := make(map[record.Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return &StatusSet{Statuses: set}
}

// Unremediated matches every status whose cleanup is not finished.
func Unremediated() *StatusSet {
	return StatusIn(record.UnremediatedStatuses()...)
}

func (p *StatusSet) Kind() Kind { return KindStatusIn }

func (p *StatusSet) Evaluate(r Record) bool {
	v, ok := r.Field(record.FieldStatus)
	return ok && p.Statuses[record.ParseStatus(v)]
}

func (p *StatusSet) String() string {
	names := make([]string, 0, len(p.Statuses))
	for s := range p.Statuses {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return "status in [" + strings.Join(names, ", ") + "]"
}

// ValueRange matches a numeric field within [Min, Max]. A nil bound is
// open. Non-numeric or missing values never match.
type ValueRange struct {
	Field string
	Min   *float64
	Max   *float64
}

func Range(field string, min, max *float64) *ValueRange {
	return &ValueRange{Field: field, Min: min, Max: max}
}

// AtLeast is Range with only a lower bound.
func AtLeast(field string, min float64) *ValueRange {
	return Range(field, &min, nil)
}

func (p *ValueRange) Kind() Kind { return KindRange }

func (p *ValueRange) Evaluate(r Record) bool {
	raw, ok := r.Field(p.Field)
	if !ok {
		return false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return false
	}
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

func (p *ValueRange) String() string {
	lo, hi := "-inf", "+inf"
	if p.Min != nil {
		lo = strconv.FormatFloat(*p.Min, 'f', -1, 64)
	}
	if p.Max != nil {
		hi = strconv.FormatFloat(*p.Max, 'f', -1, 64)
	}
	return fmt.Sprintf("%s in [%s, %s]", p.Field, lo, hi)
}

// Radius matches records whose coordinate lies within Miles of Center.
// Records without a coordinate never match.
type Radius struct {
	Center geo.Point
	Miles  float64
}

// Within builds a Radius predicate. A negative or non-finite radius, or a
// center outside the coordinate domain, is an InvalidArgument.
func Within(center geo.Point, miles float64) (*Radius, error) {
	const op = "predicate.Within"
	if math.IsNaN(miles) || math.IsInf(miles, 0) {
		return nil, fault.InvalidArgument(op, "radius must be finite, got %v", miles)
	}
	if miles < 0 {
		return nil, fault.InvalidArgument(op, "radius must be >= 0, got %v", miles)
	}
	if !center.Valid() {
		return nil, fault.InvalidArgument(op, "center %s is not a valid coordinate", center)
	}
	return &Radius{Center: center, Miles: miles}, nil
}

func (p *Radius) Kind() Kind { return KindRadius }

func (p *Radius) Evaluate(r Record) bool {
	loc, ok := r.Location()
	if !ok || !loc.Valid() {
		return false
	}
	return geo.Distance(p.Center, loc) <= p.Miles
}

func (p *Radius) String() string {
	return fmt.Sprintf("within %gmi of %s", p.Miles, p.Center)
}

// Conjunction is true when both children are.
type Conjunction struct {
	Left, Right Predicate
}

func And(left, right Predicate) *Conjunction { return &Conjunction{Left: left, Right: right} }

func (p *Conjunction) Kind() Kind { return KindAnd }

func (p *Conjunction) Evaluate(r Record) bool { return p.Left.Evaluate(r) && p.Right.Evaluate(r) }

func (p *Conjunction) String() string { return "(" + p.Left.String() + " AND " + p.Right.String() + ")" }

// Disjunction is true when either child is.
type Disjunction struct {
	Left, Right Predicate
}

func Or(left, right Predicate) *Disjunction { return &Disjunction{Left: left, Right: right} }

func (p *Disjunction) Kind() Kind { return KindOr }

func (p *Disjunction) Evaluate(r Record) bool { return p.Left.Evaluate(r) || p.Right.Evaluate(r) }

func (p *Disjunction) String() string { return "(" + p.Left.String() + " OR " + p.Right.String() + ")" }

// Negation inverts its child.
type Negation struct {
	Inner Predicate
}

func Not(inner Predicate) *Negation { return &Negation{Inner: inner} }

func (p *Negation) Kind() Kind { return KindNot }

func (p *Negation) Evaluate(r Record) bool { return !p.Inner.Evaluate(r) }

func (p *Negation) String() string { return "NOT " + p.Inner.String() }

// All folds predicates into a left-nested conjunction. It returns nil for
// an empty list.
func All(ps ...Predicate) Predicate {
	var out Predicate
	for _, p := range ps {
		if p == nil {
			continue
		}
		if out == nil {
			out = p
			continue
		}
		out = And(out, p)
	}
	return out
}
