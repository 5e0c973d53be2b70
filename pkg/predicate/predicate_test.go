package predicate_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

var fresno = geo.Point{Lat: 36.7378, Lon: -119.7871}

func site(id string, status record.Status, loc *geo.Point, state string, contaminants ...string) record.Site {
	return record.Site{ID: id, Name: id, Status: status, Coordinates: loc, State: state, Contaminants: contaminants}
}

func pt(lat, lon float64) *geo.Point { return &geo.Point{Lat: lat, Lon: lon} }

func mustWithin(t *testing.T, c geo.Point, miles float64) *predicate.Radius {
	t.Helper()
	r, err := predicate.Within(c, miles)
	if err != nil {
		t.Fatalf("Within(%v, %v): %v", c, miles, err)
	}
	return r
}

func TestWithinRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name   string
		center geo.Point
		miles  float64
	}{
		{"negative radius", fresno, -0.5},
		{"NaN radius", fresno, math.NaN()},
		{"infinite radius", fresno, math.Inf(1)},
		{"invalid center", geo.Point{Lat: 120, Lon: 0}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := predicate.Within(tt.center, tt.miles)
			if !errors.Is(err, fault.ErrInvalidArgument) {
				t.Fatalf("err = %v, want INVALID_ARGUMENT", err)
			}
		})
	}
}

func TestRadiusEvaluate(t *testing.T) {
	near := pt(36.80, -119.80)
	far := pt(34.05, -118.24)

	r := mustWithin(t, fresno, 10)
	if !r.Evaluate(site("near", record.StatusActive, near, "CA")) {
		t.Error("near site should be within 10mi")
	}
	if r.Evaluate(site("far", record.StatusActive, far, "CA")) {
		t.Error("far site should not be within 10mi")
	}
	if r.Evaluate(site("nowhere", record.StatusActive, nil, "CA")) {
		t.Error("site without a coordinate must evaluate to false")
	}

	// The boundary is inclusive.
	exact := mustWithin(t, fresno, geo.Distance(fresno, *far))
	if !exact.Evaluate(site("far", record.StatusActive, far, "CA")) {
		t.Error("site exactly on the radius should match")
	}

	zero := mustWithin(t, fresno, 0)
	if !zero.Evaluate(site("here", record.StatusActive, pt(fresno.Lat, fresno.Lon), "CA")) {
		t.Error("zero radius should match a site at the center")
	}
}

func TestFieldPredicates(t *testing.T) {
	s := site("S1", record.StatusInProgress, pt(36, -119), "CA", "Lead", "Trichloroethylene")
	subj := record.Subject{ID: "P1", CoverageClass: "Fire & Liability", Value: ptrFloat(250000)}

	tests := []struct {
		name string
		p    predicate.Predicate
		r    predicate.Record
		want bool
	}{
		{"equals ignores case", predicate.Equals(record.FieldState, " ca "), s, true},
		{"equals mismatch", predicate.Equals(record.FieldState, "NY"), s, false},
		{"equals missing field", predicate.Equals(record.FieldCity, ""), s, false},
		{"contains contaminant", predicate.Contains(record.FieldContaminants, "trichloro"), s, true},
		{"contains absent contaminant", predicate.Contains(record.FieldContaminants, "benzene"), s, false},
		{"status in set", predicate.StatusIn(record.StatusActive, record.StatusInProgress), s, true},
		{"status not in set", predicate.StatusIn(record.StatusComplete), s, false},
		{"unremediated", predicate.Unremediated(), s, true},
		{"subject has no status", predicate.Unremediated(), subj, false},
		{"coverage type", predicate.CoverageType("liability"), subj, true},
		{"high value", predicate.HighValue(predicate.DefaultHighValue), subj, false},
		{"range inclusive", predicate.Range(record.FieldValue, ptrFloat(250000), ptrFloat(250000)), subj, true},
		{"range open upper", predicate.AtLeast(record.FieldValue, 100000), subj, true},
		{"range on missing value", predicate.AtLeast(record.FieldValue, 0), record.Subject{ID: "P2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Evaluate(tt.r); got != tt.want {
				t.Errorf("%s.Evaluate = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestComposites(t *testing.T) {
	yes := predicate.Equals(record.FieldState, "CA")
	no := predicate.Equals(record.FieldState, "NY")
	s := site("S1", record.StatusActive, nil, "CA")

	tests := []struct {
		name string
		p    predicate.Predicate
		want bool
		kind predicate.Kind
	}{
		{"and true", predicate.And(yes, yes), true, predicate.KindAnd},
		{"and false", predicate.And(yes, no), false, predicate.KindAnd},
		{"or true", predicate.Or(no, yes), true, predicate.KindOr},
		{"or false", predicate.Or(no, no), false, predicate.KindOr},
		{"not", predicate.Not(no), true, predicate.KindNot},
		{"nested", predicate.Not(predicate.And(yes, predicate.Or(no, yes))), false, predicate.KindNot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Evaluate(s); got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
			if tt.p.Kind() != tt.kind {
				t.Errorf("Kind = %s, want %s", tt.p.Kind(), tt.kind)
			}
		})
	}
}

func TestAllFoldsLeft(t *testing.T) {
	if predicate.All() != nil {
		t.Error("All() should be nil")
	}
	a := predicate.Equals(record.FieldState, "CA")
	if predicate.All(a) != predicate.Predicate(a) {
		t.Error("All(a) should be a itself")
	}
	p := predicate.All(a, nil, predicate.Unremediated(), predicate.Contains(record.FieldContaminants, "lead"))
	c, ok := p.(*predicate.Conjunction)
	if !ok {
		t.Fatalf("All returned %T, want *Conjunction", p)
	}
	if _, ok := c.Left.(*predicate.Conjunction); !ok {
		t.Errorf("left child is %T, want nested *Conjunction", c.Left)
	}
}

func TestReference(t *testing.T) {
	a := mustWithin(t, geo.Point{Lat: 10, Lon: 10}, 5)
	b := mustWithin(t, geo.Point{Lat: 20, Lon: 20}, 5)
	state := predicate.Equals(record.FieldState, "CA")

	tests := []struct {
		name string
		p    predicate.Predicate
		want *geo.Point
	}{
		{"none", state, nil},
		{"single", a, &a.Center},
		{"and right", predicate.And(state, b), &b.Center},
		{"first wins", predicate.And(a, b), &a.Center},
		{"under not", predicate.And(predicate.Not(b), a), &b.Center},
		{"under or", predicate.Or(state, predicate.Or(a, b)), &a.Center},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := predicate.Reference(tt.p)
			if tt.want == nil {
				if ok {
					t.Errorf("Reference = %v, want none", got)
				}
				return
			}
			if !ok || got != *tt.want {
				t.Errorf("Reference = %v/%v, want %v", got, ok, *tt.want)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	small := mustWithin(t, fresno, 5)
	large := mustWithin(t, fresno, 50)

	p := predicate.And(
		predicate.And(large, predicate.Unremediated()),
		predicate.And(predicate.Equals(record.FieldState, "CA"), small),
	)
	pl := predicate.NewPlan(p)
	if pl.Unsatisfiable {
		t.Fatal("plan should be satisfiable")
	}
	if len(pl.Statuses) != len(record.UnremediatedStatuses()) {
		t.Errorf("statuses = %v", pl.Statuses)
	}
	if pl.Equals[record.FieldState] != "ca" {
		t.Errorf("equals = %v", pl.Equals)
	}
	if pl.Tightest() != small {
		t.Errorf("tightest = %v, want the 5mi radius", pl.Tightest())
	}

	ignored := predicate.NewPlan(predicate.Or(large, predicate.Not(predicate.Unremediated())))
	if ignored.Statuses != nil || len(ignored.Radii) != 0 {
		t.Errorf("constraints under Or/Not must be ignored: %+v", ignored)
	}

	contradiction := predicate.NewPlan(predicate.And(
		predicate.StatusIn(record.StatusComplete),
		predicate.StatusIn(record.StatusActive),
	))
	if !contradiction.Unsatisfiable {
		t.Error("disjoint status sets should be unsatisfiable")
	}
	states := predicate.NewPlan(predicate.And(predicate.Equals(record.FieldState, "CA"), predicate.Equals(record.FieldState, "NY")))
	if !states.Unsatisfiable {
		t.Error("two different states should be unsatisfiable")
	}
}

func ptrFloat(v float64) *float64 { return &v }

func TestSiteFilter(t *testing.T) {
	sites := []record.Site{
		site("A", record.StatusActive, pt(36.74, -119.79), "CA", "Lead"),
		site("B", record.StatusComplete, pt(36.75, -119.78), "CA", "Arsenic"),
		site("C", record.StatusNotStarted, pt(39.53, -119.81), "NV", "Lead"),
		site("D", record.StatusInProgress, nil, "ca", "lead; benzene"),
	}
	tests := []struct {
		name   string
		filter predicate.SiteFilter
		want   []string
	}{
		{"empty", predicate.SiteFilter{}, []string{"A", "B", "C", "D"}},
		{"state", predicate.SiteFilter{State: "ca"}, []string{"A", "B", "D"}},
		{"unremediated", predicate.SiteFilter{Status: "Unremediated"}, []string{"A", "C", "D"}},
		{"status list", predicate.SiteFilter{Status: "Completed, Not Started"}, []string{"B", "C"}},
		{"contaminant", predicate.SiteFilter{Contaminant: "LEAD"}, []string{"A", "C", "D"}},
		{"radius", predicate.SiteFilter{Center: &fresno, Miles: 10}, []string{"A", "B"}},
		{"combined", predicate.SiteFilter{State: "CA", Status: "unremediated", Contaminant: "lead"}, []string{"A", "D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.filter.Predicate()
			if err != nil {
				t.Fatal(err)
			}
			got := []string{}
			for _, s := range sites {
				if p == nil || p.Evaluate(s) {
					got = append(got, s.ID)
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if p, _ := (predicate.SiteFilter{}).Predicate(); p != nil {
		t.Errorf("empty filter built %s", p)
	}
	_, err := predicate.SiteFilter{Center: &fresno, Miles: -1}.Predicate()
	if !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("negative radius err = %v", err)
	}
}
