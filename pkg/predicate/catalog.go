package predicate

import (
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// DefaultHighValue is the threshold used by HighValue when none is given.
const DefaultHighValue = 1_000_000

// UnremediatedWithin matches sites within miles of center whose cleanup is
// not finished. This is the predicate the scoring engine penalises.
func UnremediatedWithin(center geo.Point, miles float64) (Predicate, error) {
	r, err := Within(center, miles)
	if err != nil {
		return nil, err
	}
	return And(r, Unremediated()), nil
}

// StateAndContaminant matches sites in a state carrying a contaminant.
func StateAndContaminant(state, contaminant string) Predicate {
	return And(Equals(record.FieldState, state), Contains(record.FieldContaminants, contaminant))
}

// CoverageType matches subjects whose coverage class mentions coverage.
func CoverageType(coverage string) Predicate {
	return Contains(record.FieldCoverage, coverage)
}

// HighValue matches subjects valued at or above min.
func HighValue(min float64) Predicate {
	return AtLeast(record.FieldValue, min)
}

// SiteFilter holds the site listing filters. Empty fields do not
// constrain; Center, when set, limits results to Miles around it.
type SiteFilter struct {
	State       string
	Status      string // comma-separated statuses, or "unremediated"
	Contaminant string
	Center      *geo.Point
	Miles       float64
}

// Predicate returns the conjunction of the set filters, or nil when none
// is set.
func (f SiteFilter) Predicate() (Predicate, error) {
	var ps []Predicate
	if v := strings.TrimSpace(f.State); v != "" {
		ps = append(ps, Equals(record.FieldState, v))
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		if strings.EqualFold(v, "unremediated") {
			ps = append(ps, Unremediated())
		} else {
			var statuses []record.Status
			for _, s := range strings.Split(v, ",") {
				statuses = append(statuses, record.ParseStatus(s))
			}
			ps = append(ps, StatusIn(statuses...))
		}
	}
	if v := strings.TrimSpace(f.Contaminant); v != "" {
		ps = append(ps, Contains(record.FieldContaminants, v))
	}
	if f.Center != nil {
		r, err := Within(*f.Center, f.Miles)
		if err != nil {
			return nil, err
		}
		ps = append(ps, r)
	}
	return All(ps...), nil
}
