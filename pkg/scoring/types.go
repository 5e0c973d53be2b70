// Package scoring implements the proximity safety score: a flat penalty per
// unremediated contamination site within a radius of a location, mapped to
// a risk tier and backed by the list of sites that caused it.
package scoring

import (
	"fmt"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Result is the outcome of scoring one location.
// Immutable once computed.
type Result struct {
	Score        int        `json:"score"`
	Tier         Tier       `json:"tier"`
	Location     geo.Point  `json:"location"`
	Address      string     `json:"address,omitempty"` // set by ScoreAddress
	RadiusMiles  float64    `json:"radius_miles"`
	SitesFound   int        `json:"sites_found"`  // every site in the radius
	Unremediated int        `json:"unremediated"` // sites counted against the score
	Evidence     []Evidence `json:"evidence"`
}

// Evidence is one unremediated site that reduced the score.
type Evidence struct {
	Site          record.Site `json:"site"`
	DistanceMiles float64     `json:"distance_miles"`
}

// Tier is the named risk bucket for a score.
type Tier string

const (
	TierSafe     Tier = "SAFE"
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierSafe, TierLow, TierMedium, TierHigh, TierCritical}

// TierFromScore maps a score to its tier. Scores between boundaries take
// the tier of the next lower boundary.
func TierFromScore(score int) Tier {
	switch {
	case score >= 100:
		return TierSafe
	case score >= 75:
		return TierLow
	case score >= 50:
		return TierMedium
	case score >= 25:
		return TierHigh
	default:
		return TierCritical
	}
}

// Rank orders tiers by severity, 0 for SAFE up to 4 for CRITICAL, and -1
// for an unknown tier.
func (t Tier) Rank() int {
	for i, x := range Tiers {
		if x == t {
			return i
		}
	}
	return -1
}

// AtOrWorse reports whether t is threshold or more severe.
func (t Tier) AtOrWorse(threshold Tier) bool {
	r := t.Rank()
	return r >= 0 && r >= threshold.Rank()
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}
