package scoring

// These values define the risk language: every unremediated site within
// the radius costs PenaltyPerSite points from InitialScore, and the score
// never drops below MinimumScore.
const (
	InitialScore       = 100
	PenaltyPerSite     = 25
	MinimumScore       = 0
	DefaultRadiusMiles = 50.0
)

// Weights parameterises the flat-penalty model.
type Weights struct {
	Initial int `yaml:"initial_score" json:"initial_score"`
	Penalty int `yaml:"penalty_per_site" json:"penalty_per_site"`
	Floor   int `yaml:"minimum_score" json:"minimum_score"`
}

// Defaults returns the standard weights.
func Defaults() Weights {
	return Weights{
		Initial: InitialScore,
		Penalty: PenaltyPerSite,
		Floor:   MinimumScore,
	}
}

// Apply returns the score for n unremediated sites.
func (w Weights) Apply(n int) int {
	s := w.Initial - w.Penalty*n
	if s < w.Floor {
		return w.Floor
	}
	return s
}
