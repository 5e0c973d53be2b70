package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/resolve"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

var home = geo.Point{Lat: 34.0, Lon: -118.0}

type csvSource string

func (s csvSource) Name() string { return "sites.csv" }

func (s csvSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

// north returns the point miles due north of p.
func north(p geo.Point, miles float64) geo.Point {
	return geo.Point{Lat: p.Lat + miles/geo.EarthRadiusMiles*180/math.Pi, Lon: p.Lon}
}

type site struct {
	id     string
	status string
	miles  float64
}

func engineFor(t *testing.T, sites []site, opts ...scoring.Option) *scoring.Engine {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,name,status,contaminants,latitude,longitude\n")
	for _, s := range sites {
		p := north(home, s.miles)
		fmt.Fprintf(&b, "%s,Site %s,%s,Lead,%.10f,%.10f\n", s.id, s.id, s.status, p.Lat, p.Lon)
	}
	tab := backend.NewTabular[record.Site](csvSource(b.String()), record.SiteCodec{})
	if _, err := tab.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return scoring.NewEngine(tab, opts...)
}

func evidenceIDs(r *scoring.Result) []string {
	out := []string{}
	for _, e := range r.Evidence {
		out = append(out, e.Site.ID)
	}
	return out
}

func TestScoreScenarios(t *testing.T) {
	tests := []struct {
		name         string
		sites        []site
		wantScore    int
		wantTier     scoring.Tier
		wantFound    int
		wantEvidence []string
	}{
		{
			name:         "no sites nearby",
			sites:        []site{{"FAR", "Active", 80}},
			wantScore:    100,
			wantTier:     scoring.TierSafe,
			wantEvidence: []string{},
		},
		{
			name:         "one active site at ten miles",
			sites:        []site{{"S1", "Active", 10}},
			wantScore:    75,
			wantTier:     scoring.TierLow,
			wantFound:    1,
			wantEvidence: []string{"S1"},
		},
		{
			name:         "two sites",
			sites:        []site{{"S1", "Active", 30}, {"S2", "Not Started", 5}},
			wantScore:    50,
			wantTier:     scoring.TierMedium,
			wantFound:    2,
			wantEvidence: []string{"S2", "S1"},
		},
		{
			name:         "four sites floor the score",
			sites:        []site{{"A", "Active", 1}, {"B", "Active", 2}, {"C", "In Progress", 3}, {"D", "", 4}},
			wantScore:    0,
			wantTier:     scoring.TierCritical,
			wantFound:    4,
			wantEvidence: []string{"A", "B", "C", "D"},
		},
		{
			name: "evidence is not capped at the floor",
			sites: []site{
				{"A", "Active", 6}, {"B", "Active", 5}, {"C", "Active", 4},
				{"D", "Active", 3}, {"E", "Active", 2}, {"F", "Active", 1},
			},
			wantScore:    0,
			wantTier:     scoring.TierCritical,
			wantFound:    6,
			wantEvidence: []string{"F", "E", "D", "C", "B", "A"},
		},
		{
			name:         "remediated sites only reported as found",
			sites:        []site{{"R1", "Completed", 2}, {"R2", "Deleted", 3}, {"S1", "Active", 4}},
			wantScore:    75,
			wantTier:     scoring.TierLow,
			wantFound:    3,
			wantEvidence: []string{"S1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engineFor(t, tt.sites)
			loc := home
			res, err := e.Score(context.Background(), &loc, scoring.DefaultRadiusMiles)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if res.Score != tt.wantScore || res.Tier != tt.wantTier {
				t.Errorf("score = %d %s, want %d %s", res.Score, res.Tier, tt.wantScore, tt.wantTier)
			}
			if res.SitesFound != tt.wantFound {
				t.Errorf("SitesFound = %d, want %d", res.SitesFound, tt.wantFound)
			}
			if got := evidenceIDs(res); !reflect.DeepEqual(got, tt.wantEvidence) {
				t.Errorf("evidence = %v, want %v", got, tt.wantEvidence)
			}
			if res.Unremediated != len(tt.wantEvidence) {
				t.Errorf("Unremediated = %d, want %d", res.Unremediated, len(tt.wantEvidence))
			}
			if res.Location != home || res.RadiusMiles != scoring.DefaultRadiusMiles {
				t.Errorf("location/radius = %v/%v", res.Location, res.RadiusMiles)
			}
		})
	}
}

func TestScoreEvidenceDistance(t *testing.T) {
	e := engineFor(t, []site{{"S1", "Active", 10}})
	loc := home
	res, err := e.Score(context.Background(), &loc, 50)
	if err != nil {
		t.Fatal(err)
	}
	if d := res.Evidence[0].DistanceMiles; math.Abs(d-10) > 1e-6 {
		t.Errorf("distance = %v, want 10", d)
	}
}

func TestScoreIsMonotonic(t *testing.T) {
	var sites []site
	prev := scoring.InitialScore + 1
	for n := 0; n <= 6; n++ {
		e := engineFor(t, sites)
		loc := home
		res, err := e.Score(context.Background(), &loc, 25)
		if err != nil {
			t.Fatal(err)
		}
		want := scoring.InitialScore - scoring.PenaltyPerSite*n
		if want < scoring.MinimumScore {
			want = scoring.MinimumScore
		}
		if res.Score != want {
			t.Errorf("n=%d: score %d, want %d", n, res.Score, want)
		}
		if res.Score > prev {
			t.Errorf("n=%d: score rose from %d to %d", n, prev, res.Score)
		}
		prev = res.Score
		sites = append(sites, site{fmt.Sprintf("S%d", n), "Active", float64(n + 1)})
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	e := engineFor(t, []site{{"A", "Active", 3}, {"B", "Completed", 1}, {"C", "Active", 3}})
	loc := home
	first, err := e.Score(context.Background(), &loc, 10)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Score(context.Background(), &loc, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Score differs:\n%+v\n%+v", first, second)
	}
}

func TestScoreErrors(t *testing.T) {
	e := engineFor(t, nil)
	ctx := context.Background()

	if _, err := e.Score(ctx, nil, 50); !errors.Is(err, fault.ErrInvalidInput) || !strings.Contains(err.Error(), "coordinate") {
		t.Errorf("nil coordinate: err = %v", err)
	}
	bad := geo.Point{Lat: 95, Lon: 0}
	if _, err := e.Score(ctx, &bad, 50); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("invalid coordinate: err = %v", err)
	}
	loc := home
	if _, err := e.Score(ctx, &loc, -1); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("negative radius: err = %v", err)
	}

	unloaded := scoring.NewEngine(backend.NewTabular[record.Site](csvSource(""), record.SiteCodec{}))
	if _, err := unloaded.Score(ctx, &loc, 50); !errors.Is(err, fault.ErrPrecondition) {
		t.Errorf("unloaded backend: err = %v", err)
	}
}

func TestScoreAddress(t *testing.T) {
	book := resolve.NewAddressBook(resolve.Entry{Address: "1 Main St, Springfield", Point: home})
	e := engineFor(t, []site{{"S1", "Active", 10}}, scoring.WithResolver(book))
	ctx := context.Background()

	res, err := e.ScoreAddress(ctx, "1 main st springfield", 50)
	if err != nil {
		t.Fatalf("ScoreAddress: %v", err)
	}
	if res.Score != 75 || res.Address != "1 main st springfield" {
		t.Errorf("result = %+v", res)
	}

	_, err = e.ScoreAddress(ctx, "9 Nowhere Ln", 50)
	if fault.KindOf(err) != fault.KindInvalidInput {
		t.Errorf("kind = %q, want INVALID_INPUT (err %v)", fault.KindOf(err), err)
	}
	if !errors.Is(err, fault.ErrNotFound) || !strings.Contains(err.Error(), "9 Nowhere Ln") {
		t.Errorf("err = %v, want wrapped NOT_FOUND naming the address", err)
	}

	if _, err := engineFor(t, nil).ScoreAddress(ctx, "1 Main St", 50); !errors.Is(err, fault.ErrPrecondition) {
		t.Errorf("no resolver: err = %v", err)
	}
}

func TestWithWeights(t *testing.T) {
	sites := []site{{"A", "Active", 1}, {"B", "Active", 2}}
	e := engineFor(t, sites, scoring.WithWeights(scoring.Weights{Initial: 100, Penalty: 40, Floor: 10}))
	loc := home
	res, err := e.Score(context.Background(), &loc, 50)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 20 || res.Tier != scoring.TierCritical {
		t.Errorf("score = %d %s, want 20 CRITICAL", res.Score, res.Tier)
	}
}

func TestTierFromScore(t *testing.T) {
	tests := []struct {
		score int
		want  scoring.Tier
	}{
		{100, scoring.TierSafe},
		{99, scoring.TierLow},
		{75, scoring.TierLow},
		{74, scoring.TierMedium},
		{50, scoring.TierMedium},
		{25, scoring.TierHigh},
		{24, scoring.TierCritical},
		{0, scoring.TierCritical},
	}
	for _, tt := range tests {
		if got := scoring.TierFromScore(tt.score); got != tt.want {
			t.Errorf("TierFromScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	if !scoring.TierCritical.AtOrWorse(scoring.TierHigh) || !scoring.TierHigh.AtOrWorse(scoring.TierHigh) {
		t.Error("CRITICAL and HIGH should be at or worse than HIGH")
	}
	if scoring.TierMedium.AtOrWorse(scoring.TierHigh) {
		t.Error("MEDIUM is not at or worse than HIGH")
	}
	if scoring.Tier("BOGUS").AtOrWorse(scoring.TierSafe) {
		t.Error("unknown tier matched a threshold")
	}
	if tier, err := scoring.ParseTier(" high "); err != nil || tier != scoring.TierHigh {
		t.Errorf("ParseTier = %q, %v", tier, err)
	}
	if _, err := scoring.ParseTier("severe"); err == nil {
		t.Error("ParseTier accepted an unknown tier")
	}
}

type mutableSource struct{ data string }

func (s *mutableSource) Name() string { return "sites.csv" }

func (s *mutableSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.data)), nil
}

// reloadingSites empties its data and reloads after every query, the way a
// periodic reload can land between two reads.
type reloadingSites struct {
	backend.Backend[record.Site]
	src     *mutableSource
	queries int
}

func (r *reloadingSites) Query(ctx context.Context, p predicate.Predicate) ([]record.Site, error) {
	out, err := r.Backend.Query(ctx, p)
	r.queries++
	r.src.data = "id,name,status,contaminants,latitude,longitude\n"
	if _, lerr := r.Backend.Load(ctx); lerr != nil {
		return nil, lerr
	}
	return out, err
}

func TestScoreReadsOneSnapshot(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,name,status,contaminants,latitude,longitude\n")
	for i, st := range []string{"Active", "Active", "Completed"} {
		p := north(home, float64(5*(i+1)))
		fmt.Fprintf(&b, "S%d,Site %d,%s,Lead,%.10f,%.10f\n", i, i, st, p.Lat, p.Lon)
	}
	src := &mutableSource{data: b.String()}
	tab := backend.NewTabular[record.Site](src, record.SiteCodec{})
	if _, err := tab.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sites := &reloadingSites{Backend: tab, src: src}

	res, err := scoring.NewEngine(sites).Score(context.Background(), &home, 50)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.SitesFound != 3 || res.Unremediated != 2 || len(res.Evidence) != 2 || res.Score != 50 {
		t.Errorf("got found=%d unremediated=%d evidence=%d score=%d, want 3/2/2/50",
			res.SitesFound, res.Unremediated, len(res.Evidence), res.Score)
	}
	if sites.queries != 1 {
		t.Errorf("Score issued %d backend queries, want 1", sites.queries)
	}
	if tab.Count() != 0 {
		t.Errorf("reload did not happen: %d sites still loaded", tab.Count())
	}
}

func TestNearest(t *testing.T) {
	near, far := north(home, 3), north(home, 40)
	sites := []record.Site{
		{ID: "NOLOC", Status: record.StatusActive},
		{ID: "FAR", Status: record.StatusActive, Coordinates: &far},
		{ID: "DONE", Status: record.StatusComplete, Coordinates: &near},
		{ID: "TIE", Status: record.StatusActive, Coordinates: &near},
	}
	got, ok := scoring.Nearest(home, sites)
	if !ok {
		t.Fatal("no nearest site found")
	}
	if got.Site.ID != "DONE" || math.Abs(got.DistanceMiles-3) > 1e-6 {
		t.Errorf("nearest = %s at %.6f mi, want DONE at 3", got.Site.ID, got.DistanceMiles)
	}
	if _, ok := scoring.Nearest(home, sites[:1]); ok {
		t.Error("a site without coordinates counted as nearest")
	}
	if _, ok := scoring.Nearest(home, nil); ok {
		t.Error("nearest found among no sites")
	}
}
