package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/resolve"
)

// Engine scores locations against a site backend. It holds no mutable
// state of its own and is safe for concurrent use as long as the backend is.
type Engine struct {
	sites    backend.Backend[record.Site]
	resolver resolve.Resolver
	weights  Weights
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the resolver used by ScoreAddress.
func WithResolver(r resolve.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithWeights overrides the default weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a scoring engine over sites.
func NewEngine(sites backend.Backend[record.Site], opts ...Option) *Engine {
	e := &Engine{sites: sites, weights: Defaults(), logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Weights returns the weights in use.
func (e *Engine) Weights() Weights { return e.weights }

// Score evaluates the unremediated sites within radius miles of loc. A nil
// or out-of-range loc is an InvalidInput error; a bad radius is an
// InvalidArgument error.
func (e *Engine) Score(ctx context.Context, loc *geo.Point, radius float64) (*Result, error) {
	const op = "scoring.Score"
	if loc == nil {
		return nil, fault.InvalidInput(op, "coordinate", errors.New("coordinate is missing"))
	}
	if !loc.Valid() {
		return nil, fault.InvalidInput(op, "coordinate", fmt.Errorf("coordinate %s is out of range", loc))
	}

	within, err := predicate.Within(*loc, radius)
	if err != nil {
		return nil, err
	}
	// One query, so the found and unremediated counts come from the same
	// snapshot even when a reload lands mid-call.
	raw, err := e.sites.Query(ctx, within)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	unremediated := predicate.Unremediated()
	candidates := make([]record.Site, 0, len(raw))
	for _, s := range raw {
		if unremediated.Evaluate(s) {
			candidates = append(candidates, s)
		}
	}

	evidence := make([]Evidence, 0, len(candidates))
	for _, s := range candidates {
		site, _ := s.Location()
		evidence = append(evidence, Evidence{Site: s, DistanceMiles: geo.Distance(*loc, site)})
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].DistanceMiles < evidence[j].DistanceMiles
	})

	score := e.weights.Apply(len(candidates))
	return &Result{
		Score:        score,
		Tier:         TierFromScore(score),
		Location:     *loc,
		RadiusMiles:  radius,
		SitesFound:   len(raw),
		Unremediated: len(candidates),
		Evidence:     evidence,
	}, nil
}

// ScoreAddress resolves address and scores the result. Resolution failures,
// NotFound included, are returned as InvalidInput naming the address.
func (e *Engine) ScoreAddress(ctx context.Context, address string, radius float64) (*Result, error) {
	const op = "scoring.ScoreAddress"
	if e.resolver == nil {
		return nil, fault.Precondition(op, "no address resolver configured")
	}
	loc, err := e.resolver.Resolve(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.logger.Debug("address_unresolved", "address", address, "err", err)
		return nil, fault.InvalidInput(op, address, err)
	}
	res, err := e.Score(ctx, &loc, radius)
	if err != nil {
		return nil, err
	}
	res.Address = address
	return res, nil
}
