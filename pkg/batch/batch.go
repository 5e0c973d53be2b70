// Package batch scores a portfolio of subjects with a bounded worker pool.
// Every subject gets its own outcome, in input order; a failure on one
// subject never stops the others.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/resolve"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// Scorer scores one location. *scoring.Engine satisfies it.
type Scorer interface {
	Score(ctx context.Context, loc *geo.Point, radius float64) (*scoring.Result, error)
}

// Evaluator runs a Scorer over many subjects.
type Evaluator struct {
	scorer   Scorer
	resolver resolve.Resolver
	workers  int
	logger   *slog.Logger
	observe  func(Outcome)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithResolver resolves subjects that carry an address but no coordinate.
func WithResolver(r resolve.Resolver) Option {
	return func(e *Evaluator) { e.resolver = r }
}

// WithWorkers bounds the number of concurrent evaluations.
func WithWorkers(n int) Option {
	return func(e *Evaluator) { e.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithObserver registers fn to be called once per finished subject. fn is
// called from worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Evaluator) { e.observe = fn }
}

func NewEvaluator(scorer Scorer, opts ...Option) *Evaluator {
	e := &Evaluator{scorer: scorer, workers: DefaultWorkers, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// EvaluateAll scores every subject within radius miles. If ctx is cancelled
// mid-run, subjects already evaluated keep their outcomes and the rest
// carry the context error.
func (e *Evaluator) EvaluateAll(ctx context.Context, subjects []record.Subject, radius float64) *Report {
	rep := &Report{
		RunID:    uuid.NewString(),
		Radius:   radius,
		Started:  time.Now().UTC(),
		Outcomes: make([]Outcome, len(subjects)),
	}
	for i, s := range subjects {
		rep.Outcomes[i] = Outcome{Index: i, Subject: s}
	}
	log := e.logger.With("run_id", rep.RunID)
	log.Info("batch_start", "subjects", len(subjects), "workers", e.workers, "radius_miles", radius)

	done := make([]bool, len(subjects))
	jobs := make(chan int, e.workers)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out := &rep.Outcomes[i]
				out.Result, out.Err = e.evaluate(ctx, out.Subject, radius)
				done[i] = true
				if out.Err != nil {
					log.Warn("subject_failed", "subject", out.Subject.ID, "kind", fault.KindOf(out.Err), "err", out.Err)
				}
				if e.observe != nil {
					e.observe(*out)
				}
			}
		}()
	}

dispatch:
	for i := range subjects {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range rep.Outcomes {
		if !done[i] {
			rep.Outcomes[i].Err = ctx.Err()
		}
	}
	rep.Finished = time.Now().UTC()
	log.Info("batch_done", "subjects", len(subjects), "failed", len(rep.Failures()),
		"duration_ms", rep.Finished.Sub(rep.Started).Milliseconds())
	return rep
}

func (e *Evaluator) evaluate(ctx context.Context, s record.Subject, radius float64) (*scoring.Result, error) {
	loc, err := locate(ctx, "batch.Evaluate", e.resolver, s)
	if err != nil {
		return nil, err
	}
	res, err := e.scorer.Score(ctx, &loc, radius)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", s.ID, err)
	}
	return res, nil
}

// locate returns the subject's coordinate, resolving its address when it
// has none. Failures are InvalidInput naming the subject.
func locate(ctx context.Context, op string, resolver resolve.Resolver, s record.Subject) (geo.Point, error) {
	if p, ok := s.Location(); ok {
		return p, nil
	}
	addr := s.FullAddress()
	if resolver == nil || strings.TrimSpace(addr) == "" {
		return geo.Point{}, fault.InvalidInput(op, s.ID, errors.New("no coordinate and no resolvable address"))
	}
	p, err := resolver.Resolve(ctx, addr)
	if err != nil {
		return geo.Point{}, fault.InvalidInput(op, s.ID, err)
	}
	return p, nil
}

// Outcome is the result of evaluating one subject. Exactly one of Result
// and Err is set.
type Outcome struct {
	Index   int
	Subject record.Subject
	Result  *scoring.Result
	Err     error
}

func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

func (o Outcome) MarshalJSON() ([]byte, error) {
	type wire struct {
		Index     int             `json:"index"`
		Subject   record.Subject  `json:"subject"`
		Result    *scoring.Result `json:"result,omitempty"`
		Error     string          `json:"error,omitempty"`
		ErrorKind fault.Kind      `json:"error_kind,omitempty"`
	}
	w := wire{Index: o.Index, Subject: o.Subject, Result: o.Result}
	if o.Err != nil {
		w.Error = o.Err.Error()
		w.ErrorKind = fault.KindOf(o.Err)
	}
	return json.Marshal(w)
}

// Report holds every outcome of one EvaluateAll call in input order.
type Report struct {
	RunID    string    `json:"run_id"`
	Radius   float64   `json:"radius_miles"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Outcomes []Outcome `json:"outcomes"`
}

// TierCounts counts successful outcomes per tier. Every tier is present.
func (r *Report) TierCounts() map[scoring.Tier]int {
	counts := make(map[scoring.Tier]int, len(scoring.Tiers))
	for _, t := range scoring.Tiers {
		counts[t] = 0
	}
	for _, o := range r.Outcomes {
		if o.OK() {
			counts[o.Result.Tier]++
		}
	}
	return counts
}

// AtOrWorse returns successful outcomes whose tier is threshold or more
// severe, in input order.
func (r *Report) AtOrWorse(threshold scoring.Tier) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.OK() && o.Result.Tier.AtOrWorse(threshold) {
			out = append(out, o)
		}
	}
	return out
}

// Failures returns the outcomes that carry an error, in input order.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
