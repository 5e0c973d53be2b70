// Package metrics registers the service's Prometheus collectors and
// instruments backends and batch runs with them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hazardscope_evaluations_total",
		Help: "Successful subject evaluations by tier",
	}, []string{"tier"})
	EvaluationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hazardscope_evaluation_failures_total",
		Help: "Failed subject evaluations by error kind",
	}, []string{"kind"})
	BackendQueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hazardscope_backend_query_duration_ms",
		Help:    "Backend query duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"backend", "kind"})
	BackendLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hazardscope_backend_loads_total",
		Help: "Backend loads by outcome",
	}, []string{"backend", "kind", "status"})
	BackendRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hazardscope_backend_records",
		Help: "Records held by the backend after its last successful load",
	}, []string{"backend", "kind"})
)

func init() {
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EvaluationFailuresTotal)
	prometheus.MustRegister(BackendQueryDurationMs)
	prometheus.MustRegister(BackendLoadsTotal)
	prometheus.MustRegister(BackendRecords)
}

// Handler exposes the default registry for scraping at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveOutcome counts one batch outcome. It is meant for
// batch.WithObserver.
func ObserveOutcome(o batch.Outcome) {
	if o.OK() {
		EvaluationsTotal.WithLabelValues(string(o.Result.Tier)).Inc()
		return
	}
	EvaluationFailuresTotal.WithLabelValues(failureKind(o.Err)).Inc()
}

func failureKind(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	if k := fault.KindOf(err); k != fault.KindUnknown {
		return strings.ToLower(string(k))
	}
	return "internal"
}

// Instrumented decorates a backend with query timing and load counters.
type Instrumented[T backend.Item] struct {
	backend.Backend[T]
	kind string
}

// Instrument wraps b. kind labels the record type, e.g. "site".
func Instrument[T backend.Item](b backend.Backend[T], kind string) *Instrumented[T] {
	return &Instrumented[T]{Backend: b, kind: kind}
}

func (i *Instrumented[T]) Load(ctx context.Context) ([]T, error) {
	items, err := i.Backend.Load(ctx)
	if err != nil {
		BackendLoadsTotal.WithLabelValues(i.Name(), i.kind, "error").Inc()
		return nil, err
	}
	BackendLoadsTotal.WithLabelValues(i.Name(), i.kind, "ok").Inc()
	BackendRecords.WithLabelValues(i.Name(), i.kind).Set(float64(len(items)))
	return items, nil
}

func (i *Instrumented[T]) Query(ctx context.Context, p predicate.Predicate) ([]T, error) {
	start := time.Now()
	out, err := i.Backend.Query(ctx, p)
	BackendQueryDurationMs.WithLabelValues(i.Name(), i.kind).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
	return out, err
}

var (
	_ backend.Backend[record.Site]    = (*Instrumented[record.Site])(nil)
	_ backend.Backend[record.Subject] = (*Instrumented[record.Subject])(nil)
)
