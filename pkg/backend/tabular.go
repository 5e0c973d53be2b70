package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

type tabularSnapshot[T Item] struct {
	items  []T
	report *record.LoadReport
}

// Tabular holds the whole record set in memory and answers queries by
// scanning it. Loaded snapshots are never mutated, so Query is safe for
// concurrent use and a reload swaps the snapshot atomically.
type Tabular[T Item] struct {
	source Source
	codec  record.Codec[T]
	logger *slog.Logger
	snap   atomic.Pointer[tabularSnapshot[T]]
}

// NewTabular creates an unloaded tabular backend reading from src.
func NewTabular[T Item](src Source, codec record.Codec[T], opts ...Option) *Tabular[T] {
	o := buildOptions(opts)
	return &Tabular[T]{source: src, codec: codec, logger: o.logger}
}

func (b *Tabular[T]) Name() string { return string(KindTabular) }

// Load reads the source, skipping malformed rows with a warning.
func (b *Tabular[T]) Load(ctx context.Context) ([]T, error) {
	const op = "backend.Tabular.Load"

	rc, err := b.source.Open(ctx)
	if err != nil {
		return nil, loadError(op, b.source.Name(), err)
	}
	defer rc.Close()

	items, report, err := record.ReadCSV(rc, b.source.Name(), b.codec)
	if err != nil {
		return nil, loadError(op, b.source.Name(), err)
	}
	logSkipped(b.logger, b.codec.Kind(), report)

	b.snap.Store(&tabularSnapshot[T]{items: items, report: report})
	b.logger.Info("backend_load_ok",
		"backend", b.Name(), "kind", b.codec.Kind(), "source", report.Source,
		"loaded", report.Loaded, "skipped", len(report.Skipped))
	return clone(items), nil
}

// Query scans every loaded record with p.
func (b *Tabular[T]) Query(ctx context.Context, p predicate.Predicate) ([]T, error) {
	const op = "backend.Tabular.Query"
	if err := checkPredicate(op, p); err != nil {
		return nil, err
	}
	s := b.snap.Load()
	if s == nil {
		return nil, fault.Precondition(op, "query before load")
	}
	matches, err := scan(ctx, s.items, nil, p)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return ordered(p, matches), nil
}

func (b *Tabular[T]) All() ([]T, error) {
	s := b.snap.Load()
	if s == nil {
		return nil, fault.Precondition("backend.Tabular.All", "read before load")
	}
	return clone(s.items), nil
}

func (b *Tabular[T]) Count() int {
	if s := b.snap.Load(); s != nil {
		return len(s.items)
	}
	return 0
}

func (b *Tabular[T]) LoadReport() *record.LoadReport {
	if s := b.snap.Load(); s != nil {
		return s.report
	}
	return nil
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func logSkipped(logger *slog.Logger, kind string, report *record.LoadReport) {
	for _, re := range report.Skipped {
		logger.Warn("row_skipped", "kind", kind, "source", report.Source, "line", re.Line, "id", re.ID, "reason", re.Reason)
	}
}
