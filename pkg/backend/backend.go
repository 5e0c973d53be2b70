// Package backend implements the storage contract every record store
// satisfies: load a record set, answer predicate queries, list everything.
// Tabular scans an in-memory table read from a flat source; Indexed reads a
// document store and narrows candidates with its own indexes before
// applying the same predicate. Both return identical records for the same
// predicate over the same data.
package backend

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Item is the constraint on records a backend can hold.
type Item interface {
	predicate.Record
	record.Keyed
}

// Backend is the storage contract shared by every implementation.
//
// Query orders matches by ascending distance to the predicate's reference
// coordinate when the predicate contains a radius, and by load order
// otherwise. Ties, and matches without a coordinate, keep load order.
type Backend[T Item] interface {
	// Name identifies the implementation in logs and metrics.
	Name() string
	// Load (re)populates the backend from its source of truth and swaps the
	// new record set in atomically.
	Load(ctx context.Context) ([]T, error)
	// Query returns the records matching p.
	Query(ctx context.Context, p predicate.Predicate) ([]T, error)
	// All returns every loaded record in load order.
	All() ([]T, error)
	// Count returns the number of loaded records, 0 before the first Load.
	Count() int
	// LoadReport describes the most recent successful Load, or nil.
	LoadReport() *record.LoadReport
}

// Source is a flat, delimited source of truth for the tabular backend.
type Source interface {
	// Name identifies the source in errors, e.g. a path or URL.
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindTabular Kind = "tabular"
	KindIndexed Kind = "indexed"
)

// Options configures New.
type Options[T Item] struct {
	Kind       Kind
	Codec      record.Codec[T]
	Source     Source        // tabular
	Store      DocumentStore // indexed
	Collection string        // indexed
	Options    []Option
}

// New builds the backend named by opts.Kind. It holds no shared state;
// callers own the returned value.
func New[T Item](opts Options[T]) (Backend[T], error) {
	const op = "backend.New"
	if opts.Codec == nil {
		return nil, fault.InvalidArgument(op, "codec is required")
	}
	switch opts.Kind {
	case KindTabular, "":
		if opts.Source == nil {
			return nil, fault.InvalidArgument(op, "tabular backend needs a source")
		}
		return NewTabular(opts.Source, opts.Codec, opts.Options...), nil
	case KindIndexed:
		if opts.Store == nil {
			return nil, fault.InvalidArgument(op, "indexed backend needs a document store")
		}
		if opts.Collection == "" {
			return nil, fault.InvalidArgument(op, "indexed backend needs a collection name")
		}
		return NewIndexed(opts.Store, opts.Collection, opts.Codec, opts.Options...), nil
	default:
		return nil, fault.InvalidArgument(op, "unknown backend kind %q", opts.Kind)
	}
}

// NewSites builds a site backend, defaulting the codec.
func NewSites(opts Options[record.Site]) (Backend[record.Site], error) {
	if opts.Codec == nil {
		opts.Codec = record.SiteCodec{}
	}
	return New(opts)
}

// NewSubjects builds a subject backend, defaulting the codec.
func NewSubjects(opts Options[record.Subject]) (Backend[record.Subject], error) {
	if opts.Codec == nil {
		opts.Codec = record.SubjectCodec{}
	}
	return New(opts)
}

type options struct {
	logger      *slog.Logger
	geo         GeoIndex
	indexFields []string
	embedder    Embedder
}

// Option tunes a backend.
type Option func(*options)

// WithLogger sets the logger used for load warnings and index fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGeoIndex gives the indexed backend a spatial pre-filter.
func WithGeoIndex(g GeoIndex) Option {
	return func(o *options) { o.geo = g }
}

// WithIndexFields replaces the fields the indexed backend buckets on.
func WithIndexFields(fields ...string) Option {
	return func(o *options) { o.indexFields = fields }
}

// WithEmbedder sets the embedder used by Indexed.Search.
func WithEmbedder(e Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		indexFields: []string{record.FieldStatus, record.FieldState},
		embedder:    NewHashEmbedder(DefaultEmbeddingDim),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// ordered sorts matches, given in load order, by the query ordering rule.
func ordered[T Item](p predicate.Predicate, matches []T) []T {
	center, ok := predicate.Reference(p)
	if !ok || len(matches) < 2 {
		return matches
	}

	type keyed struct {
		item   T
		dist   float64
		hasLoc bool
	}
	ks := make([]keyed, len(matches))
	for i, m := range matches {
		ks[i].item = m
		if loc, ok := m.Location(); ok {
			ks[i].dist = geo.Distance(center, loc)
			ks[i].hasLoc = true
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].hasLoc != ks[j].hasLoc {
			return ks[i].hasLoc
		}
		return ks[i].dist < ks[j].dist
	})
	out := make([]T, len(ks))
	for i := range ks {
		out[i] = ks[i].item
	}
	return out
}

func checkPredicate(op string, p predicate.Predicate) error {
	if p == nil {
		return fault.InvalidArgument(op, "predicate is nil")
	}
	return nil
}

// scanEvery is how many records a scan evaluates between context checks.
const scanEvery = 1024

func scan[T Item](ctx context.Context, items []T, idx []int, p predicate.Predicate) ([]T, error) {
	var out []T
	n := len(items)
	if idx != nil {
		n = len(idx)
	}
	for i := 0; i < n; i++ {
		if i%scanEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		j := i
		if idx != nil {
			j = idx[i]
		}
		if item := items[j]; p.Evaluate(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func loadError(op, source string, err error) error {
	if fault.KindOf(err) == fault.KindDataLoad {
		return err
	}
	return fault.DataLoad(op, source, err)
}
