package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/predicate"
	"github.com/hazardscope/hazardscope/pkg/record"
)

type indexedSnapshot[T Item] struct {
	items  []T
	pos    map[string]int
	status map[record.Status][]int     // nil unless status is an index field
	fields map[string]map[string][]int // field -> lower-cased value -> positions
	folded map[string][]int            // field -> positions whose value is not ASCII
	geo    GeoLookup
	report *record.LoadReport
}

// Indexed reads its corpus from a DocumentStore and keeps bucket indexes on
// a few fields plus an optional spatial index. Indexes only narrow the
// candidate set; every candidate is still tested with the query predicate,
// and a query the indexes cannot serve falls back to a full scan.
type Indexed[T Item] struct {
	store      DocumentStore
	collection string
	codec      record.Codec[T]
	opts       options

	loadMu sync.Mutex
	snap   atomic.Pointer[indexedSnapshot[T]]
}

// NewIndexed creates an unloaded indexed backend over store/collection.
func NewIndexed[T Item](store DocumentStore, collection string, codec record.Codec[T], opts ...Option) *Indexed[T] {
	return &Indexed[T]{
		store:      store,
		collection: collection,
		codec:      codec,
		opts:       buildOptions(opts),
	}
}

func (b *Indexed[T]) Name() string { return string(KindIndexed) }

func (b *Indexed[T]) source() string { return b.store.Name() + "/" + b.collection }

// Load scrolls the collection, decodes every document with the codec and
// rebuilds the indexes before swapping them in.
func (b *Indexed[T]) Load(ctx context.Context) ([]T, error) {
	const op = "backend.Indexed.Load"
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	docs, err := b.store.Scroll(ctx, b.collection)
	if err != nil {
		return nil, loadError(op, b.source(), err)
	}

	loader := record.NewLoader(b.source(), b.codec)
	for i, d := range docs {
		loader.Add(i+1, d.Fields)
	}
	items, report := loader.Result()
	logSkipped(b.opts.logger, b.codec.Kind(), report)

	s := &indexedSnapshot[T]{
		items:  items,
		pos:    make(map[string]int, len(items)),
		fields: make(map[string]map[string][]int),
		folded: make(map[string][]int),
		report: report,
	}
	for i, item := range items {
		s.pos[item.Key()] = i
	}
	b.buildBuckets(s)
	b.buildGeo(ctx, s)

	if old := b.snap.Swap(s); old != nil && old.geo != nil {
		if err := old.geo.Release(ctx); err != nil {
			b.opts.logger.Warn("geo_index_release_failed", "backend", b.Name(), "err", err)
		}
	}
	b.opts.logger.Info("backend_load_ok",
		"backend", b.Name(), "kind", b.codec.Kind(), "source", report.Source,
		"loaded", report.Loaded, "skipped", len(report.Skipped), "geo_index", s.geo != nil)
	return clone(items), nil
}

func (b *Indexed[T]) buildBuckets(s *indexedSnapshot[T]) {
	for _, f := range b.opts.indexFields {
		if f == record.FieldStatus {
			s.status = make(map[record.Status][]int)
		}
		s.fields[f] = make(map[string][]int)
	}
	for i, item := range s.items {
		for f, bucket := range s.fields {
			v, ok := item.Field(f)
			if !ok {
				continue
			}
			if key := strings.ToLower(strings.TrimSpace(v)); isASCII(key) {
				bucket[key] = append(bucket[key], i)
			} else {
				// Unicode case folding can match values ToLower does not,
				// so these are candidates for every equality lookup.
				s.folded[f] = append(s.folded[f], i)
			}
			if f == record.FieldStatus {
				st := record.ParseStatus(v)
				s.status[st] = append(s.status[st], i)
			}
		}
	}
}

func (b *Indexed[T]) buildGeo(ctx context.Context, s *indexedSnapshot[T]) {
	if b.opts.geo == nil {
		return
	}
	entries := make([]GeoEntry, 0, len(s.items))
	for _, item := range s.items {
		if loc, ok := item.Location(); ok {
			entries = append(entries, GeoEntry{Key: item.Key(), Point: loc})
		}
	}
	lookup, err := b.opts.geo.Build(ctx, entries)
	if err != nil {
		b.opts.logger.Warn("geo_index_build_failed", "backend", b.Name(), "index", b.opts.geo.Name(), "err", err)
		return
	}
	s.geo = lookup
}

// Query narrows candidates with the indexes, then applies p to each.
func (b *Indexed[T]) Query(ctx context.Context, p predicate.Predicate) ([]T, error) {
	const op = "backend.Indexed.Query"
	if err := checkPredicate(op, p); err != nil {
		return nil, err
	}
	s := b.snap.Load()
	if s == nil {
		return nil, fault.Precondition(op, "query before load")
	}

	idx := b.candidates(ctx, s, predicate.NewPlan(p))
	matches, err := scan(ctx, s.items, idx, p)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return ordered(p, matches), nil
}

// candidates returns ascending positions that may match, or nil when no
// index applies and every record has to be tested.
func (b *Indexed[T]) candidates(ctx context.Context, s *indexedSnapshot[T], pl predicate.Plan) []int {
	if pl.Unsatisfiable {
		return []int{}
	}

	var sets [][]int
	if pl.Statuses != nil && s.status != nil {
		var union []int
		for st := range pl.Statuses {
			union = append(union, s.status[st]...)
		}
		sort.Ints(union)
		sets = append(sets, union)
	}
	for f, want := range pl.Equals {
		bucket, ok := s.fields[f]
		if !ok || !isASCII(want) {
			continue
		}
		hits := append(append([]int(nil), bucket[want]...), s.folded[f]...)
		sort.Ints(hits)
		sets = append(sets, hits)
	}
	if r := pl.Tightest(); r != nil && s.geo != nil {
		keys, ok, err := s.geo.Within(ctx, r.Center, r.Miles)
		switch {
		case err != nil:
			b.opts.logger.Warn("geo_index_fallback", "backend", b.Name(), "index", b.opts.geo.Name(), "err", err)
		case ok:
			near := make([]int, 0, len(keys))
			for _, k := range keys {
				if i, found := s.pos[k]; found {
					near = append(near, i)
				}
			}
			sort.Ints(near)
			sets = append(sets, dedupe(near))
		}
	}

	if len(sets) == 0 {
		return nil
	}
	out := sets[0]
	for _, next := range sets[1:] {
		out = intersect(out, next)
	}
	if out == nil {
		out = []int{}
	}
	return out
}

// Match is a Search hit.
type Match[T Item] struct {
	Record T       `json:"record"`
	Score  float64 `json:"score"`
}

// Search ranks loaded records by similarity between text and their stored
// embeddings. Documents unknown to the current snapshot are dropped.
func (b *Indexed[T]) Search(ctx context.Context, text string, limit int) ([]Match[T], error) {
	const op = "backend.Indexed.Search"
	s := b.snap.Load()
	if s == nil {
		return nil, fault.Precondition(op, "search before load")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fault.InvalidArgument(op, "search text is empty")
	}
	docs, err := b.store.Search(ctx, b.collection, b.opts.embedder.Embed(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.source(), err)
	}
	out := make([]Match[T], 0, len(docs))
	for _, d := range docs {
		if i, ok := s.pos[d.Fields[record.FieldID]]; ok {
			out = append(out, Match[T]{Record: s.items[i], Score: d.Score})
		}
	}
	return out, nil
}

func (b *Indexed[T]) All() ([]T, error) {
	s := b.snap.Load()
	if s == nil {
		return nil, fault.Precondition("backend.Indexed.All", "read before load")
	}
	return clone(s.items), nil
}

func (b *Indexed[T]) Count() int {
	if s := b.snap.Load(); s != nil {
		return len(s.items)
	}
	return 0
}

func (b *Indexed[T]) LoadReport() *record.LoadReport {
	if s := b.snap.Load(); s != nil {
		return s.report
	}
	return nil
}

func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func dedupe(sorted []int) []int {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
