package backend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Document is one record as held by a document store: its flat fields,
// an optional embedding and a sequence number fixing load order.
type Document struct {
	Seq    uint64            `json:"seq"`
	Fields map[string]string `json:"fields"`
	Vector []float32         `json:"vector,omitempty"`
	Score  float64           `json:"score,omitempty"` // set by Search
}

// DocumentStore is the source of truth for the indexed backend.
type DocumentStore interface {
	Name() string
	// EnsureCollection creates collection for vectors of dim if missing.
	EnsureCollection(ctx context.Context, collection string, dim int) error
	// DropCollection deletes collection. Dropping a missing one is not an error.
	DropCollection(ctx context.Context, collection string) error
	// Upsert writes docs, replacing any with the same Seq.
	Upsert(ctx context.Context, collection string, docs []Document) error
	// Scroll returns every document ordered by Seq.
	Scroll(ctx context.Context, collection string) ([]Document, error)
	// Search returns up to limit documents by descending vector similarity.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Document, error)
}

// MemoryStore is an in-process DocumentStore with brute-force cosine search.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dim  int
	docs map[uint64]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = &memCollection{dim: dim, docs: make(map[uint64]Document)}
	}
	return nil
}

func (m *MemoryStore) DropCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}
	for _, d := range docs {
		if c.dim > 0 && len(d.Vector) > 0 && len(d.Vector) != c.dim {
			return fmt.Errorf("document %d: vector has %d dims, collection wants %d", d.Seq, len(d.Vector), c.dim)
		}
		fields := make(map[string]string, len(d.Fields))
		for k, v := range d.Fields {
			fields[k] = v
		}
		c.docs[d.Seq] = Document{Seq: d.Seq, Fields: fields, Vector: normalize(d.Vector)}
	}
	return nil
}

func (m *MemoryStore) Scroll(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}
	out := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *MemoryStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Document, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	docs, err := m.Scroll(ctx, collection)
	if err != nil {
		return nil, err
	}
	q := normalize(vector)
	scored := docs[:0]
	for _, d := range docs {
		if len(d.Vector) != len(q) {
			continue
		}
		d.Score = dot(q, d.Vector)
		scored = append(scored, d)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
