// Package resolve turns address strings into coordinates for scoring.
package resolve

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
)

// Resolver maps an address to a coordinate. A miss is a fault.NotFound.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geo.Point, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, address string) (geo.Point, error)

func (f Func) Resolve(ctx context.Context, address string) (geo.Point, error) {
	return f(ctx, address)
}

// Addressed is a record that knows its address and, maybe, its location.
type Addressed interface {
	FullAddress() string
	Location() (geo.Point, bool)
}

// Entry is one known address.
type Entry struct {
	Address string
	Point   geo.Point
}

// EntriesOf returns an entry for every item with both an address and a
// location, in input order.
func EntriesOf[T Addressed](items []T) []Entry {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		loc, ok := it.Location()
		addr := it.FullAddress()
		if !ok || strings.TrimSpace(addr) == "" {
			continue
		}
		out = append(out, Entry{Address: addr, Point: loc})
	}
	return out
}

type bookEntry struct {
	key   string
	point geo.Point
}

// AddressBook resolves addresses offline against known records. An exact
// match on the normalised address wins; otherwise the first entry whose
// address contains the query, or is contained by it, is used.
type AddressBook struct {
	mu      sync.RWMutex
	entries []bookEntry
}

func NewAddressBook(entries ...Entry) *AddressBook {
	b := &AddressBook{}
	b.Replace(entries)
	return b
}

// Replace swaps the book's contents.
func (b *AddressBook) Replace(entries []Entry) {
	next := make([]bookEntry, 0, len(entries))
	for _, e := range entries {
		key := Normalize(e.Address)
		if key == "" || !e.Point.Valid() {
			continue
		}
		next = append(next, bookEntry{key: key, point: e.Point})
	}
	b.mu.Lock()
	b.entries = next
	b.mu.Unlock()
}

func (b *AddressBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *AddressBook) Resolve(ctx context.Context, address string) (geo.Point, error) {
	const op = "resolve.AddressBook"
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	q := Normalize(address)
	if q == "" {
		return geo.Point{}, fault.NotFound(op, address)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if e.key == q {
			return e.point, nil
		}
	}
	for _, e := range b.entries {
		if strings.Contains(e.key, q) || strings.Contains(q, e.key) {
			return e.point, nil
		}
	}
	return geo.Point{}, fault.NotFound(op, address)
}

// Normalize lower-cases an address, turns punctuation into spaces and
// collapses runs of whitespace.
func Normalize(address string) string {
	f := strings.FieldsFunc(strings.ToLower(address), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(f, " ")
}
