package backend

import (
	"context"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

// GeoEntry is one located record handed to a GeoIndex.
type GeoEntry struct {
	Key   string
	Point geo.Point
}

// GeoIndex builds spatial lookups over one snapshot of records.
type GeoIndex interface {
	Name() string
	Build(ctx context.Context, entries []GeoEntry) (GeoLookup, error)
}

// GeoLookup answers radius pre-filter requests for one snapshot.
type GeoLookup interface {
	// Within returns keys of every entry that may lie within miles of
	// center. It may return extra keys, never fewer. ok is false when the
	// lookup cannot answer and the caller must scan.
	Within(ctx context.Context, center geo.Point, miles float64) (keys []string, ok bool, err error)
	// Release frees resources once the snapshot has been replaced.
	Release(ctx context.Context) error
}

// DefaultGeohashPrecision gives cells of roughly 39 by 20 km.
const DefaultGeohashPrecision = 4

// GeohashGrid buckets entries by geohash prefix and keeps the true bounding
// box of each bucket's members, so a radius query tests boxes, not cells.
type GeohashGrid struct {
	Precision int
}

func (g GeohashGrid) Name() string { return "geohash" }

type gridCell struct {
	bounds geo.Bounds
	keys   []string
}

type gridLookup struct {
	cells []*gridCell
}

func (g GeohashGrid) Build(ctx context.Context, entries []GeoEntry) (GeoLookup, error) {
	precision := g.Precision
	if precision <= 0 {
		precision = DefaultGeohashPrecision
	}
	byHash := make(map[string]*gridCell)
	var order []string
	for _, e := range entries {
		if !e.Point.Valid() {
			continue
		}
		h := geo.Cell(e.Point, precision)
		c, ok := byHash[h]
		if !ok {
			c = &gridCell{bounds: geo.BoundsOf(e.Point)}
			byHash[h] = c
			order = append(order, h)
		}
		c.bounds = c.bounds.Extend(e.Point)
		c.keys = append(c.keys, e.Key)
	}
	l := &gridLookup{cells: make([]*gridCell, 0, len(order))}
	for _, h := range order {
		l.cells = append(l.cells, byHash[h])
	}
	return l, nil
}

func (l *gridLookup) Within(ctx context.Context, center geo.Point, miles float64) ([]string, bool, error) {
	box, ok := geo.RadiusBounds(center, miles)
	if !ok {
		return nil, false, nil
	}
	var keys []string
	for _, c := range l.cells {
		if c.bounds.Intersects(box) {
			keys = append(keys, c.keys...)
		}
	}
	return keys, true, nil
}

func (l *gridLookup) Release(ctx context.Context) error { return nil }
