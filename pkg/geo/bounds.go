package geo

import "math"

// Bounds is an axis-aligned lat/lon box. It never wraps the antimeridian.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// BoundsOf returns the degenerate box containing only p.
func BoundsOf(p Point) Bounds {
	return Bounds{MinLat: p.Lat, MinLon: p.Lon, MaxLat: p.Lat, MaxLon: p.Lon}
}

// Extend grows b to contain p.
func (b Bounds) Extend(p Point) Bounds {
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
	return b
}

// Intersects reports whether the two boxes overlap (edges inclusive).
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// boundsSlack widens radius boxes so rounding never excludes a point that
// Distance would accept.
const boundsSlack = 1e-6

// RadiusBounds returns a box containing every point within miles of center.
// ok is false when the cap touches a pole or crosses the antimeridian; no
// single box describes it then and the caller has to scan.
func RadiusBounds(center Point, miles float64) (Bounds, bool) {
	if !center.Valid() || miles < 0 || math.IsNaN(miles) || math.IsInf(miles, 0) {
		return Bounds{}, false
	}
	d := miles / EarthRadiusMiles // angular radius
	if d >= math.Pi/2 {
		return Bounds{}, false
	}

	dLat := degrees(d)*(1+boundsSlack) + boundsSlack
	minLat := center.Lat - dLat
	maxLat := center.Lat + dLat
	if minLat <= -90 || maxLat >= 90 {
		return Bounds{}, false
	}

	cosLat := math.Cos(radians(center.Lat))
	sinD := math.Sin(d)
	if sinD >= cosLat {
		return Bounds{}, false
	}
	dLon := degrees(math.Asin(sinD/cosLat))*(1+boundsSlack) + boundsSlack
	minLon := center.Lon - dLon
	maxLon := center.Lon + dLon
	if minLon < -180 || maxLon > 180 {
		return Bounds{}, false
	}

	return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, true
}
