// Package geo provides the great-circle distance primitive and the small
// amount of spatial bookkeeping the indexed backend needs.
package geo

import (
	"fmt"
	"math"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// EarthRadiusMiles is the mean Earth radius used by Distance.
const EarthRadiusMiles = 3958.7613

// Point is a WGS84 coordinate in signed decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether p is finite and inside the lat/lon domain.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}

// Distance returns the haversine distance between a and b in miles.
//
// The arguments are put in a canonical order first, so Distance(a, b) and
// Distance(b, a) run the identical floating point sequence and agree bit for
// bit. The haversine term is clamped to [0, 1], which keeps antipodal and
// polar inputs from producing NaN.
func Distance(a, b Point) float64 {
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lon < a.Lon) {
		a, b = b, a
	}
	if a == b {
		return 0
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Cell returns the geohash of p truncated to precision characters
// (1..12). Points sharing a cell prefix are spatially close.
func Cell(p Point, precision int) string {
	h := geohash.Encode(p.Lat, p.Lon)
	if precision <= 0 || precision >= len(h) {
		return h
	}
	return h[:precision]
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
