package scoring

import (
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
)

// Nearest returns the site closest to loc, whatever its status, with its
// distance. Ties go to the earlier site. ok is false when no site has a
// coordinate.
func Nearest(loc geo.Point, sites []record.Site) (nearest Evidence, ok bool) {
	for _, s := range sites {
		p, located := s.Location()
		if !located {
			continue
		}
		d := geo.Distance(loc, p)
		if !ok || d < nearest.DistanceMiles {
			nearest = Evidence{Site: s, DistanceMiles: d}
			ok = true
		}
	}
	return nearest, ok
}
