package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/geo"
)

// handleScore scores ?lat=&lon= or ?address= within ?radius= miles.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	radius, err := floatParam(q, "radius", h.svc.DefaultRadius())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc, err := pointParam(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	address := strings.TrimSpace(q.Get("address"))
	if loc == nil && address == "" {
		writeError(w, http.StatusBadRequest, "lat and lon, or address, are required")
		return
	}

	// The generation is read before scoring so a reload that lands while
	// scoring keeps this result out of the cache.
	gen := h.svc.Generation()
	key := scoreKey(loc, address, radius)
	if res := h.cache.Get(gen, key); res != nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	res, err := h.svc.Score(r.Context(), loc, address, radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.Put(gen, key, res)
	writeJSON(w, http.StatusOK, res)
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, v)
	}
	return f, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %q is not a non-negative integer", name, v)
	}
	return n, nil
}

// pointParam reads lat and lon. Both or neither must be present.
func pointParam(q url.Values) (*geo.Point, error) {
	hasLat, hasLon := q.Get("lat") != "", q.Get("lon") != ""
	if !hasLat && !hasLon {
		return nil, nil
	}
	if hasLat != hasLon {
		return nil, fmt.Errorf("lat and lon must be given together")
	}
	lat, err := floatParam(q, "lat", 0)
	if err != nil {
		return nil, err
	}
	lon, err := floatParam(q, "lon", 0)
	if err != nil {
		return nil, err
	}
	return &geo.Point{Lat: lat, Lon: lon}, nil
}
