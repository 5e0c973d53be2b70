package api

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/resolve"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// ScoreCache is a thread-safe LRU cache of score results for one data
// generation. Seeing a newer generation empties it, and results computed
// for an older one are never stored.
type ScoreCache struct {
	mu      sync.Mutex
	maxSize int
	gen     uint64
	entries map[string]*scoring.Result
	order   []string // oldest first
}

// NewScoreCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 1024.
func NewScoreCache(maxSize int) *ScoreCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &ScoreCache{
		maxSize: maxSize,
		entries: make(map[string]*scoring.Result),
	}
}

// NewScoreCacheFromEnv creates a cache sized by SCORE_CACHE_SIZE.
func NewScoreCacheFromEnv() *ScoreCache {
	size := 0
	if v := os.Getenv("SCORE_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewScoreCache(size)
}

// scoreKey identifies a score request. Coordinates are keyed at full
// precision; addresses by their normalised form.
func scoreKey(loc *geo.Point, address string, radius float64) string {
	r := strconv.FormatFloat(radius, 'g', -1, 64)
	if loc != nil {
		return fmt.Sprintf("p:%s,%s@%s",
			strconv.FormatFloat(loc.Lat, 'g', -1, 64), strconv.FormatFloat(loc.Lon, 'g', -1, 64), r)
	}
	return "a:" + resolve.Normalize(address) + "@" + r
}

// Get returns a result cached for gen, or nil.
func (c *ScoreCache) Get(gen uint64, key string) *scoring.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.advance(gen) {
		return nil
	}
	res, ok := c.entries[key]
	if !ok {
		return nil
	}
	c.moveToEnd(key)
	return res
}

// Put adds a result computed against gen, evicting the oldest entry if
// full. Results from a superseded generation are dropped.
func (c *ScoreCache) Put(gen uint64, key string, res *scoring.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.advance(gen) {
		return
	}

	if _, ok := c.entries[key]; ok {
		c.entries[key] = res
		c.moveToEnd(key)
		return
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = res
	c.order = append(c.order, key)
}

// Purge empties the cache.
func (c *ScoreCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge()
}

func (c *ScoreCache) purge() {
	c.entries = make(map[string]*scoring.Result)
	c.order = nil
}

// advance moves the cache to gen, emptying it when gen is newer. It
// reports false when gen is older than the cached generation.
func (c *ScoreCache) advance(gen uint64) bool {
	switch {
	case gen < c.gen:
		return false
	case gen > c.gen:
		c.purge()
		c.gen = gen
	}
	return true
}

func (c *ScoreCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ScoreCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}
