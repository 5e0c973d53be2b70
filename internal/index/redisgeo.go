package index

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hazardscope/hazardscope/pkg/backend"
	"github.com/hazardscope/hazardscope/pkg/geo"
)

// Redis GEO cannot store latitudes beyond the Web Mercator limit.
const maxRedisLat = 85.05112878

// releaseGrace keeps a replaced snapshot's key alive for queries still
// running against it.
const releaseGrace = time.Minute

const geoAddBatch = 500

// RedisGeo is a backend.GeoIndex over Redis GEOADD/GEOSEARCH. Each snapshot
// gets its own key, so a reload never disturbs queries on the previous one.
type RedisGeo struct {
	client redis.UniversalClient
	prefix string
}

var _ backend.GeoIndex = (*RedisGeo)(nil)

func NewRedisGeo(client redis.UniversalClient, prefix string) *RedisGeo {
	if prefix == "" {
		prefix = "hazardscope:geo"
	}
	return &RedisGeo{client: client, prefix: prefix}
}

func (g *RedisGeo) Name() string { return "redis" }

func (g *RedisGeo) Build(ctx context.Context, entries []backend.GeoEntry) (backend.GeoLookup, error) {
	l := &redisLookup{client: g.client, key: g.prefix + ":" + uuid.NewString()}
	locs := make([]*redis.GeoLocation, 0, len(entries))
	for _, e := range entries {
		if !e.Point.Valid() {
			continue
		}
		if math.Abs(e.Point.Lat) > maxRedisLat {
			l.unindexed = append(l.unindexed, e.Key)
			continue
		}
		locs = append(locs, &redis.GeoLocation{Name: e.Key, Longitude: e.Point.Lon, Latitude: e.Point.Lat})
	}

	pipe := g.client.Pipeline()
	for start := 0; start < len(locs); start += geoAddBatch {
		end := min(start+geoAddBatch, len(locs))
		pipe.GeoAdd(ctx, l.key, locs[start:end]...)
	}
	if len(locs) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("geoadd %s: %w", l.key, err)
		}
	}
	return l, nil
}

type redisLookup struct {
	client    redis.UniversalClient
	key       string
	unindexed []string // always candidates
}

func (l *redisLookup) Within(ctx context.Context, center geo.Point, miles float64) ([]string, bool, error) {
	if !center.Valid() || math.Abs(center.Lat) > maxRedisLat || math.IsNaN(miles) || math.IsInf(miles, 0) || miles < 0 {
		return nil, false, nil
	}
	keys, err := l.client.GeoSearch(ctx, l.key, &redis.GeoSearchQuery{
		Longitude:  center.Lon,
		Latitude:   center.Lat,
		Radius:     searchRadius(miles),
		RadiusUnit: "mi",
	}).Result()
	if err != nil {
		return nil, false, fmt.Errorf("geosearch %s: %w", l.key, err)
	}
	return append(keys, l.unindexed...), true, nil
}

// searchRadius widens miles to absorb the difference between Redis's earth
// model and ours, and geohash quantisation of stored points.
func searchRadius(miles float64) float64 {
	return miles*1.01 + 0.5
}

func (l *redisLookup) Release(ctx context.Context) error {
	return l.client.Expire(ctx, l.key, releaseGrace).Err()
}
