package geo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"service-dispatch/internal/domain"
)

const partnerGeoKey = "dispatch:partners:geo"

// RedisIndex is an Index backed by Redis GEO commands, shared across service
// instances. Results are re-sorted locally because Redis orders by distance
// only and leaves equal distances unordered.
type RedisIndex struct {
	rdb *redis.Client
}

// NewRedisIndex creates a RedisIndex over the given client.
func NewRedisIndex(rdb *redis.Client) *RedisIndex {
	return &RedisIndex{rdb: rdb}
}

// Upsert records or moves a partner location.
func (r *RedisIndex) Upsert(ctx context.Context, partnerID int64, p domain.GeoPoint) error {
	err := r.rdb.GeoAdd(ctx, partnerGeoKey, &redis.GeoLocation{
		Name:      strconv.FormatInt(partnerID, 10),
		Latitude:  p.Lat,
		Longitude: p.Lng,
	}).Err()
	if err != nil {
		return fmt.Errorf("geo add partner %d: %w", partnerID, err)
	}
	return nil
}

// Remove drops a partner from the index.
func (r *RedisIndex) Remove(ctx context.Context, partnerID int64) error {
	err := r.rdb.ZRem(ctx, partnerGeoKey, strconv.FormatInt(partnerID, 10)).Err()
	if err != nil {
		return fmt.Errorf("geo remove partner %d: %w", partnerID, err)
	}
	return nil
}

// Near returns all partners within radiusKm of center, distance ascending,
// partner id ascending on equal distance.
func (r *RedisIndex) Near(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]Candidate, error) {
	if radiusKm <= 0 {
		return nil, nil
	}

	locs, err := r.rdb.GeoSearchLocation(ctx, partnerGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   center.Lat,
			Longitude:  center.Lng,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}

	out := make([]Candidate, 0, len(locs))
	for _, loc := range locs {
		id, err := strconv.ParseInt(loc.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Candidate{PartnerID: id, DistanceKm: loc.Dist})
	}

	SortCandidates(out)
	return out, nil
}

var _ Index = (*RedisIndex)(nil)
