package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverGeoKey = "drivers:geo"

// GeoFix is one driver's position as read back from the geo-index.
type GeoFix struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// LocationStore maintains the Redis geo-index of driver positions, kept
// current off every location ping alongside the durable last-known-position
// columns on the drivers table. Nothing in the matching pipeline reads it;
// the Region Partitioner uses driver positions loaded from the drivers table.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns driver IDs within the given radius (in kilometers).
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]GeoFix, error) {
	results, err := s.client.GeoRadius(ctx, driverGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	fixes := make([]GeoFix, 0, len(results))
	for _, r := range results {
		fixes = append(fixes, GeoFix{
			DriverID: r.Name,
			Lat:      r.Latitude,
			Lng:      r.Longitude,
		})
	}

	return fixes, nil
}

// RemoveLocation removes a driver's location from the geo index so the
// stale fix no longer surfaces in FindNearbyDrivers.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverGeoKey, driverID).Err()
}
