// Package geo holds the one shared great-circle distance implementation
// used by the region partitioner, the savings constructor, and the
// distance oracle's driver-near-point fallback — a single Haversine
// formula so results stay deterministic across callers.
package geo

import (
	"fmt"
	"math"

	"dispatch/internal/domain"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b domain.Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// CellKey quantises a point onto the distance cache's grid so that two
// points within the same ~100m cell share a cache entry.
func CellKey(p domain.Point) string {
	latCell := int64(math.Round(p.Lat / domain.GridResolutionDegrees))
	lngCell := int64(math.Round(p.Lng / domain.GridResolutionDegrees))
	return fmt.Sprintf("%d:%d", latCell, lngCell)
}

// PairKey builds a symmetric cache key for (from, to, profile): swapping
// from and to yields the same key, since routing distance for the grid
// pre-filter is treated as undirected.
func PairKey(from, to domain.Point, profile domain.RoutingProfile) string {
	a, b := CellKey(from), CellKey(to)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%s", a, b, profile)
}
