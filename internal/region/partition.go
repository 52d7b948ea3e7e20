// Package region implements the Region Partitioner: density-based
// clustering of order pickup points so independent groups of orders and
// drivers can be matched in parallel.
package region

import (
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
)

// DefaultMaxRadiusKM is the clustering radius used when the caller
// supplies none (spec 4.2).
const DefaultMaxRadiusKM = 50.0

// DefaultMinPointsPerRegion is the minimum cluster size before an order
// is considered unreachable by any cluster and placed in the trailing
// singleton region.
const DefaultMinPointsPerRegion = 1

// Region is an independent subset of orders and drivers matchable without
// reference to any other region.
type Region struct {
	Orders  []*domain.Order
	Drivers []*domain.Driver
}

// Partition groups orders into density-based clusters on their pickup
// points, then assigns each driver to the region whose centroid is
// nearest under the great-circle distance. No order appears in two
// regions.
func Partition(orders []*domain.Order, drivers []*domain.Driver, maxRadiusKM, minPointsPerRegion float64) []Region {
	if maxRadiusKM <= 0 {
		maxRadiusKM = DefaultMaxRadiusKM
	}
	if minPointsPerRegion <= 0 {
		minPointsPerRegion = DefaultMinPointsPerRegion
	}
	radiusM := maxRadiusKM * 1000

	clusters := clusterByPickup(orders, radiusM, int(minPointsPerRegion))

	regions := make([]Region, 0, len(clusters)+1)
	centroids := make([]domain.Point, 0, len(clusters))
	for _, c := range clusters {
		regions = append(regions, Region{Orders: c})
		centroids = append(centroids, centroidOf(c))
	}

	var unreachable []*domain.Order
	assigned := make(map[string]bool, len(orders))
	for _, c := range clusters {
		for _, o := range c {
			assigned[o.ID] = true
		}
	}
	for _, o := range orders {
		if !assigned[o.ID] {
			unreachable = append(unreachable, o)
		}
	}
	if len(unreachable) > 0 {
		regions = append(regions, Region{Orders: unreachable})
		centroids = append(centroids, centroidOf(unreachable))
	}

	for _, d := range drivers {
		idx := nearestCentroid(d.Location.Point, centroids)
		if idx < 0 {
			continue
		}
		regions[idx].Drivers = append(regions[idx].Drivers, d)
	}

	return regions
}

// clusterByPickup is a simple density-based clustering: repeatedly pick an
// unclustered order as a seed, absorb every unclustered order within
// radiusM of the seed's pickup, then grow the cluster by absorbing orders
// within radiusM of any member (single-linkage), until no more absorb.
// Clusters below minPoints are dissolved back into singletons (handled by
// the caller via the unreachable set).
func clusterByPickup(orders []*domain.Order, radiusM float64, minPoints int) [][]*domain.Order {
	sorted := make([]*domain.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	visited := make(map[string]bool, len(sorted))
	var clusters [][]*domain.Order

	for _, seed := range sorted {
		if visited[seed.ID] {
			continue
		}
		cluster := []*domain.Order{seed}
		visited[seed.ID] = true

		for i := 0; i < len(cluster); i++ {
			member := cluster[i]
			for _, cand := range sorted {
				if visited[cand.ID] {
					continue
				}
				if geo.HaversineMeters(member.Pickup, cand.Pickup) <= radiusM {
					visited[cand.ID] = true
					cluster = append(cluster, cand)
				}
			}
		}

		if len(cluster) >= minPoints {
			clusters = append(clusters, cluster)
		} else {
			for _, o := range cluster {
				delete(visited, o.ID)
			}
		}
	}

	return clusters
}

func centroidOf(orders []*domain.Order) domain.Point {
	if len(orders) == 0 {
		return domain.Point{}
	}
	var lat, lng float64
	for _, o := range orders {
		lat += o.Pickup.Lat
		lng += o.Pickup.Lng
	}
	n := float64(len(orders))
	return domain.Point{Lat: lat / n, Lng: lng / n}
}

func nearestCentroid(p domain.Point, centroids []domain.Point) int {
	best, bestDist := -1, 0.0
	for i, c := range centroids {
		d := geo.HaversineMeters(p, c)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
