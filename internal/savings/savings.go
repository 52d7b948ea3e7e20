// Package savings implements the Clarke-Wright-style savings constructor:
// the initial feasible multi-route solution the ALNS Improver then
// refines.
package savings

import (
	"context"
	"errors"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/route"
)

var (
	ErrNoOrders  = errors.New("savings: no orders")
	ErrNoDrivers = errors.New("savings: no drivers")
)

// pair is one candidate merge with its saving value.
type pair struct {
	i, j   string
	saving float64
}

// routePlan is one driver's current order set during construction.
type routePlan struct {
	driver *domain.Driver
	orders []*domain.Order
}

// Build runs the savings construction over orders and drivers, producing a
// DraftGroup tagged "savings". dist resolves a single-pair distance (the
// Distance Oracle in production, a stub in tests).
func Build(ctx context.Context, sessionID string, orders []*domain.Order, drivers []*domain.Driver, dist route.DistanceFunc) (*domain.DraftGroup, error) {
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	if len(drivers) == 0 {
		return nil, ErrNoDrivers
	}

	start := time.Now()
	depot := centroid(orders)

	plans := seedRoundRobin(orders, drivers)

	savingsList := computeSavings(ctx, orders, depot, dist)
	sort.Slice(savingsList, func(i, j int) bool { return savingsList[i].saving > savingsList[j].saving })

	ownerOf := make(map[string]int, len(orders)*len(drivers))
	for idx, p := range plans {
		for _, o := range p.orders {
			ownerOf[o.ID] = idx
		}
	}

	for _, s := range savingsList {
		ri, rj := ownerOf[s.i], ownerOf[s.j]
		if ri == rj || ri < 0 || rj < 0 {
			continue
		}
		if !canMerge(plans[ri], plans[rj]) {
			continue
		}
		merged := append(append([]*domain.Order{}, plans[ri].orders...), plans[rj].orders...)
		if _, err := route.Build(ctx, merged, plans[ri].driver.MaxConcurrentLoad, plans[ri].driver.Location.Point, start, dist); err != nil {
			continue
		}
		plans[ri].orders = merged
		for _, o := range plans[rj].orders {
			ownerOf[o.ID] = ri
		}
		plans[rj].orders = nil
	}

	group := &domain.DraftGroup{
		SessionID:           sessionID,
		Algorithm:           domain.DraftAlgorithmSavings,
		ConstraintsViolated: map[domain.DraftConstraint]bool{},
	}

	for _, p := range plans {
		if len(p.orders) == 0 {
			continue
		}
		stops, err := route.Build(ctx, p.orders, p.driver.MaxConcurrentLoad, p.driver.Location.Point, start, dist)
		if err != nil {
			group.Violate(domain.DraftConstraintVRPPD)
			continue
		}
		appendAssignments(group, p.driver.ID, stops)
	}

	group.ComputeElapsed = time.Since(start)
	group.TotalDistanceMeters = sumDistance(group)
	group.TotalTravelTimeSeconds = sumTravelTime(group, start)
	group.QualityScore = group.TotalTravelTimeSeconds

	return group, nil
}

func seedRoundRobin(orders []*domain.Order, drivers []*domain.Driver) []*routePlan {
	sorted := make([]*domain.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	plans := make([]*routePlan, len(drivers))
	for i, d := range drivers {
		plans[i] = &routePlan{driver: d}
	}

	di := 0
	for _, o := range sorted {
		for attempt := 0; attempt < len(plans); attempt++ {
			idx := (di + attempt) % len(plans)
			if !o.HasRejected(plans[idx].driver.ID) {
				plans[idx].orders = append(plans[idx].orders, o)
				di = (idx + 1) % len(plans)
				break
			}
		}
	}
	return plans
}

func canMerge(a, b *routePlan) bool {
	if len(a.orders) == 0 || len(b.orders) == 0 {
		return false
	}
	for _, o := range b.orders {
		if o.HasRejected(a.driver.ID) {
			return false
		}
	}
	return len(a.orders)+len(b.orders) <= a.driver.MaxConcurrentLoad*4
}

func computeSavings(ctx context.Context, orders []*domain.Order, depot domain.Point, dist route.DistanceFunc) []pair {
	var out []pair
	for _, oi := range orders {
		for _, oj := range orders {
			if oi.ID >= oj.ID {
				continue
			}
			dDepotI, _, err1 := dist(ctx, depot, oi.Pickup)
			dDepotJ, _, err2 := dist(ctx, depot, oj.Pickup)
			dIJ, _, err3 := dist(ctx, oi.Dropoff, oj.Pickup)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			out = append(out, pair{i: oi.ID, j: oj.ID, saving: dDepotI + dDepotJ - dIJ})
		}
	}
	return out
}

func centroid(orders []*domain.Order) domain.Point {
	var lat, lng float64
	for _, o := range orders {
		lat += o.Pickup.Lat
		lng += o.Pickup.Lng
	}
	n := float64(len(orders))
	return domain.Point{Lat: lat / n, Lng: lng / n}
}

func appendAssignments(group *domain.DraftGroup, driverID string, stops []route.Stop) {
	pickupDone := make(map[string]domain.DraftAssignment)
	seq := 1
	for _, s := range stops {
		if s.Kind == route.StopPickup {
			pickupDone[s.OrderID] = domain.DraftAssignment{
				OrderID: s.OrderID, DriverID: driverID, Sequence: seq,
				EstimatedPickup: s.ArrivalTime, DistanceToPickupM: s.DistanceFromPrevM,
			}
			seq++
			continue
		}
		da := pickupDone[s.OrderID]
		da.EstimatedDelivery = s.ArrivalTime
		da.DistanceToDropoffM = s.DistanceFromPrevM
		da.InsertionCost = da.DistanceToPickupM + da.DistanceToDropoffM
		group.Assignments = append(group.Assignments, da)
	}
}

func sumDistance(g *domain.DraftGroup) float64 {
	var total float64
	for _, a := range g.Assignments {
		total += a.DistanceToPickupM + a.DistanceToDropoffM
	}
	return total
}

func sumTravelTime(g *domain.DraftGroup, start time.Time) float64 {
	var total float64
	for _, a := range g.Assignments {
		total += a.EstimatedDelivery.Sub(start).Seconds()
	}
	return total
}
