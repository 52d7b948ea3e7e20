// Package route implements the VRPPD stop-sequence builder shared by the
// Savings Constructor, the ALNS Improver, and the Offer Lifecycle's
// post-accept/reject route rebuild.
package route

import (
	"context"
	"errors"
	"sort"
	"time"

	"dispatch/internal/domain"
)

// ErrInfeasible is returned when no feasible stop exists mid-sequence: the
// order set cannot be served by this driver under the capacity (spec 4.3).
var ErrInfeasible = errors.New("route: infeasible for this driver and capacity")

// StopKind tags a stop as a pickup or a delivery of one order.
type StopKind int

const (
	StopPickup StopKind = iota
	StopDelivery
)

// Stop is one position in a built route.
type Stop struct {
	OrderID string
	Kind    StopKind
	Point   domain.Point

	ArrivalTime   time.Time
	DistanceFromPrevM float64
}

// DistanceFunc resolves a (meters, seconds) pair between two points; the
// builder is otherwise distance-source agnostic (it is handed either the
// Distance Oracle or a straight-line fallback).
type DistanceFunc func(ctx context.Context, from, to domain.Point) (meters, seconds float64, err error)

const (
	pickupServiceTime   = 5 * time.Minute
	deliveryServiceTime = 3 * time.Minute
)

// Build produces a feasible VRPPD stop sequence for one driver and a set
// of orders, starting from startPoint at startTime, under capacity K. Ties
// among equally-near feasible stops break by order id, then pickup before
// delivery, for determinism.
func Build(ctx context.Context, orders []*domain.Order, capacity int, startPoint domain.Point, startTime time.Time, dist DistanceFunc) ([]Stop, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	pickedUp := make(map[string]bool, len(orders))
	delivered := make(map[string]bool, len(orders))
	load := 0

	stops := make([]Stop, 0, len(orders)*2)
	cur := startPoint
	curTime := startTime

	remaining := len(orders) * 2
	for remaining > 0 {
		candidateOrders := candidateIDs(orders, pickedUp, delivered)

		var bestOrderID string
		var bestKind StopKind
		var bestDistM, bestDurS float64
		found := false

		for _, id := range candidateOrders {
			o := byID[id]
			isDelivery := pickedUp[id] && !delivered[id]
			isPickup := !pickedUp[id]

			if isDelivery {
				m, s, err := dist(ctx, cur, o.Dropoff)
				if err != nil {
					continue
				}
				if !found || better(m, id, StopDelivery, bestDistM, bestOrderID, bestKind) {
					bestOrderID, bestKind, bestDistM, bestDurS, found = id, StopDelivery, m, s, true
				}
			} else if isPickup && load < capacity {
				m, s, err := dist(ctx, cur, o.Pickup)
				if err != nil {
					continue
				}
				if !found || better(m, id, StopPickup, bestDistM, bestOrderID, bestKind) {
					bestOrderID, bestKind, bestDistM, bestDurS, found = id, StopPickup, m, s, true
				}
			}
		}

		if !found {
			return nil, ErrInfeasible
		}

		o := byID[bestOrderID]
		var point domain.Point
		var service time.Duration
		if bestKind == StopPickup {
			point = o.Pickup
			pickedUp[bestOrderID] = true
			load++
			service = pickupServiceTime
		} else {
			point = o.Dropoff
			delivered[bestOrderID] = true
			load--
			service = deliveryServiceTime
		}

		curTime = curTime.Add(time.Duration(bestDurS) * time.Second).Add(service)
		stops = append(stops, Stop{
			OrderID: bestOrderID, Kind: bestKind, Point: point,
			ArrivalTime: curTime, DistanceFromPrevM: bestDistM,
		})
		cur = point
		remaining--
	}

	return stops, nil
}

// candidateIDs returns order ids still needing a stop, sorted for
// deterministic tie-breaking.
func candidateIDs(orders []*domain.Order, pickedUp, delivered map[string]bool) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if !delivered[o.ID] {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// better reports whether candidate (distM, id, kind) beats the current
// best on (distance asc, order id asc, pickup-before-delivery).
func better(distM float64, id string, kind StopKind, bestDistM float64, bestID string, bestKind StopKind) bool {
	if distM != bestDistM {
		return distM < bestDistM
	}
	if id != bestID {
		return id < bestID
	}
	return kind == StopPickup && bestKind == StopDelivery
}

// TotalDistanceM sums DistanceFromPrevM across a built route.
func TotalDistanceM(stops []Stop) float64 {
	var total float64
	for _, s := range stops {
		total += s.DistanceFromPrevM
	}
	return total
}
