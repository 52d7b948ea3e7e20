// Package draft implements the Draft Orchestrator: runs several candidate
// constructions in parallel, validates VRPPD/capacity/rejection
// invariants, and selects the cheapest feasible candidate.
package draft

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"dispatch/internal/alns"
	"dispatch/internal/domain"
	"dispatch/internal/metrics"
	"dispatch/internal/route"
	"dispatch/internal/savings"
)

// ErrNoFeasibleDraft is raised when every candidate has at least one
// violated constraint (spec 4.6).
var ErrNoFeasibleDraft = errors.New("draft: no feasible candidate")

// DefaultCandidateCount is k, the number of candidates generated per run.
const DefaultCandidateCount = 3

// alnsTimeBudgets are applied to candidates after the first (pure
// savings): savings+ALNS(2s), savings+ALNS(5s).
var alnsTimeBudgets = []time.Duration{2 * time.Second, 5 * time.Second}

// GenerateCandidates builds k candidate DraftGroups for one region's
// orders and drivers, validates each against the VRPPD/capacity/rejection
// invariants, and returns the cheapest feasible one.
func GenerateCandidates(ctx context.Context, sessionID string, orders []*domain.Order, drivers []*domain.Driver, k int, seed int64, dist route.DistanceFunc) (*domain.DraftGroup, error) {
	if k <= 0 {
		k = DefaultCandidateCount
	}

	if len(orders) == 0 || len(drivers) == 0 {
		return &domain.DraftGroup{
			SessionID:           sessionID,
			IsSelected:          true,
			ConstraintsViolated: map[domain.DraftConstraint]bool{},
		}, nil
	}

	byOrderID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		byOrderID[o.ID] = o
	}

	candidates := make([]*domain.DraftGroup, k)
	g, gctx := errgroup.WithContext(ctx)

	for idx := 0; idx < k; idx++ {
		idx := idx
		g.Go(func() error {
			base, err := savings.Build(gctx, sessionID, orders, drivers, dist)
			if err != nil {
				return err
			}
			if idx == 0 {
				candidates[idx] = base
				return nil
			}
			budget := alnsTimeBudgets[minInt(idx-1, len(alnsTimeBudgets)-1)]
			candidates[idx] = alns.Improve(gctx, sessionID, base, drivers, byOrderID, budget, seed+int64(idx), dist)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if c == nil {
			continue
		}
		validate(c, drivers, byOrderID)
		if c.Feasible() {
			metrics.DraftCandidatesFeasible.WithLabelValues("true").Inc()
		} else {
			metrics.DraftCandidatesFeasible.WithLabelValues("false").Inc()
		}
	}

	return selectBest(sessionID, candidates)
}

// validate checks VRPPD, capacity, and rejection invariants (spec 4.6),
// recording any violation without discarding the candidate.
func validate(g *domain.DraftGroup, drivers []*domain.Driver, byOrderID map[string]*domain.Order) {
	byDriverCapacity := make(map[string]int, len(drivers))
	for _, d := range drivers {
		byDriverCapacity[d.ID] = d.MaxConcurrentLoad
	}

	byDriver := make(map[string][]domain.DraftAssignment)
	for _, a := range g.Assignments {
		byDriver[a.DriverID] = append(byDriver[a.DriverID], a)
	}

	for driverID, assignments := range byDriver {
		sort.Slice(assignments, func(i, j int) bool { return assignments[i].Sequence < assignments[j].Sequence })
		for _, a := range assignments {
			if !a.EstimatedPickup.Before(a.EstimatedDelivery) {
				g.Violate(domain.DraftConstraintVRPPD)
			}
			if order, ok := byOrderID[a.OrderID]; ok && order.HasRejected(a.DriverID) {
				g.Violate(domain.DraftConstraintRejection)
			}
		}
		// Concurrent load at each pickup instant: orders picked up at or
		// before it and not yet delivered.
		cap, ok := byDriverCapacity[driverID]
		for _, a := range assignments {
			onboard := 0
			for _, b := range assignments {
				if !b.EstimatedPickup.After(a.EstimatedPickup) && b.EstimatedDelivery.After(a.EstimatedPickup) {
					onboard++
				}
			}
			if ok && onboard > cap {
				g.Violate(domain.DraftConstraintCapacity)
			}
		}
	}
}

func selectBest(sessionID string, candidates []*domain.DraftGroup) (*domain.DraftGroup, error) {
	var feasible []*domain.DraftGroup
	for _, c := range candidates {
		if c != nil && c.Feasible() {
			feasible = append(feasible, c)
		}
	}
	if len(feasible) == 0 {
		return nil, ErrNoFeasibleDraft
	}

	sort.Slice(feasible, func(i, j int) bool {
		a, b := feasible[i], feasible[j]
		if a.TotalTravelTimeSeconds != b.TotalTravelTimeSeconds {
			return a.TotalTravelTimeSeconds < b.TotalTravelTimeSeconds
		}
		if a.TotalDistanceMeters != b.TotalDistanceMeters {
			return a.TotalDistanceMeters < b.TotalDistanceMeters
		}
		return a.SessionID < b.SessionID
	})

	winner := feasible[0]
	winner.IsSelected = true
	return winner, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
