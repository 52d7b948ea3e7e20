// Package alns implements the Adaptive Large Neighbourhood Search
// improver: destroy/repair local search over a savings-seeded solution,
// with adaptive operator weights and simulated-annealing acceptance.
package alns

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/metrics"
	"dispatch/internal/route"
)

// UnassignedPenaltySeconds is U in the objective: cost = travel time +
// U * unassignedCount (spec 4.5).
const UnassignedPenaltySeconds = 10000.0

const (
	destroyFraction   = 0.15
	maxWeight         = 5.0
	rewardFactor      = 1.5
	penaltyFactor     = 0.95
	stallLimit        = 50
	annealingStartPct = 0.05
	annealingCooling  = 0.995
)

// solution is the improver's working representation: one order list per
// driver plus the leftover unassigned pool.
type solution struct {
	routes     map[string][]*domain.Order // driverID -> orders
	unassigned []*domain.Order
}

// Improve runs ALNS for up to timeBudget, starting from the savings
// DraftGroup's placement, and returns a new DraftGroup tagged "alns" with
// equal or lower objective cost. seed drives the destroy/repair PRNG for
// test determinism; production callers pass a clock-derived seed.
func Improve(ctx context.Context, sessionID string, initial *domain.DraftGroup, drivers []*domain.Driver, byOrderID map[string]*domain.Order, timeBudget time.Duration, seed int64, dist route.DistanceFunc) *domain.DraftGroup {
	start := time.Now()
	rng := rand.New(rand.NewSource(seed))

	byDriver := make(map[string]*domain.Driver, len(drivers))
	for _, d := range drivers {
		byDriver[d.ID] = d
	}

	cur := solutionFromDraft(initial, byOrderID, drivers)
	best := cloneSolution(cur)
	bestCost := evaluate(ctx, best, byDriver, dist)

	destroyOps := []string{"random", "worst", "related"}
	repairOps := []string{"greedy", "regret"}
	destroyWeights := map[string]float64{"random": 1.0, "worst": 1.2, "related": 1.5}
	repairWeights := map[string]float64{"greedy": 1.5, "regret": 1.3}

	temperature := bestCost * annealingStartPct
	if temperature <= 0 {
		temperature = 1
	}

	stall := 0
	deadline := start.Add(timeBudget)

	for time.Now().Before(deadline) && stall < stallLimit {
		metrics.ALNSIterationsTotal.Inc()
		dOp := weightedChoice(rng, destroyOps, destroyWeights)
		rOp := weightedChoice(rng, repairOps, repairWeights)

		candidate := cloneSolution(cur)
		removed := destroy(rng, candidate, dOp, dist)
		repair(ctx, candidate, removed, rOp, byDriver, dist)

		cost := evaluate(ctx, candidate, byDriver, dist)
		curCost := evaluate(ctx, cur, byDriver, dist)

		accept := cost <= curCost
		if !accept && temperature > 0 {
			accept = rng.Float64() < math.Exp(-(cost-curCost)/temperature)
		}

		if accept {
			cur = candidate
			if cost < bestCost {
				best, bestCost = cloneSolution(cur), cost
				stall = 0
				destroyWeights[dOp] = clamp(destroyWeights[dOp]*rewardFactor, maxWeight)
				repairWeights[rOp] = clamp(repairWeights[rOp]*rewardFactor, maxWeight)
			} else {
				stall++
				destroyWeights[dOp] *= penaltyFactor
				repairWeights[rOp] *= penaltyFactor
			}
		} else {
			stall++
			destroyWeights[dOp] *= penaltyFactor
			repairWeights[rOp] *= penaltyFactor
		}

		temperature *= annealingCooling
	}

	group := draftFromSolution(ctx, sessionID, best, byDriver, dist, start)
	return group
}

func solutionFromDraft(d *domain.DraftGroup, byOrderID map[string]*domain.Order, drivers []*domain.Driver) *solution {
	s := &solution{routes: make(map[string][]*domain.Order)}
	assigned := make(map[string]bool)
	for _, a := range d.Assignments {
		o := byOrderID[a.OrderID]
		if o == nil {
			continue
		}
		s.routes[a.DriverID] = append(s.routes[a.DriverID], o)
		assigned[o.ID] = true
	}
	for _, o := range byOrderID {
		if !assigned[o.ID] {
			s.unassigned = append(s.unassigned, o)
		}
	}
	return s
}

func cloneSolution(s *solution) *solution {
	out := &solution{routes: make(map[string][]*domain.Order, len(s.routes))}
	for k, v := range s.routes {
		cp := make([]*domain.Order, len(v))
		copy(cp, v)
		out.routes[k] = cp
	}
	out.unassigned = append([]*domain.Order{}, s.unassigned...)
	return out
}

func weightedChoice(rng *rand.Rand, ops []string, weights map[string]float64) string {
	var total float64
	for _, op := range ops {
		total += weights[op]
	}
	r := rng.Float64() * total
	for _, op := range ops {
		r -= weights[op]
		if r <= 0 {
			return op
		}
	}
	return ops[len(ops)-1]
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

// destroy removes ~15% of assigned orders from candidate and returns them.
func destroy(rng *rand.Rand, s *solution, op string, dist route.DistanceFunc) []*domain.Order {
	all := flatten(s)
	k := int(math.Ceil(float64(len(all)) * destroyFraction))
	if k == 0 || len(all) == 0 {
		return nil
	}

	var victims []*domain.Order
	switch op {
	case "random":
		perm := rng.Perm(len(all))
		for i := 0; i < k && i < len(perm); i++ {
			victims = append(victims, all[perm[i]])
		}
	case "worst":
		costs := localInsertionCosts(s)
		sort.Slice(all, func(i, j int) bool { return costs[all[i].ID] > costs[all[j].ID] })
		victims = all[:minInt(k, len(all))]
	case "related":
		seed := all[rng.Intn(len(all))]
		sort.Slice(all, func(i, j int) bool {
			return haversineLite(seed, all[i]) < haversineLite(seed, all[j])
		})
		victims = all[:minInt(k, len(all))]
	}

	removeFromRoutes(s, victims)
	return victims
}

// localInsertionCosts maps each order to dist-to-prev + dist-to-next for its pickup
// and dropoff within its route (spec 4.5's "worst" removal criterion): the
// detour its stops introduce relative to the stop before and after them.
func localInsertionCosts(s *solution) map[string]float64 {
	costs := make(map[string]float64)
	for _, orders := range s.routes {
		for i, o := range orders {
			prev := o.Pickup
			if i > 0 {
				prev = orders[i-1].Dropoff
			}
			next := o.Dropoff
			if i < len(orders)-1 {
				next = orders[i+1].Pickup
			}
			costs[o.ID] = geo.HaversineMeters(prev, o.Pickup) + geo.HaversineMeters(o.Dropoff, next)
		}
	}
	return costs
}

func haversineLite(a, b *domain.Order) float64 {
	dLat := a.Pickup.Lat - b.Pickup.Lat
	dLng := a.Pickup.Lng - b.Pickup.Lng
	return dLat*dLat + dLng*dLng
}

func flatten(s *solution) []*domain.Order {
	var all []*domain.Order
	for _, orders := range s.routes {
		all = append(all, orders...)
	}
	return all
}

func removeFromRoutes(s *solution, victims []*domain.Order) {
	victimSet := make(map[string]bool, len(victims))
	for _, v := range victims {
		victimSet[v.ID] = true
	}
	for driverID, orders := range s.routes {
		kept := orders[:0:0]
		for _, o := range orders {
			if victimSet[o.ID] {
				continue
			}
			kept = append(kept, o)
		}
		s.routes[driverID] = kept
	}
	s.unassigned = append(s.unassigned, victims...)
}

// repair reinserts removed orders using the named operator, eligible
// routes only (driver not in the order's rejection set).
func repair(ctx context.Context, s *solution, removed []*domain.Order, op string, byDriver map[string]*domain.Driver, dist route.DistanceFunc) {
	switch op {
	case "greedy":
		for _, o := range removed {
			insertGreedy(ctx, s, o, byDriver, dist)
		}
	case "regret":
		pending := append([]*domain.Order{}, removed...)
		for len(pending) > 0 {
			bestIdx, bestRegret := -1, -math.MaxFloat64
			for i, o := range pending {
				regret := regretOf(ctx, s, o, byDriver, dist)
				if regret > bestRegret {
					bestIdx, bestRegret = i, regret
				}
			}
			if bestIdx < 0 {
				break
			}
			insertGreedy(ctx, s, pending[bestIdx], byDriver, dist)
			pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
		}
	}
}

func insertGreedy(ctx context.Context, s *solution, o *domain.Order, byDriver map[string]*domain.Driver, dist route.DistanceFunc) {
	bestDriverID := ""
	bestCost := math.MaxFloat64

	for driverID, orders := range s.routes {
		d := byDriver[driverID]
		if d == nil || o.HasRejected(driverID) {
			continue
		}
		trial := append(append([]*domain.Order{}, orders...), o)
		stops, err := route.Build(ctx, trial, d.MaxConcurrentLoad, d.Location.Point, time.Now(), dist)
		if err != nil {
			continue
		}
		cost := route.TotalDistanceM(stops)
		if cost < bestCost {
			bestCost, bestDriverID = cost, driverID
		}
	}

	if bestDriverID == "" {
		s.unassigned = append(s.unassigned, o)
		return
	}
	s.routes[bestDriverID] = append(s.routes[bestDriverID], o)
	removeFromUnassigned(s, o.ID)
}

func removeFromUnassigned(s *solution, orderID string) {
	kept := s.unassigned[:0:0]
	for _, o := range s.unassigned {
		if o.ID != orderID {
			kept = append(kept, o)
		}
	}
	s.unassigned = kept
}

func regretOf(ctx context.Context, s *solution, o *domain.Order, byDriver map[string]*domain.Driver, dist route.DistanceFunc) float64 {
	var costs []float64
	for driverID, orders := range s.routes {
		d := byDriver[driverID]
		if d == nil || o.HasRejected(driverID) {
			continue
		}
		trial := append(append([]*domain.Order{}, orders...), o)
		stops, err := route.Build(ctx, trial, d.MaxConcurrentLoad, d.Location.Point, time.Now(), dist)
		if err != nil {
			continue
		}
		costs = append(costs, route.TotalDistanceM(stops))
	}
	sort.Float64s(costs)
	if len(costs) == 0 {
		return math.MaxFloat64 // must be placed somewhere; highest regret
	}
	if len(costs) == 1 {
		return costs[0]
	}
	return costs[1] - costs[0]
}

func evaluate(ctx context.Context, s *solution, byDriver map[string]*domain.Driver, dist route.DistanceFunc) float64 {
	now := time.Now()
	var total float64
	for driverID, orders := range s.routes {
		if len(orders) == 0 {
			continue
		}
		d := byDriver[driverID]
		stops, err := route.Build(ctx, orders, d.MaxConcurrentLoad, d.Location.Point, now, dist)
		if err != nil {
			total += float64(len(orders)) * UnassignedPenaltySeconds
			continue
		}
		for _, st := range stops {
			if st.Kind == route.StopDelivery {
				total += st.ArrivalTime.Sub(now).Seconds()
			}
		}
	}
	total += float64(len(s.unassigned)) * UnassignedPenaltySeconds
	return total
}

func draftFromSolution(ctx context.Context, sessionID string, s *solution, byDriver map[string]*domain.Driver, dist route.DistanceFunc, start time.Time) *domain.DraftGroup {
	group := &domain.DraftGroup{
		SessionID:           sessionID,
		Algorithm:           domain.DraftAlgorithmALNS,
		ConstraintsViolated: map[domain.DraftConstraint]bool{},
	}

	for driverID, orders := range s.routes {
		if len(orders) == 0 {
			continue
		}
		d := byDriver[driverID]
		stops, err := route.Build(ctx, orders, d.MaxConcurrentLoad, d.Location.Point, start, dist)
		if err != nil {
			group.Violate(domain.DraftConstraintVRPPD)
			continue
		}
		appendStops(group, driverID, stops)
	}

	if len(s.unassigned) > 0 {
		group.Violate(domain.DraftConstraintVRPPD)
	}

	group.ComputeElapsed = time.Since(start)
	for _, a := range group.Assignments {
		group.TotalDistanceMeters += a.DistanceToPickupM + a.DistanceToDropoffM
		group.TotalTravelTimeSeconds += a.EstimatedDelivery.Sub(start).Seconds()
	}
	group.QualityScore = group.TotalTravelTimeSeconds + float64(len(s.unassigned))*UnassignedPenaltySeconds

	return group
}

func appendStops(group *domain.DraftGroup, driverID string, stops []route.Stop) {
	pending := make(map[string]domain.DraftAssignment)
	seq := 1
	for _, st := range stops {
		if st.Kind == route.StopPickup {
			pending[st.OrderID] = domain.DraftAssignment{
				OrderID: st.OrderID, DriverID: driverID, Sequence: seq,
				EstimatedPickup: st.ArrivalTime, DistanceToPickupM: st.DistanceFromPrevM,
			}
			seq++
			continue
		}
		da := pending[st.OrderID]
		da.EstimatedDelivery = st.ArrivalTime
		da.DistanceToDropoffM = st.DistanceFromPrevM
		da.InsertionCost = da.DistanceToPickupM + da.DistanceToDropoffM
		group.Assignments = append(group.Assignments, da)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
