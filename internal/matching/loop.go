// Package matching implements the bounded-round controller that ties the
// Region Partitioner, Draft Orchestrator, and Offer Lifecycle together
// into one runCycle.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dispatch/internal/domain"
	"dispatch/internal/draft"
	"dispatch/internal/metrics"
	"dispatch/internal/offer"
	"dispatch/internal/region"
	"dispatch/internal/repository"
	"dispatch/internal/route"
)

// DefaultMaxRounds is M, the per-cycle round cap.
const DefaultMaxRounds = 5

// DefaultResponseWindow is T_response, how long a round waits for driver
// responses outside simulation mode.
const DefaultResponseWindow = 3 * time.Minute

// SimulationConfig switches RunCycle from waiting on real driver
// responses to synchronously resolving each offer, for load testing
// (spec 4.8 step 5). AcceptProbability mixes a per-offer coin flip with a
// guaranteed single acceptance per round so a round with offers never
// ends in an all-reject wipeout purely by bad luck.
type SimulationConfig struct {
	AcceptProbability float64
	Seed              int64
}

// Config bounds one matching run.
type Config struct {
	MaxRounds          int
	ResponseWindow     time.Duration
	RegionMaxRadiusKM  float64
	RegionMinPoints    float64
	CandidateCount     int
	Seed               int64
	Simulation         *SimulationConfig
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MaxRounds:         DefaultMaxRounds,
		ResponseWindow:    DefaultResponseWindow,
		RegionMaxRadiusKM: region.DefaultMaxRadiusKM,
		RegionMinPoints:   region.DefaultMinPointsPerRegion,
		CandidateCount:    draft.DefaultCandidateCount,
	}
}

// RoundSummary reports one round's outcome counts.
type RoundSummary struct {
	Round               int
	OrdersPending       int
	DriversFree         int
	OffersCreated       int
	Accepted            int
	Rejected            int
	Expired             int
	TotalDistanceMeters float64
}

// CycleResult is the summary returned to the caller of runCycle.
type CycleResult struct {
	Rounds              []RoundSummary
	TotalDistanceMeters float64
	RemainingPending    int
	ElapsedMs           int64
	Timestamp           time.Time
}

// Loop wires the stores and the optimisation pipeline into one runCycle.
type Loop struct {
	orders      repository.OrderRepository
	drivers     repository.DriverRepository
	assignments repository.AssignmentRepository
	offers      *offer.Service
	dist        route.DistanceFunc
	cfg         Config
	clock       func() time.Time
	drafts      repository.DraftRepository
}

// New builds a Loop.
func New(orders repository.OrderRepository, drivers repository.DriverRepository, assignments repository.AssignmentRepository, offers *offer.Service, dist route.DistanceFunc, cfg Config, clock func() time.Time) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = DefaultResponseWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &Loop{orders: orders, drivers: drivers, assignments: assignments, offers: offers, dist: dist, cfg: cfg, clock: clock}
}

// WithDraftAudit attaches a DraftRepository so every region's candidate
// set is persisted for later inspection. Optional: a Loop with none
// skips persistence entirely rather than erroring.
func (l *Loop) WithDraftAudit(drafts repository.DraftRepository) *Loop {
	l.drafts = drafts
	return l
}

// RunCycle runs up to cfg.MaxRounds rounds of the matching algorithm
// (spec 4.8).
func (l *Loop) RunCycle(ctx context.Context, sessionID string) (*CycleResult, error) {
	start := l.clock()
	result := &CycleResult{Timestamp: start}

	if l.drafts != nil {
		if err := l.drafts.TruncateAll(ctx); err != nil {
			return nil, fmt.Errorf("matching: truncate draft audit: %w", err)
		}
	}

	for round := 1; round <= l.cfg.MaxRounds; round++ {
		summary, err := l.runRound(ctx, sessionID, round)
		if err != nil {
			return nil, fmt.Errorf("matching: round %d: %w", round, err)
		}
		metrics.MatchingRoundsTotal.Inc()
		if summary == nil {
			break
		}
		result.Rounds = append(result.Rounds, *summary)
		result.TotalDistanceMeters += summary.TotalDistanceMeters

		if summary.Rejected == 0 && summary.Expired == 0 {
			break
		}
	}

	pending, err := l.orders.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	result.RemainingPending = len(pending)
	result.ElapsedMs = l.clock().Sub(start).Milliseconds()
	metrics.MatchingCycleDuration.Observe(time.Duration(result.ElapsedMs * int64(time.Millisecond)).Seconds())
	metrics.PendingOrdersGauge.Set(float64(result.RemainingPending))
	return result, nil
}

func (l *Loop) runRound(ctx context.Context, sessionID string, round int) (*RoundSummary, error) {
	pending, err := l.orders.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	available, err := l.drivers.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 || len(available) == 0 {
		return nil, nil
	}

	if err := l.discardOffered(ctx); err != nil {
		return nil, err
	}

	pending, err = l.orders.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	regions := region.Partition(pending, available, l.cfg.RegionMaxRadiusKM, l.cfg.RegionMinPoints)

	summary := &RoundSummary{Round: round, OrdersPending: len(pending), DriversFree: len(available)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range regions {
		i, r := i, r
		if len(r.Orders) == 0 || len(r.Drivers) == 0 {
			continue
		}
		g.Go(func() error {
			regionSessionID := fmt.Sprintf("%s-r%d-%d", sessionID, round, i)
			dg, err := draft.GenerateCandidates(gctx, regionSessionID, r.Orders, r.Drivers, l.cfg.CandidateCount, l.cfg.Seed+int64(i), l.dist)
			if err != nil {
				if errors.Is(err, draft.ErrNoFeasibleDraft) {
					log.Printf("matching: round %d region %d: %v", round, i, err)
					return nil
				}
				return err
			}
			if l.drafts != nil {
				dg.SessionID = regionSessionID
				if err := l.drafts.CreateGroup(gctx, dg); err != nil {
					log.Printf("matching: round %d region %d: draft audit write: %v", round, i, err)
				}
			}
			created, err := l.materialise(gctx, r, dg, round)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.OffersCreated += created
			summary.TotalDistanceMeters += dg.TotalDistanceMeters
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.cfg.Simulation != nil {
		accepted, rejected := l.simulateResponses(ctx)
		summary.Accepted = accepted
		summary.Rejected = rejected
	} else {
		select {
		case <-time.After(l.cfg.ResponseWindow):
		case <-ctx.Done():
			return summary, ctx.Err()
		}
	}

	expired, err := l.offers.ExpireStale(ctx)
	if err != nil {
		return nil, err
	}
	summary.Expired = len(expired)

	return summary, nil
}

// discardOffered reverts every currently-Offered assignment to a
// rebuildable Rejected row so the new draft can recompute sequences
// coherently (spec 4.8 step 3).
func (l *Loop) discardOffered(ctx context.Context) error {
	offered, err := l.assignments.GetAllOffered(ctx)
	if err != nil {
		return err
	}
	for _, a := range offered {
		if err := l.offers.DiscardOffered(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// materialise turns a winning DraftGroup's assignments into Offered rows,
// preferring rebuildRejectedAssignment when the order's latest row is a
// Rejected/Expired candidate for reuse.
func (l *Loop) materialise(ctx context.Context, r region.Region, dg *domain.DraftGroup, round int) (int, error) {
	ordersByID := make(map[string]*domain.Order, len(r.Orders))
	for _, o := range r.Orders {
		ordersByID[o.ID] = o
	}
	driversByID := make(map[string]*domain.Driver, len(r.Drivers))
	for _, d := range r.Drivers {
		driversByID[d.ID] = d
	}

	created := 0
	for _, da := range dg.Assignments {
		order, ok := ordersByID[da.OrderID]
		if !ok {
			continue
		}
		driver, ok := driversByID[da.DriverID]
		if !ok {
			continue
		}

		latest, err := l.assignments.GetLatestByOrderID(ctx, order.ID)
		if err != nil {
			return created, err
		}

		if latest != nil && (latest.Status == domain.AssignmentStatusRejected || latest.Status == domain.AssignmentStatusExpired) {
			if _, err := l.offers.RebuildRejectedAssignment(ctx, order, driver, da.Sequence, da.EstimatedPickup, da.EstimatedDelivery, da.TimeWindow); err != nil {
				log.Printf("matching: rebuild offer for order %s: %v", order.ID, err)
				continue
			}
		} else {
			if _, err := l.offers.CreateOffered(ctx, order, driver, da.Sequence, da.EstimatedPickup, da.EstimatedDelivery, round, da.TimeWindow); err != nil {
				log.Printf("matching: create offer for order %s: %v", order.ID, err)
				continue
			}
		}
		created++
		metrics.OffersCreatedTotal.Inc()
	}
	return created, nil
}

// simulateResponses resolves every currently-Offered assignment
// synchronously: each offer is accepted with AcceptProbability, except
// that when a round produced at least one offer and the coin flips
// rejected every one, the first (by id) is force-accepted so a round
// with offers never wipes out purely by chance (spec open question 1).
func (l *Loop) simulateResponses(ctx context.Context) (accepted, rejected int) {
	sim := l.cfg.Simulation
	offers, err := l.assignments.GetAllOffered(ctx)
	if err != nil || len(offers) == 0 {
		return 0, 0
	}

	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })

	rng := rand.New(rand.NewSource(sim.Seed))
	decisions := make([]bool, len(offers))
	anyAccepted := false
	for i := range offers {
		decisions[i] = rng.Float64() < sim.AcceptProbability
		anyAccepted = anyAccepted || decisions[i]
	}
	if !anyAccepted {
		decisions[0] = true
	}

	for i, a := range offers {
		if decisions[i] {
			if _, err := l.offers.Accept(ctx, a.ID); err != nil {
				log.Printf("matching: simulate accept %s: %v", a.ID, err)
				continue
			}
			accepted++
		} else {
			if _, err := l.offers.Reject(ctx, a.ID, "simulated"); err != nil {
				log.Printf("matching: simulate reject %s: %v", a.ID, err)
				continue
			}
			rejected++
		}
	}
	return accepted, rejected
}
