package matching

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/offer"
	"dispatch/internal/route"
	"dispatch/internal/testutil"
)

func haversineDist(ctx context.Context, from, to domain.Point) (float64, float64, error) {
	m := geo.HaversineMeters(from, to)
	return m, m / 10, nil
}

func newTestLoop(cfg Config) (*Loop, *testutil.FakeOrderRepository, *testutil.FakeDriverRepository, *testutil.FakeAssignmentRepository) {
	orders := testutil.NewFakeOrderRepository()
	drivers := testutil.NewFakeDriverRepository()
	assignments := testutil.NewFakeAssignmentRepository(orders)
	locks := testutil.NewFakeLockStore()
	offerSvc := offer.New(assignments, orders, drivers, assignments, locks, nil, time.Now)
	loop := New(orders, drivers, assignments, offerSvc, route.DistanceFunc(haversineDist), cfg, time.Now)
	return loop, orders, drivers, assignments
}

func TestRunCycleWithNoWorkEndsImmediately(t *testing.T) {
	t.Parallel()

	loop, _, _, _ := newTestLoop(Config{MaxRounds: 2})
	result, err := loop.RunCycle(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("RunCycle() returned error: %v", err)
	}
	if len(result.Rounds) != 0 {
		t.Errorf("RunCycle() with no pending work ran %d rounds, want 0", len(result.Rounds))
	}
}

func TestRunCycleWithSimulationAssignsAnOrder(t *testing.T) {
	t.Parallel()

	cfg := Config{
		MaxRounds:      1,
		CandidateCount: 1,
		Simulation:     &SimulationConfig{AcceptProbability: 1.0, Seed: 1},
	}
	loop, orders, drivers, _ := newTestLoop(cfg)

	order := &domain.Order{
		ID: "order-1", Status: domain.OrderStatusPending, BasePriority: 5, Multiplier: 1,
		Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02},
	}
	driver := &domain.Driver{
		ID: "driver-1", Status: domain.DriverStatusAvailable, MaxConcurrentLoad: 3,
		Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}},
	}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	result, err := loop.RunCycle(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("RunCycle() returned error: %v", err)
	}
	if len(result.Rounds) != 1 {
		t.Fatalf("RunCycle() ran %d rounds, want 1", len(result.Rounds))
	}
	if result.Rounds[0].OffersCreated != 1 {
		t.Errorf("OffersCreated = %d, want 1", result.Rounds[0].OffersCreated)
	}
	if result.Rounds[0].Accepted != 1 {
		t.Errorf("Accepted = %d, want 1 (AcceptProbability 1.0)", result.Rounds[0].Accepted)
	}
	if got := orders.GetOrder("order-1").Status; got != domain.OrderStatusAssigned {
		t.Errorf("order status after cycle = %v, want Assigned", got)
	}
}

func TestRunCycleWithDraftAuditPersistsEveryRegion(t *testing.T) {
	t.Parallel()

	cfg := Config{
		MaxRounds:      1,
		CandidateCount: 1,
		Simulation:     &SimulationConfig{AcceptProbability: 1.0, Seed: 1},
	}
	loop, orders, drivers, _ := newTestLoop(cfg)
	draftRepo := testutil.NewFakeDraftRepository()
	loop.WithDraftAudit(draftRepo)

	order := &domain.Order{
		ID: "order-1", Status: domain.OrderStatusPending, BasePriority: 5, Multiplier: 1,
		Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02},
	}
	driver := &domain.Driver{
		ID: "driver-1", Status: domain.DriverStatusAvailable, MaxConcurrentLoad: 3,
		Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}},
	}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	if _, err := loop.RunCycle(context.Background(), "session-1"); err != nil {
		t.Fatalf("RunCycle() returned error: %v", err)
	}

	if draftRepo.TruncateCallCount != 1 {
		t.Errorf("TruncateCallCount = %d, want 1", draftRepo.TruncateCallCount)
	}
	if draftRepo.CreateCallCount == 0 {
		t.Error("draft audit should have recorded at least one region's candidate group")
	}
}

func TestRunCycleStopsEarlyWhenNoRejectionsOrExpiries(t *testing.T) {
	t.Parallel()

	cfg := Config{
		MaxRounds:      5,
		CandidateCount: 1,
		Simulation:     &SimulationConfig{AcceptProbability: 1.0, Seed: 1},
	}
	loop, orders, drivers, _ := newTestLoop(cfg)

	order := &domain.Order{
		ID: "order-1", Status: domain.OrderStatusPending, BasePriority: 5, Multiplier: 1,
		Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02},
	}
	driver := &domain.Driver{
		ID: "driver-1", Status: domain.DriverStatusAvailable, MaxConcurrentLoad: 3,
		Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}},
	}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	result, err := loop.RunCycle(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("RunCycle() returned error: %v", err)
	}
	if len(result.Rounds) != 1 {
		t.Errorf("a round with every offer accepted should not trigger a second round, got %d rounds", len(result.Rounds))
	}
}
