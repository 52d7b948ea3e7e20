package alns

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
)

func haversineDist(ctx context.Context, from, to domain.Point) (float64, float64, error) {
	m := geo.HaversineMeters(from, to)
	return m, m / 10, nil
}

func TestImproveReturnsALNSTaggedGroup(t *testing.T) {
	t.Parallel()

	o1 := &domain.Order{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.03, Lng: 1.03}}
	o2 := &domain.Order{ID: "o2", Pickup: domain.Point{Lat: 1.01, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.04, Lng: 1.04}}

	byOrderID := map[string]*domain.Order{"o1": o1, "o2": o2}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}}}

	initial := &domain.DraftGroup{
		Assignments: []domain.DraftAssignment{
			{OrderID: "o1", DriverID: "d1", Sequence: 1},
			{OrderID: "o2", DriverID: "d1", Sequence: 2},
		},
	}

	improved := Improve(context.Background(), "session-1", initial, drivers, byOrderID, 50*time.Millisecond, 7, haversineDist)
	if improved == nil {
		t.Fatal("Improve() returned nil")
	}
	if improved.Algorithm != domain.DraftAlgorithmALNS {
		t.Errorf("Algorithm = %v, want alns", improved.Algorithm)
	}
}

func TestImproveAllOrdersAccountedFor(t *testing.T) {
	t.Parallel()

	o1 := &domain.Order{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02}}
	o2 := &domain.Order{ID: "o2", Pickup: domain.Point{Lat: 1.01, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.03, Lng: 1.03}}
	o3 := &domain.Order{ID: "o3", Pickup: domain.Point{Lat: 1.02, Lng: 1.02}, Dropoff: domain.Point{Lat: 1.05, Lng: 1.05}}

	byOrderID := map[string]*domain.Order{"o1": o1, "o2": o2, "o3": o3}
	drivers := []*domain.Driver{
		{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}},
	}
	initial := &domain.DraftGroup{
		Assignments: []domain.DraftAssignment{
			{OrderID: "o1", DriverID: "d1", Sequence: 1},
			{OrderID: "o2", DriverID: "d1", Sequence: 2},
			{OrderID: "o3", DriverID: "d1", Sequence: 3},
		},
	}

	improved := Improve(context.Background(), "session-1", initial, drivers, byOrderID, 30*time.Millisecond, 1, haversineDist)

	seen := map[string]bool{}
	for _, a := range improved.Assignments {
		seen[a.OrderID] = true
	}
	if len(seen) != 3 && improved.Feasible() {
		t.Errorf("feasible result should retain all 3 orders, got %d", len(seen))
	}
}

func TestImproveZeroBudgetReturnsStartingSolution(t *testing.T) {
	t.Parallel()

	o1 := &domain.Order{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.03, Lng: 1.03}}
	byOrderID := map[string]*domain.Order{"o1": o1}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}}}
	initial := &domain.DraftGroup{Assignments: []domain.DraftAssignment{{OrderID: "o1", DriverID: "d1", Sequence: 1}}}

	improved := Improve(context.Background(), "session-1", initial, drivers, byOrderID, 0, 99, haversineDist)
	if improved == nil {
		t.Fatal("Improve() with zero time budget should still return a result built from the starting solution")
	}
	if len(improved.Assignments) != 1 {
		t.Errorf("Assignments = %d, want 1 (the single seeded order)", len(improved.Assignments))
	}
}
