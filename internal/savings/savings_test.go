package savings

import (
	"context"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
)

func haversineDist(ctx context.Context, from, to domain.Point) (float64, float64, error) {
	m := geo.HaversineMeters(from, to)
	return m, m / 10, nil
}

func TestBuildNoOrders(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), "session-1", nil, []*domain.Driver{{ID: "d1"}}, haversineDist)
	if err != ErrNoOrders {
		t.Errorf("Build() error = %v, want ErrNoOrders", err)
	}
}

func TestBuildNoDrivers(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 2, Lng: 2}}}
	_, err := Build(context.Background(), "session-1", orders, nil, haversineDist)
	if err != ErrNoDrivers {
		t.Errorf("Build() error = %v, want ErrNoDrivers", err)
	}
}

func TestBuildProducesFeasibleGroupForAllOrders(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{
		{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.05, Lng: 1.05}},
		{ID: "o2", Pickup: domain.Point{Lat: 1.01, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.06, Lng: 1.06}},
		{ID: "o3", Pickup: domain.Point{Lat: 5, Lng: 5}, Dropoff: domain.Point{Lat: 5.05, Lng: 5.05}},
	}
	drivers := []*domain.Driver{
		{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}},
		{ID: "d2", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 5, Lng: 5}}},
	}

	group, err := Build(context.Background(), "session-1", orders, drivers, haversineDist)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if group.Algorithm != domain.DraftAlgorithmSavings {
		t.Errorf("Algorithm = %v, want savings", group.Algorithm)
	}
	if len(group.Assignments) != len(orders) {
		t.Errorf("Assignments count = %d, want %d (every order assigned)", len(group.Assignments), len(orders))
	}

	seen := map[string]bool{}
	for _, a := range group.Assignments {
		seen[a.OrderID] = true
	}
	for _, o := range orders {
		if !seen[o.ID] {
			t.Errorf("order %s missing from draft group assignments", o.ID)
		}
	}
}

func TestBuildSkipsBlacklistedDriverWhenMerging(t *testing.T) {
	t.Parallel()

	o1 := &domain.Order{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.05, Lng: 1.05}}
	o2 := &domain.Order{ID: "o2", Pickup: domain.Point{Lat: 1.01, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.06, Lng: 1.06}}
	o2.Blacklist("d1")

	drivers := []*domain.Driver{
		{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}},
		{ID: "d2", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}},
	}

	group, err := Build(context.Background(), "session-1", []*domain.Order{o1, o2}, drivers, haversineDist)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	for _, a := range group.Assignments {
		if a.OrderID == "o2" && a.DriverID == "d1" {
			t.Error("order o2 blacklisted driver d1 should never be assigned that driver")
		}
	}
}

func TestBuildSetsComputeElapsed(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 2, Lng: 2}}}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3}}

	group, err := Build(context.Background(), "session-1", orders, drivers, haversineDist)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if group.ComputeElapsed < 0 {
		t.Error("ComputeElapsed should be non-negative")
	}
}
