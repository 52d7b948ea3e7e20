package route

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
)

func haversineDist(ctx context.Context, from, to domain.Point) (float64, float64, error) {
	m := geo.HaversineMeters(from, to)
	return m, m / 10, nil // pretend 10 m/s travel speed
}

func errDist(ctx context.Context, from, to domain.Point) (float64, float64, error) {
	return 0, 0, errors.New("distance provider unavailable")
}

func TestBuildEmptyOrders(t *testing.T) {
	t.Parallel()

	stops, err := Build(context.Background(), nil, 3, domain.Point{}, time.Now(), haversineDist)
	if err != nil {
		t.Fatalf("Build() with no orders returned error: %v", err)
	}
	if stops != nil {
		t.Errorf("Build() with no orders = %v, want nil", stops)
	}
}

func TestBuildSingleOrderPicksUpThenDelivers(t *testing.T) {
	t.Parallel()

	o := &domain.Order{
		ID:      "order-1",
		Pickup:  domain.Point{Lat: 1, Lng: 1},
		Dropoff: domain.Point{Lat: 2, Lng: 2},
	}
	stops, err := Build(context.Background(), []*domain.Order{o}, 1, domain.Point{}, time.Now(), haversineDist)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if len(stops) != 2 {
		t.Fatalf("Build() returned %d stops, want 2", len(stops))
	}
	if stops[0].Kind != StopPickup || stops[0].OrderID != "order-1" {
		t.Errorf("first stop = %+v, want pickup of order-1", stops[0])
	}
	if stops[1].Kind != StopDelivery || stops[1].OrderID != "order-1" {
		t.Errorf("second stop = %+v, want delivery of order-1", stops[1])
	}
	if !stops[1].ArrivalTime.After(stops[0].ArrivalTime) {
		t.Error("delivery arrival time should be after pickup arrival time")
	}
}

func TestBuildRespectsCapacity(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{
		{ID: "a", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.1, Lng: 1.1}},
		{ID: "b", Pickup: domain.Point{Lat: 1, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.1, Lng: 1.11}},
	}

	stops, err := Build(context.Background(), orders, 1, domain.Point{}, time.Now(), haversineDist)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	load := 0
	for _, s := range stops {
		if s.Kind == StopPickup {
			load++
		} else {
			load--
		}
		if load > 1 {
			t.Fatalf("route exceeded capacity of 1 at stop %+v", s)
		}
	}
}

func TestBuildReturnsErrInfeasibleOnDistanceFailure(t *testing.T) {
	t.Parallel()

	o := &domain.Order{ID: "order-1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 2, Lng: 2}}
	_, err := Build(context.Background(), []*domain.Order{o}, 1, domain.Point{}, time.Now(), errDist)
	if !errors.Is(err, ErrInfeasible) {
		t.Errorf("Build() error = %v, want ErrInfeasible", err)
	}
}

func TestTotalDistanceM(t *testing.T) {
	t.Parallel()

	stops := []Stop{{DistanceFromPrevM: 100}, {DistanceFromPrevM: 250}}
	if got := TotalDistanceM(stops); got != 350 {
		t.Errorf("TotalDistanceM() = %v, want 350", got)
	}
}
