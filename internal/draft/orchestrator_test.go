package draft

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

func TestGenerateCandidatesEmptyInputsReturnSelectedEmptyGroup(t *testing.T) {
	t.Parallel()

	group, err := GenerateCandidates(context.Background(), "session-1", nil, nil, 3, 1, haversineDist)
	if err != nil {
		t.Fatalf("GenerateCandidates() returned error: %v", err)
	}
	if !group.IsSelected {
		t.Error("empty-input group should be marked selected")
	}
	if len(group.Assignments) != 0 {
		t.Error("empty-input group should have no assignments")
	}
}

func TestGenerateCandidatesReturnsFeasibleSelection(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{
		{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02}},
		{ID: "o2", Pickup: domain.Point{Lat: 1.01, Lng: 1.01}, Dropoff: domain.Point{Lat: 1.03, Lng: 1.03}},
	}
	drivers := []*domain.Driver{
		{ID: "d1", MaxConcurrentLoad: 3, Location: domain.DriverLocation{Point: domain.Point{Lat: 1, Lng: 1}}},
	}

	group, err := GenerateCandidates(context.Background(), "session-1", orders, drivers, 2, 42, haversineDist)
	if err != nil {
		t.Fatalf("GenerateCandidates() returned error: %v", err)
	}
	if !group.IsSelected {
		t.Error("winning candidate should be marked selected")
	}
	if !group.Feasible() {
		t.Error("selected candidate should be feasible")
	}
}

func TestGenerateCandidatesDefaultsCandidateCount(t *testing.T) {
	t.Parallel()

	orders := []*domain.Order{{ID: "o1", Pickup: domain.Point{Lat: 1, Lng: 1}, Dropoff: domain.Point{Lat: 1.02, Lng: 1.02}}}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3}}

	group, err := GenerateCandidates(context.Background(), "session-1", orders, drivers, 0, 1, haversineDist)
	if err != nil {
		t.Fatalf("GenerateCandidates() with k=0 returned error: %v", err)
	}
	if group == nil {
		t.Fatal("GenerateCandidates() with k=0 should still return a candidate using the default count")
	}
}

func TestValidateFlagsInvertedPickupDelivery(t *testing.T) {
	t.Parallel()

	base := time.Now()
	group := &domain.DraftGroup{
		ConstraintsViolated: map[domain.DraftConstraint]bool{},
		Assignments: []domain.DraftAssignment{
			{OrderID: "o1", DriverID: "d1", Sequence: 1, EstimatedPickup: base.Add(10 * time.Second), EstimatedDelivery: base.Add(5 * time.Second)},
		},
	}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3}}

	validate(group, drivers, map[string]*domain.Order{})
	if group.Feasible() {
		t.Error("a delivery scheduled before its pickup should violate the VRPPD constraint")
	}
}

func TestValidateFlagsCapacityOverrun(t *testing.T) {
	t.Parallel()

	base := time.Now()
	var assignments []domain.DraftAssignment
	for i := 0; i < 20; i++ {
		assignments = append(assignments, domain.DraftAssignment{
			OrderID: "o", DriverID: "d1", Sequence: i + 1,
			EstimatedPickup: base, EstimatedDelivery: base.Add(time.Second),
		})
	}
	group := &domain.DraftGroup{ConstraintsViolated: map[domain.DraftConstraint]bool{}, Assignments: assignments}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 1}}

	validate(group, drivers, map[string]*domain.Order{})
	if !group.ConstraintsViolated[domain.DraftConstraintCapacity] {
		t.Error("20 stops against a capacity-1 driver should violate the capacity constraint")
	}
}

func TestValidateFlagsAssignmentToARejectedDriver(t *testing.T) {
	t.Parallel()

	base := time.Now()
	order := &domain.Order{ID: "o1"}
	order.Blacklist("d1")
	group := &domain.DraftGroup{
		ConstraintsViolated: map[domain.DraftConstraint]bool{},
		Assignments: []domain.DraftAssignment{
			{OrderID: "o1", DriverID: "d1", Sequence: 1, EstimatedPickup: base, EstimatedDelivery: base.Add(time.Second)},
		},
	}
	drivers := []*domain.Driver{{ID: "d1", MaxConcurrentLoad: 3}}

	validate(group, drivers, map[string]*domain.Order{"o1": order})
	if !group.ConstraintsViolated[domain.DraftConstraintRejection] {
		t.Error("an assignment to a driver the order already rejected should violate the rejection constraint")
	}
}
