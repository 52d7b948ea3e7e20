package offer

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/testutil"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestService(now time.Time) (*Service, *testutil.FakeOrderRepository, *testutil.FakeDriverRepository, *testutil.FakeAssignmentRepository) {
	orders := testutil.NewFakeOrderRepository()
	drivers := testutil.NewFakeDriverRepository()
	assignments := testutil.NewFakeAssignmentRepository(orders)
	locks := testutil.NewFakeLockStore()
	svc := New(assignments, orders, drivers, assignments, locks, nil, fixedClock(now))
	return svc, orders, drivers, assignments
}

func TestCreateOfferedMovesOrderAndCreatesAssignment(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, _ := newTestService(now)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
	driver := &domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	a, err := svc.CreateOffered(context.Background(), order, driver, 1, now.Add(10*time.Minute), now.Add(20*time.Minute), 1, nil)
	if err != nil {
		t.Fatalf("CreateOffered() returned error: %v", err)
	}
	if a.Status != domain.AssignmentStatusOffered {
		t.Errorf("new assignment status = %v, want Offered", a.Status)
	}
	if got := orders.GetOrder("order-1").Status; got != domain.OrderStatusOffered {
		t.Errorf("order status after CreateOffered = %v, want Offered", got)
	}
}

func TestCreateOfferedRejectsNonPendingOrder(t *testing.T) {
	t.Parallel()

	svc, orders, drivers, _ := newTestService(time.Now())
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusAssigned}
	driver := &domain.Driver{ID: "driver-1"}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	_, err := svc.CreateOffered(context.Background(), order, driver, 1, time.Now(), time.Now(), 1, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("CreateOffered() on a non-pending order error = %v, want ErrInvalidState", err)
	}
}

func TestCreateOfferedRejectsBlacklistedDriver(t *testing.T) {
	t.Parallel()

	svc, orders, drivers, _ := newTestService(time.Now())
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
	order.Blacklist("driver-1")
	driver := &domain.Driver{ID: "driver-1"}
	orders.AddOrder(order)
	drivers.AddDriver(driver)

	_, err := svc.CreateOffered(context.Background(), order, driver, 1, time.Now(), time.Now(), 1, nil)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("CreateOffered() for blacklisted driver error = %v, want ErrAlreadyAssigned", err)
	}
}

func TestAcceptTransitionsAssignmentOrderAndDriver(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusOffered}
	driver := &domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable}
	orders.AddOrder(order)
	drivers.AddDriver(driver)
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusOffered, OfferExpiry: now.Add(time.Hour),
	})

	a, err := svc.Accept(context.Background(), "assignment-1")
	if err != nil {
		t.Fatalf("Accept() returned error: %v", err)
	}
	if a.Status != domain.AssignmentStatusAccepted {
		t.Errorf("assignment status = %v, want Accepted", a.Status)
	}
	if got := orders.GetOrder("order-1").Status; got != domain.OrderStatusAssigned {
		t.Errorf("order status = %v, want Assigned", got)
	}
}

func TestAcceptRejectsExpiredOffer(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)

	orders.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusOffered})
	drivers.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable})
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusOffered, OfferExpiry: now.Add(-time.Minute),
	})

	_, err := svc.Accept(context.Background(), "assignment-1")
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Accept() on expired offer error = %v, want ErrExpired", err)
	}
}

func TestAcceptRejectsAlreadyResolvedAssignment(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)
	orders.AddOrder(&domain.Order{ID: "order-1"})
	drivers.AddDriver(&domain.Driver{ID: "driver-1"})
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusAccepted, OfferExpiry: now.Add(time.Hour),
	})

	_, err := svc.Accept(context.Background(), "assignment-1")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Accept() on an already-resolved assignment error = %v, want ErrInvalidState", err)
	}
}

func TestRejectBoostsPriorityAndBlacklistsDriver(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusOffered, Multiplier: 1.0}
	orders.AddOrder(order)
	drivers.AddDriver(&domain.Driver{ID: "driver-1"})
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusOffered, OfferExpiry: now.Add(time.Hour),
	})

	a, err := svc.Reject(context.Background(), "assignment-1", "no capacity")
	if err != nil {
		t.Fatalf("Reject() returned error: %v", err)
	}
	if a.Status != domain.AssignmentStatusRejected {
		t.Errorf("assignment status = %v, want Rejected", a.Status)
	}

	updatedOrder := orders.GetOrder("order-1")
	if !updatedOrder.HasRejected("driver-1") {
		t.Error("order should blacklist the rejecting driver")
	}
	if updatedOrder.Multiplier <= 1.0 {
		t.Errorf("Multiplier after reject = %v, want > 1.0", updatedOrder.Multiplier)
	}
	if updatedOrder.Status != domain.OrderStatusPending {
		t.Errorf("order status after reject = %v, want Pending", updatedOrder.Status)
	}
}

func TestExpireStaleResolvesPastDueOffers(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)

	orders.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusOffered})
	drivers.AddDriver(&domain.Driver{ID: "driver-1"})
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusOffered, OfferExpiry: now.Add(-time.Minute),
	})

	expired, err := svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("ExpireStale() returned error: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("ExpireStale() resolved %d assignments, want 1", len(expired))
	}
	if expired[0].Status != domain.AssignmentStatusExpired {
		t.Errorf("resolved assignment status = %v, want Expired", expired[0].Status)
	}
	if expired[0].RejectReason != "expired" {
		t.Errorf("RejectReason = %q, want %q", expired[0].RejectReason, "expired")
	}
}

func TestDiscardOfferedRevertsWithoutBlacklisting(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, _ := newTestService(now)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusOffered}
	orders.AddOrder(order)
	drivers.AddDriver(&domain.Driver{ID: "driver-1"})

	a := &domain.Assignment{ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1", Status: domain.AssignmentStatusOffered}
	if err := svc.DiscardOffered(context.Background(), a); err != nil {
		t.Fatalf("DiscardOffered() returned error: %v", err)
	}
	if a.Status != domain.AssignmentStatusRejected {
		t.Errorf("assignment status after discard = %v, want Rejected", a.Status)
	}
	if orders.GetOrder("order-1").HasRejected("driver-1") {
		t.Error("DiscardOffered should not blacklist the driver, unlike a real Reject")
	}
}

func TestDiscardOfferedNoOpOnNonOfferedAssignment(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService(time.Now())
	a := &domain.Assignment{ID: "assignment-1", Status: domain.AssignmentStatusAccepted}
	if err := svc.DiscardOffered(context.Background(), a); err != nil {
		t.Fatalf("DiscardOffered() on an already-accepted assignment returned error: %v", err)
	}
	if a.Status != domain.AssignmentStatusAccepted {
		t.Error("DiscardOffered should leave a non-Offered assignment untouched")
	}
}

func TestRebuildRejectedAssignmentReusesRow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, orders, drivers, assignments := newTestService(now)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
	orders.AddOrder(order)
	newDriver := &domain.Driver{ID: "driver-2"}
	drivers.AddDriver(newDriver)
	assignments.AddAssignment(&domain.Assignment{
		ID: "assignment-1", OrderID: "order-1", DriverID: "driver-1",
		Status: domain.AssignmentStatusRejected, OfferRound: 1,
	})

	rebuilt, err := svc.RebuildRejectedAssignment(context.Background(), order, newDriver, 1, now.Add(time.Minute), now.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("RebuildRejectedAssignment() returned error: %v", err)
	}
	if rebuilt.ID != "assignment-1" {
		t.Errorf("rebuilt assignment ID = %s, want the original row's id assignment-1", rebuilt.ID)
	}
	if rebuilt.DriverID != "driver-2" {
		t.Errorf("rebuilt assignment driver = %s, want driver-2", rebuilt.DriverID)
	}
	if rebuilt.OfferRound != 2 {
		t.Errorf("OfferRound after rebuild = %d, want 2", rebuilt.OfferRound)
	}
	if rebuilt.Status != domain.AssignmentStatusOffered {
		t.Errorf("rebuilt assignment status = %v, want Offered", rebuilt.Status)
	}
}

func TestRebuildRejectedAssignmentFailsWithoutAPriorRow(t *testing.T) {
	t.Parallel()

	svc, orders, drivers, _ := newTestService(time.Now())
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
	orders.AddOrder(order)
	driver := &domain.Driver{ID: "driver-1"}
	drivers.AddDriver(driver)

	_, err := svc.RebuildRejectedAssignment(context.Background(), order, driver, 1, time.Now(), time.Now(), nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("RebuildRejectedAssignment() with no prior row error = %v, want ErrInvalidState", err)
	}
}
