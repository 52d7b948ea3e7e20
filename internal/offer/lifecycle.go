// Package offer implements the assignment state machine: creating offers,
// driving accept/reject/expiry, and rebuilding a rejected row in place for
// a fresh offer rather than inserting a duplicate.
package offer

import (
	"context"
	"fmt"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/metrics"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DefaultOfferTTL is T_offer, the time a driver has to respond.
const DefaultOfferTTL = 10 * time.Minute

// assignmentLockTTL bounds how long one accept/reject holds the
// serialising lock; long enough to cover one transaction, short enough
// that a crashed holder does not wedge the assignment forever.
const assignmentLockTTL = 5 * time.Second

// Clock is injected so tests can control "now".
type Clock func() time.Time

// Service drives the offer lifecycle state machine over the assignment
// and order stores, serialising concurrent accept/reject via a
// distributed lock (spec 5) and fanning out lifecycle events best-effort.
type Service struct {
	assignments repository.AssignmentRepository
	orders      repository.OrderRepository
	drivers     repository.DriverRepository
	txBeginner  repository.TxBeginner
	locks       redis.LockStoreInterface
	clock       Clock
	offerTTL    time.Duration
	publisher   *Publisher
}

// New builds an offer Service.
func New(assignments repository.AssignmentRepository, orders repository.OrderRepository, drivers repository.DriverRepository, txBeginner repository.TxBeginner, locks redis.LockStoreInterface, publisher *Publisher, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		assignments: assignments,
		orders:      orders,
		drivers:     drivers,
		txBeginner:  txBeginner,
		locks:       locks,
		clock:       clock,
		offerTTL:    DefaultOfferTTL,
		publisher:   publisher,
	}
}

// CreateOffered inserts a new Offered assignment for (order, driver) at
// the given round, atomically moving the order to Offered (spec 4.7).
func (s *Service) CreateOffered(ctx context.Context, order *domain.Order, driver *domain.Driver, seq int, pickup, delivery time.Time, round int, tw *domain.TimeWindow) (*domain.Assignment, error) {
	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("offer: create: %w", ErrInvalidState)
	}
	if order.HasRejected(driver.ID) {
		return nil, fmt.Errorf("offer: create: %w", ErrAlreadyAssigned)
	}
	existing, err := s.assignments.GetActiveByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("offer: create: %w", ErrAlreadyAssigned)
	}

	now := s.clock()
	a := &domain.Assignment{
		OrderID:           order.ID,
		DriverID:          driver.ID,
		Sequence:          seq,
		EstimatedPickup:   pickup,
		EstimatedDelivery: delivery,
		Status:            domain.AssignmentStatusOffered,
		OfferExpiry:       now.Add(s.offerTTL),
		OfferRound:        round,
		TimeWindow:        tw,
	}

	tx, err := s.txBeginner.BeginAssignmentTx(ctx)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusOffered
	if err := tx.CreateOffer(ctx, a, order); err != nil {
		tx.Rollback()
		order.Status = domain.OrderStatusPending
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		order.Status = domain.OrderStatusPending
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishOffered(ctx, a)
	}
	return a, nil
}

// Accept drives Offered -> Accepted (spec 4.7). Concurrent accept/reject
// on the same id is serialised by a Redis lock; the loser sees
// ErrInvalidState, never a silent double-apply.
func (s *Service) Accept(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	unlock, err := s.lockAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.AssignmentStatusOffered {
		return nil, fmt.Errorf("offer: accept %s: %w", assignmentID, ErrInvalidState)
	}
	now := s.clock()
	if now.After(a.OfferExpiry) {
		return nil, fmt.Errorf("offer: accept %s: %w", assignmentID, ErrExpired)
	}

	order, err := s.orders.GetByID(ctx, a.OrderID)
	if err != nil {
		return nil, err
	}
	driver, err := s.drivers.GetByID(ctx, a.DriverID)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AssignmentStatusAccepted
	a.RespondedAt = now
	order.Status = domain.OrderStatusAssigned

	if err := s.assignments.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if driver.Status == domain.DriverStatusAvailable {
		if !domain.CanTransition(driver.Status, domain.DriverStatusEnRoutePickup) {
			return nil, fmt.Errorf("offer: accept %s: %w", assignmentID, ErrInvalidStatusTransition)
		}
		if err := s.drivers.UpdateStatus(ctx, driver.ID, domain.DriverStatusEnRoutePickup); err != nil {
			return nil, err
		}
	}

	if s.publisher != nil {
		s.publisher.PublishTransition(ctx, EventAccepted, a, now)
	}
	metrics.RecordOfferOutcome("accepted")
	return a, nil
}

// Reject drives Offered -> Rejected, boosts the order's priority
// multiplier, and blacklists the driver for that order (spec 4.7). The
// caller is responsible for enqueuing the resulting re-matching cycle;
// Reject itself only performs the state transition.
func (s *Service) Reject(ctx context.Context, assignmentID, reason string) (*domain.Assignment, error) {
	return s.rejectInternal(ctx, assignmentID, reason, true)
}

// ExpireStale treats every Offered assignment past its offerExpiry as a
// reject with reason "expired", without the lock contention a live
// reject needs against a concurrent accept (the driver has already gone
// silent). Idempotent: a second call finds nothing left to expire.
func (s *Service) ExpireStale(ctx context.Context) ([]*domain.Assignment, error) {
	now := s.clock()
	stale, err := s.assignments.GetExpiredOffers(ctx, now)
	if err != nil {
		return nil, err
	}

	expired := make([]*domain.Assignment, 0, len(stale))
	for _, a := range stale {
		result, err := s.rejectInternal(ctx, a.ID, "expired", false)
		if err != nil {
			continue
		}
		expired = append(expired, result)
	}
	return expired, nil
}

func (s *Service) rejectInternal(ctx context.Context, assignmentID, reason string, lock bool) (*domain.Assignment, error) {
	if lock {
		unlock, err := s.lockAssignment(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.AssignmentStatusOffered {
		return nil, fmt.Errorf("offer: reject %s: %w", assignmentID, ErrInvalidState)
	}

	order, err := s.orders.GetByID(ctx, a.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if reason == "expired" {
		a.Status = domain.AssignmentStatusExpired
	} else {
		a.Status = domain.AssignmentStatusRejected
	}
	a.RespondedAt = now
	a.RejectReason = reason

	order.Blacklist(a.DriverID)
	order.BoostPriority()
	order.Status = domain.OrderStatusPending

	if err := s.assignments.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		evt := EventRejected
		if reason == "expired" {
			evt = EventExpired
		}
		s.publisher.PublishTransition(ctx, evt, a, now)
	}
	if reason == "expired" {
		metrics.RecordOfferOutcome("expired")
	} else {
		metrics.RecordOfferOutcome("rejected")
	}
	return a, nil
}

// DiscardOffered reverts a still-Offered assignment to a rebuildable
// Rejected row and its order to Pending, ahead of a new round's draft
// (spec 4.8 step 3). Unlike Reject, this is bookkeeping, not a driver
// decision: it does not blacklist the driver or boost the order's
// priority multiplier.
func (s *Service) DiscardOffered(ctx context.Context, a *domain.Assignment) error {
	if a.Status != domain.AssignmentStatusOffered {
		return nil
	}

	order, err := s.orders.GetByID(ctx, a.OrderID)
	if err != nil {
		return err
	}

	a.Status = domain.AssignmentStatusRejected
	a.RespondedAt = s.clock()
	a.RejectReason = "requeued"
	order.Status = domain.OrderStatusPending

	if err := s.assignments.Update(ctx, a); err != nil {
		return err
	}
	return s.orders.Update(ctx, order)
}

// RebuildRejectedAssignment re-offers order to newDriver by updating its
// most recent Rejected/Expired row in place instead of inserting a
// duplicate (spec 4.7).
func (s *Service) RebuildRejectedAssignment(ctx context.Context, order *domain.Order, newDriver *domain.Driver, seq int, pickup, delivery time.Time, tw *domain.TimeWindow) (*domain.Assignment, error) {
	prev, err := s.assignments.GetLatestByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if prev == nil || (prev.Status != domain.AssignmentStatusRejected && prev.Status != domain.AssignmentStatusExpired) {
		return nil, fmt.Errorf("offer: rebuild %s: %w", order.ID, ErrInvalidState)
	}

	now := s.clock()
	prev.DriverID = newDriver.ID
	prev.Sequence = seq
	prev.EstimatedPickup = pickup
	prev.EstimatedDelivery = delivery
	prev.Status = domain.AssignmentStatusOffered
	prev.OfferRound++
	prev.OfferExpiry = now.Add(s.offerTTL)
	prev.RespondedAt = time.Time{}
	prev.RejectReason = ""
	prev.TimeWindow = tw

	order.Status = domain.OrderStatusOffered

	tx, err := s.txBeginner.BeginAssignmentTx(ctx)
	if err != nil {
		return nil, err
	}
	if err := tx.RebuildOffer(ctx, prev, order); err != nil {
		tx.Rollback()
		order.Status = domain.OrderStatusPending
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		order.Status = domain.OrderStatusPending
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishOffered(ctx, prev)
	}
	return prev, nil
}

func (s *Service) lockAssignment(ctx context.Context, assignmentID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	ok, err := s.locks.AcquireAssignmentLock(ctx, assignmentID, assignmentLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("offer: %s: %w", assignmentID, ErrInvalidState)
	}
	return func() {
		_ = s.locks.ReleaseAssignmentLock(ctx, assignmentID)
	}, nil
}
