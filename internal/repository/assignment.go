package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// AssignmentRepository defines the persistence operations for assignments.
// Create/Update of an Assignment alongside its Order's status change must
// be exposed as a single atomic unit — see TxAssignmentRepository.
type AssignmentRepository interface {
	Create(ctx context.Context, a *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	Update(ctx context.Context, a *domain.Assignment) error

	// GetActiveByOrderID returns the order's single non-terminal assignment,
	// if any (invariant: at most one per order).
	GetActiveByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error)

	// GetLatestByOrderID returns the most recent assignment for an order
	// regardless of state, used to find a Rejected row to rebuild in place.
	GetLatestByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error)

	// GetOfferedByDriverID lists a driver's current offer inbox.
	GetOfferedByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error)

	// GetAcceptedRouteByDriverID lists a driver's accepted, non-terminal
	// assignments ordered by sequence.
	GetAcceptedRouteByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error)

	// GetExpiredOffers returns Offered assignments whose offerExpiry is
	// before asOf.
	GetExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error)

	// GetAllOffered returns every assignment currently in Offered state,
	// used by the Matching Loop to discard stale offers before drafting.
	GetAllOffered(ctx context.Context) ([]*domain.Assignment, error)
}

// TxBeginner starts a transaction that a caller can use to run several
// repository calls atomically, mirroring the teacher's Querier/Tx split.
type TxBeginner interface {
	BeginAssignmentTx(ctx context.Context) (AssignmentTx, error)
}

// AssignmentTx is a transaction-scoped handle over the order+assignment
// pair, guaranteeing the offer-creation atomicity spec 4.7/5 requires: no
// observer may see one write without the other.
type AssignmentTx interface {
	CreateOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error
	RebuildOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error
	Commit() error
	Rollback() error
}
