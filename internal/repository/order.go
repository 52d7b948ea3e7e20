package repository

import (
	"context"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetAll(ctx context.Context) ([]*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error

	// GetPending returns Pending orders sorted by (effective priority desc,
	// createdAt asc), matching the index spec 6 requires of the store.
	GetPending(ctx context.Context) ([]*domain.Order, error)
}
