package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// GetAvailable returns drivers in Available or EnRoutePickup status —
	// the pool the Matching Loop draws from each round.
	GetAvailable(ctx context.Context) ([]*domain.Driver, error)

	// UpdateStatus updates the status of a driver.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// UpdateLocation records a driver's latest known position.
	UpdateLocation(ctx context.Context, id string, loc domain.DriverLocation) error

	// Near returns driver ids within radiusMeters great-circle distance of
	// center, nearest first. Emulates the geospatial index the persistent
	// store interface requires (spec 6).
	Near(ctx context.Context, center domain.Point, radiusMeters float64) ([]string, error)
}
