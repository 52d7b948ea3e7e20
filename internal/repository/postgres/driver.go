package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, name, phone, vehicle_type, max_concurrent_load, status)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.Name, driver.Phone, driver.VehicleType, driver.MaxConcurrentLoad, driver.Status)
	return err
}

func scanDriver(row interface{ Scan(dest ...any) error }) (*domain.Driver, error) {
	var d domain.Driver
	var lat, lng sql.NullFloat64
	var ts sql.NullTime
	if err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &d.VehicleType, &d.MaxConcurrentLoad, &d.Status,
		&lat, &lng, &ts,
	); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		d.Location = domain.DriverLocation{
			Point:     domain.Point{Lat: lat.Float64, Lng: lng.Float64},
			Timestamp: ts.Time,
		}
	}
	return &d, nil
}

const driverSelectCols = `id, COALESCE(name, ''), COALESCE(phone, ''), vehicle_type, max_concurrent_load, status,
	last_lat, last_lng, last_location_at`

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverSelectCols + ` FROM drivers WHERE id = $1`
	d, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	query := `SELECT ` + driverSelectCols + ` FROM drivers WHERE phone = $1`
	d, err := scanDriver(r.q.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *DriverRepository) queryDrivers(ctx context.Context, query string, args ...any) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	return r.queryDrivers(ctx, `SELECT `+driverSelectCols+` FROM drivers ORDER BY id`)
}

// GetAvailable returns drivers in Available or EnRoutePickup status.
func (r *DriverRepository) GetAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverSelectCols + ` FROM drivers WHERE status IN ($1, $2) ORDER BY id`
	return r.queryDrivers(ctx, query, domain.DriverStatusAvailable, domain.DriverStatusEnRoutePickup)
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateLocation records a driver's latest known position.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.DriverLocation) error {
	query := `UPDATE drivers SET last_lat = $1, last_lng = $2, last_location_at = $3 WHERE id = $4`
	result, err := r.q.ExecContext(ctx, query, loc.Point.Lat, loc.Point.Lng, loc.Timestamp, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Near returns driver ids within radiusMeters great-circle distance of
// center, nearest first. The haversine expression mirrors internal/geo's
// formula so the fallback SQL path and the in-process oracle agree.
func (r *DriverRepository) Near(ctx context.Context, center domain.Point, radiusMeters float64) ([]string, error) {
	const query = `
		SELECT id FROM (
			SELECT id,
				2 * 6371000 * asin(sqrt(
					sin(radians($1 - last_lat) / 2) ^ 2 +
					cos(radians($1)) * cos(radians(last_lat)) *
					sin(radians($2 - last_lng) / 2) ^ 2
				)) AS distance_m
			FROM drivers
			WHERE last_lat IS NOT NULL AND last_lng IS NOT NULL
		) d
		WHERE distance_m <= $3
		ORDER BY distance_m ASC`

	rows, err := r.q.QueryContext(ctx, query, center.Lat, center.Lng, radiusMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
