package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderSelectCols = `id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, requested_for,
	window_start, window_end, base_priority, multiplier, rejection_count, rejected_drivers,
	status, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var o domain.Order
	var windowStart, windowEnd sql.NullTime
	var rejected pq.StringArray

	if err := row.Scan(
		&o.ID, &o.Pickup.Lat, &o.Pickup.Lng, &o.Dropoff.Lat, &o.Dropoff.Lng, &o.RequestedFor,
		&windowStart, &windowEnd, &o.BasePriority, &o.Multiplier, &o.RejectionCount, &rejected,
		&o.Status, &o.CreatedAt,
	); err != nil {
		return nil, err
	}

	if windowStart.Valid && windowEnd.Valid {
		o.TimeWindow = &domain.TimeOfDayPreference{Start: windowStart.Time, End: windowEnd.Time}
	}
	if len(rejected) > 0 {
		o.RejectedDrivers = make(map[string]struct{}, len(rejected))
		for _, id := range rejected {
			o.RejectedDrivers[id] = struct{}{}
		}
	}
	return &o, nil
}

func rejectedDriversArray(o *domain.Order) pq.StringArray {
	ids := make([]string, 0, len(o.RejectedDrivers))
	for id := range o.RejectedDrivers {
		ids = append(ids, id)
	}
	return pq.StringArray(ids)
}

// Create adds a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	var windowStart, windowEnd *time.Time
	if order.TimeWindow != nil {
		windowStart = &order.TimeWindow.Start
		windowEnd = &order.TimeWindow.End
	}

	query := `INSERT INTO orders (id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, requested_for,
		window_start, window_end, base_priority, multiplier, rejection_count, rejected_drivers, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.q.ExecContext(ctx, query,
		order.ID, order.Pickup.Lat, order.Pickup.Lng, order.Dropoff.Lat, order.Dropoff.Lng, order.RequestedFor,
		windowStart, windowEnd, order.BasePriority, order.Multiplier, order.RejectionCount,
		rejectedDriversArray(order), order.Status, order.CreatedAt)
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetAll retrieves all orders.
func (r *OrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderSelectCols+` FROM orders ORDER BY created_at`)
}

// GetPending returns Pending orders sorted by (effective priority desc,
// createdAt asc).
func (r *OrderRepository) GetPending(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders
		WHERE status = $1
		ORDER BY (base_priority * multiplier) DESC, created_at ASC`
	return r.queryOrders(ctx, query, domain.OrderStatusPending)
}

// Update persists an order's mutable fields (status, priority, rejection
// bookkeeping).
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	var windowStart, windowEnd *time.Time
	if order.TimeWindow != nil {
		windowStart = &order.TimeWindow.Start
		windowEnd = &order.TimeWindow.End
	}

	query := `UPDATE orders SET
		status = $1, multiplier = $2, rejection_count = $3, rejected_drivers = $4,
		window_start = $5, window_end = $6
		WHERE id = $7`

	result, err := r.q.ExecContext(ctx, query,
		order.Status, order.Multiplier, order.RejectionCount, rejectedDriversArray(order),
		windowStart, windowEnd, order.ID)
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
