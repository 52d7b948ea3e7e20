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

// AssignmentRepository is a PostgreSQL implementation of
// repository.AssignmentRepository.
type AssignmentRepository struct {
	db *sql.DB
	q  Querier
}

// NewAssignmentRepository creates a new PostgreSQL assignment repository.
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, q: db}
}

const assignmentSelectCols = `id, order_id, driver_id, sequence, estimated_pickup, estimated_delivery,
	status, offer_expiry, offer_round, responded_at, reject_reason,
	tw_lower, tw_upper, tw_expected, tw_width_seconds, tw_confidence, tw_violation_probability,
	tw_penalties, tw_method, tw_sample_count, tw_stddev_seconds, tw_coefficient_of_variation`

func scanAssignment(row interface{ Scan(dest ...any) error }) (*domain.Assignment, error) {
	var a domain.Assignment
	var respondedAt sql.NullTime
	var rejectReason sql.NullString
	var twLower, twUpper, twExpected sql.NullTime
	var twWidth sql.NullInt64
	var twConfidence, twViolation, twPenalties, twStdDev, twCoV sql.NullFloat64
	var twMethod sql.NullString
	var twSamples sql.NullInt64

	if err := row.Scan(
		&a.ID, &a.OrderID, &a.DriverID, &a.Sequence, &a.EstimatedPickup, &a.EstimatedDelivery,
		&a.Status, &a.OfferExpiry, &a.OfferRound, &respondedAt, &rejectReason,
		&twLower, &twUpper, &twExpected, &twWidth, &twConfidence, &twViolation,
		&twPenalties, &twMethod, &twSamples, &twStdDev, &twCoV,
	); err != nil {
		return nil, err
	}

	if respondedAt.Valid {
		a.RespondedAt = respondedAt.Time
	}
	a.RejectReason = rejectReason.String

	if twMethod.Valid {
		a.TimeWindow = &domain.TimeWindow{
			LowerBound:             twLower.Time,
			UpperBound:             twUpper.Time,
			ExpectedArrival:        twExpected.Time,
			WidthSeconds:           int(twWidth.Int64),
			Confidence:             twConfidence.Float64,
			ViolationProbability:   twViolation.Float64,
			Penalties:              twPenalties.Float64,
			Method:                 domain.CalculationMethod(twMethod.String),
			SampleCount:            int(twSamples.Int64),
			StdDevSeconds:          twStdDev.Float64,
			CoefficientOfVariation: twCoV.Float64,
		}
	}
	return &a, nil
}

func assignmentArgs(a *domain.Assignment) []any {
	var respondedAt *time.Time
	if !a.RespondedAt.IsZero() {
		respondedAt = &a.RespondedAt
	}

	var twLower, twUpper, twExpected *time.Time
	var twWidth *int
	var twConfidence, twViolation, twPenalties, twStdDev, twCoV *float64
	var twMethod *string
	var twSamples *int

	if a.TimeWindow != nil {
		tw := a.TimeWindow
		twLower, twUpper, twExpected = &tw.LowerBound, &tw.UpperBound, &tw.ExpectedArrival
		twWidth = &tw.WidthSeconds
		twConfidence, twViolation, twPenalties = &tw.Confidence, &tw.ViolationProbability, &tw.Penalties
		method := string(tw.Method)
		twMethod = &method
		twSamples = &tw.SampleCount
		twStdDev, twCoV = &tw.StdDevSeconds, &tw.CoefficientOfVariation
	}

	return []any{
		a.ID, a.OrderID, a.DriverID, a.Sequence, a.EstimatedPickup, a.EstimatedDelivery,
		a.Status, a.OfferExpiry, a.OfferRound, respondedAt, nullableString(a.RejectReason),
		twLower, twUpper, twExpected, twWidth, twConfidence, twViolation,
		twPenalties, twMethod, twSamples, twStdDev, twCoV,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new assignment row.
func (r *AssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	query := `INSERT INTO order_assignments (` + assignmentSelectCols + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`
	_, err := r.q.ExecContext(ctx, query, assignmentArgs(a)...)
	return err
}

// GetByID retrieves an assignment by ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments WHERE id = $1`
	a, err := scanAssignment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update persists an assignment's mutable fields in place.
func (r *AssignmentRepository) Update(ctx context.Context, a *domain.Assignment) error {
	query := `UPDATE order_assignments SET
		sequence=$1, estimated_pickup=$2, estimated_delivery=$3, status=$4, offer_expiry=$5, offer_round=$6,
		responded_at=$7, reject_reason=$8,
		tw_lower=$9, tw_upper=$10, tw_expected=$11, tw_width_seconds=$12, tw_confidence=$13,
		tw_violation_probability=$14, tw_penalties=$15, tw_method=$16, tw_sample_count=$17,
		tw_stddev_seconds=$18, tw_coefficient_of_variation=$19
		WHERE id = $20`

	args := assignmentArgs(a)
	// reorder: drop id/order_id/driver_id from the head, append id at tail
	ordered := append(args[3:], args[0])

	result, err := r.q.ExecContext(ctx, query, ordered...)
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

func (r *AssignmentRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Assignment, error) {
	a, err := scanAssignment(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AssignmentRepository) queryMany(ctx context.Context, query string, args ...any) ([]*domain.Assignment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var nonTerminalStatuses = []domain.AssignmentStatus{
	domain.AssignmentStatusOffered, domain.AssignmentStatusAccepted, domain.AssignmentStatusPickedUp,
}

// GetActiveByOrderID returns the order's single non-terminal assignment, if any.
func (r *AssignmentRepository) GetActiveByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments
		WHERE order_id = $1 AND status = ANY($2)
		ORDER BY offer_round DESC LIMIT 1`
	return r.queryOne(ctx, query, orderID, pq.Array(nonTerminalStatuses))
}

// GetLatestByOrderID returns the most recent assignment for an order regardless of state.
func (r *AssignmentRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments
		WHERE order_id = $1 ORDER BY offer_round DESC LIMIT 1`
	return r.queryOne(ctx, query, orderID)
}

// GetOfferedByDriverID lists a driver's current offer inbox.
func (r *AssignmentRepository) GetOfferedByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments
		WHERE driver_id = $1 AND status = $2 ORDER BY offer_expiry ASC`
	return r.queryMany(ctx, query, driverID, domain.AssignmentStatusOffered)
}

// GetAcceptedRouteByDriverID lists a driver's accepted, non-terminal assignments by sequence.
func (r *AssignmentRepository) GetAcceptedRouteByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments
		WHERE driver_id = $1 AND status IN ($2, $3) ORDER BY sequence ASC`
	return r.queryMany(ctx, query, driverID, domain.AssignmentStatusAccepted, domain.AssignmentStatusPickedUp)
}

// GetExpiredOffers returns Offered assignments whose offerExpiry is before asOf.
func (r *AssignmentRepository) GetExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments
		WHERE status = $1 AND offer_expiry < $2`
	return r.queryMany(ctx, query, domain.AssignmentStatusOffered, asOf)
}

// GetAllOffered returns every assignment currently in Offered state.
func (r *AssignmentRepository) GetAllOffered(ctx context.Context) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentSelectCols + ` FROM order_assignments WHERE status = $1`
	return r.queryMany(ctx, query, domain.AssignmentStatusOffered)
}

// BeginAssignmentTx starts a transaction scoped to an offer creation/rebuild.
func (r *AssignmentRepository) BeginAssignmentTx(ctx context.Context) (repository.AssignmentTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &assignmentTx{
		tx:         tx,
		assignment: &AssignmentRepository{db: r.db, q: tx},
		order:      &OrderRepository{q: tx},
	}, nil
}

// assignmentTx binds the order+assignment writes of one offer together, the
// atomicity the Matching Loop needs so no observer sees one write without
// the other (mirrors the teacher's transactional ride-creation path).
type assignmentTx struct {
	tx         *sql.Tx
	assignment *AssignmentRepository
	order      *OrderRepository
}

func (t *assignmentTx) CreateOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error {
	if err := t.assignment.Create(ctx, a); err != nil {
		return err
	}
	return t.order.Update(ctx, order)
}

func (t *assignmentTx) RebuildOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error {
	if err := t.assignment.Update(ctx, a); err != nil {
		return err
	}
	return t.order.Update(ctx, order)
}

func (t *assignmentTx) Commit() error   { return t.tx.Commit() }
func (t *assignmentTx) Rollback() error { return t.tx.Rollback() }
