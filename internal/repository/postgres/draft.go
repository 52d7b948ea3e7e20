package postgres

import (
	"context"
	"database/sql"
	"time"

	"dispatch/internal/domain"
)

// DraftRepository is a PostgreSQL implementation of repository.DraftRepository.
// Rows here are ephemeral: TruncateAll is called at the start of every
// matching run before any candidate of that run is persisted.
type DraftRepository struct {
	db *sql.DB
}

// NewDraftRepository creates a new PostgreSQL draft repository.
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// TruncateAll discards every draft row left over from a prior run.
func (r *DraftRepository) TruncateAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE draft_assignments, draft_groups`)
	return err
}

// CreateGroup persists one candidate DraftGroup and its assignments.
func (r *DraftRepository) CreateGroup(ctx context.Context, g *domain.DraftGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var groupID int64
	row := tx.QueryRowContext(ctx, `INSERT INTO draft_groups
		(session_id, total_travel_time_seconds, total_distance_meters, algorithm,
		 compute_elapsed_ms, quality_score, is_selected)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		g.SessionID, g.TotalTravelTimeSeconds, g.TotalDistanceMeters, g.Algorithm,
		g.ComputeElapsed.Milliseconds(), g.QualityScore, g.IsSelected)
	if err := row.Scan(&groupID); err != nil {
		return err
	}

	for _, a := range g.Assignments {
		_, err := tx.ExecContext(ctx, `INSERT INTO draft_assignments
			(draft_group_id, order_id, driver_id, sequence, estimated_pickup, estimated_delivery,
			 insertion_cost, distance_to_pickup_m, distance_to_dropoff_m)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			groupID, a.OrderID, a.DriverID, a.Sequence, a.EstimatedPickup, a.EstimatedDelivery,
			a.InsertionCost, a.DistanceToPickupM, a.DistanceToDropoffM)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBySessionID returns every DraftGroup produced in a given session.
func (r *DraftRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*domain.DraftGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, session_id, total_travel_time_seconds,
		total_distance_meters, algorithm, compute_elapsed_ms, quality_score, is_selected
		FROM draft_groups WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		id int64
		g  domain.DraftGroup
	}
	var groups []row
	for rows.Next() {
		var rr row
		var elapsedMs int64
		if err := rows.Scan(&rr.id, &rr.g.SessionID, &rr.g.TotalTravelTimeSeconds,
			&rr.g.TotalDistanceMeters, &rr.g.Algorithm, &elapsedMs, &rr.g.QualityScore, &rr.g.IsSelected); err != nil {
			return nil, err
		}
		rr.g.ComputeElapsed = msToDuration(elapsedMs)
		groups = append(groups, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.DraftGroup, 0, len(groups))
	for _, rr := range groups {
		assignments, err := r.assignmentsForGroup(ctx, rr.id)
		if err != nil {
			return nil, err
		}
		g := rr.g
		g.Assignments = assignments
		out = append(out, &g)
	}
	return out, nil
}

func (r *DraftRepository) assignmentsForGroup(ctx context.Context, groupID int64) ([]domain.DraftAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT order_id, driver_id, sequence, estimated_pickup,
		estimated_delivery, insertion_cost, distance_to_pickup_m, distance_to_dropoff_m
		FROM draft_assignments WHERE draft_group_id = $1 ORDER BY sequence`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DraftAssignment
	for rows.Next() {
		var a domain.DraftAssignment
		if err := rows.Scan(&a.OrderID, &a.DriverID, &a.Sequence, &a.EstimatedPickup, &a.EstimatedDelivery,
			&a.InsertionCost, &a.DistanceToPickupM, &a.DistanceToDropoffM); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkSelected flags the winning DraftGroup of a session, clearing the flag
// from every other candidate in that session.
func (r *DraftRepository) MarkSelected(ctx context.Context, sessionID string, index int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE draft_groups SET is_selected = false WHERE session_id = $1`, sessionID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM draft_groups WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if index < 0 || index >= len(ids) {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE draft_groups SET is_selected = true WHERE id = $1`, ids[index]); err != nil {
		return err
	}

	return tx.Commit()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
