// Package pgxstore holds the one table in the persisted layout whose
// access pattern — bulk append, bulk sample read — doesn't fit the
// single-row CRUD the rest of the core does over database/sql: it talks
// to Postgres through pgxpool directly.
package pgxstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/repository"
)

// ObservationRepository is a pgx implementation of
// repository.ObservationRepository over route_segment_observations.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository creates a new pgx-backed observation repository.
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// AppendBatch inserts many observations in one round-trip via pgx.Batch.
func (r *ObservationRepository) AppendBatch(ctx context.Context, obs []repository.RouteSegmentObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const stmt = `INSERT INTO route_segment_observations
		(driver_id, order_id, from_lat, from_lng, to_lat, to_lng, from_key, to_key, profile, actual_seconds, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	for _, o := range obs {
		batch.Queue(stmt,
			o.DriverID, o.OrderID, o.From.Lat, o.From.Lng, o.To.Lat, o.To.Lng,
			geo.CellKey(o.From), geo.CellKey(o.To), o.Profile, o.ActualSeconds, o.ObservedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	for range obs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

// SampleRecent returns up to limit recent observations for a (from-cell,
// to-cell, profile) bucket, newest first.
func (r *ObservationRepository) SampleRecent(
	ctx context.Context, fromKey, toKey string, profile domain.RoutingProfile, limit int,
) ([]repository.RouteSegmentObservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT driver_id, order_id, from_lat, from_lng, to_lat, to_lng, profile, actual_seconds, observed_at
		FROM route_segment_observations
		WHERE from_key = $1 AND to_key = $2 AND profile = $3
		ORDER BY observed_at DESC
		LIMIT $4`,
		fromKey, toKey, profile, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.RouteSegmentObservation
	for rows.Next() {
		var o repository.RouteSegmentObservation
		if err := rows.Scan(
			&o.DriverID, &o.OrderID, &o.From.Lat, &o.From.Lng, &o.To.Lat, &o.To.Lng,
			&o.Profile, &o.ActualSeconds, &o.ObservedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
