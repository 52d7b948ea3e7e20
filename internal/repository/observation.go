package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// RouteSegmentObservation is one historical travelled-leg sample: the
// points and elapsed seconds between two consecutive location pings of an
// en-route driver.
type RouteSegmentObservation struct {
	DriverID       string
	OrderID        string
	From           domain.Point
	To             domain.Point
	Profile        domain.RoutingProfile
	ActualSeconds  float64
	ObservedAt     time.Time
}

// ObservationRepository defines the append-only, bulk-read access pattern
// over route_segment_observations. Its implementation
// (internal/repository/pgxstore) uses pgx directly rather than
// database/sql: this table is bulk-appended by the driver-location ingest
// path and read back in bulk through SampleRecent, not single-row CRUD.
// Nothing in the module calls SampleRecent.
type ObservationRepository interface {
	// AppendBatch inserts many observations in one round-trip.
	AppendBatch(ctx context.Context, obs []RouteSegmentObservation) error

	// SampleRecent returns up to limit recent observations for a
	// (from-cell, to-cell, profile) bucket, newest first, for the oracle
	// to compute quantiles/coefficient-of-variation from.
	SampleRecent(ctx context.Context, fromKey, toKey string, profile domain.RoutingProfile, limit int) ([]RouteSegmentObservation, error)
}
