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

// DistanceCacheRepository is a PostgreSQL implementation of
// repository.DistanceCacheRepository, the Distance Oracle's only cache
// tier (the oracle keeps no in-memory cache in front of it).
type DistanceCacheRepository struct {
	q Querier
}

// NewDistanceCacheRepository creates a new PostgreSQL distance cache repository.
func NewDistanceCacheRepository(db *sql.DB) *DistanceCacheRepository {
	return &DistanceCacheRepository{q: db}
}

const distanceCacheCols = `key, distance_meters, duration_seconds, geometry, created_at, expires_at`

func scanDistanceCacheEntry(row interface{ Scan(dest ...any) error }) (*domain.DistanceCacheEntry, error) {
	var e domain.DistanceCacheEntry
	var geometry sql.NullString
	if err := row.Scan(&e.Key, &e.DistanceMeters, &e.DurationSeconds, &geometry, &e.CreatedAt, &e.ExpiresAt); err != nil {
		return nil, err
	}
	e.Geometry = geometry.String
	return &e, nil
}

// Get returns the cached entry for key, or ErrNotFound.
func (r *DistanceCacheRepository) Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error) {
	query := `SELECT ` + distanceCacheCols + ` FROM distance_cache WHERE key = $1`
	e, err := scanDistanceCacheEntry(r.q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetMany looks up several keys at once, returning only the hits.
func (r *DistanceCacheRepository) GetMany(ctx context.Context, keys []string) ([]*domain.DistanceCacheEntry, error) {
	query := `SELECT ` + distanceCacheCols + ` FROM distance_cache WHERE key = ANY($1)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DistanceCacheEntry
	for rows.Next() {
		e, err := scanDistanceCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Put upserts an entry, overwriting any prior value for the same key.
func (r *DistanceCacheRepository) Put(ctx context.Context, entry *domain.DistanceCacheEntry) error {
	query := `INSERT INTO distance_cache (` + distanceCacheCols + `) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET
			distance_meters = EXCLUDED.distance_meters,
			duration_seconds = EXCLUDED.duration_seconds,
			geometry = EXCLUDED.geometry,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`
	_, err := r.q.ExecContext(ctx, query,
		entry.Key, entry.DistanceMeters, entry.DurationSeconds, nullableString(entry.Geometry),
		entry.CreatedAt, entry.ExpiresAt)
	return err
}

// PutMany upserts a batch of entries.
func (r *DistanceCacheRepository) PutMany(ctx context.Context, entries []*domain.DistanceCacheEntry) error {
	for _, e := range entries {
		if err := r.Put(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExpired removes entries whose ExpiresAt is before asOf.
func (r *DistanceCacheRepository) DeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM distance_cache WHERE expires_at < $1`, asOf)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
