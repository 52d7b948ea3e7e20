package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// DistanceCacheRepository defines the persistence operations for cached
// routing results keyed by a symmetric, grid-quantised (origin, destination,
// profile) hash.
type DistanceCacheRepository interface {
	// Get returns the cached entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error)

	// GetMany looks up several keys at once, returning only the hits — a
	// caller must treat absent keys as misses needing a provider round-trip.
	GetMany(ctx context.Context, keys []string) ([]*domain.DistanceCacheEntry, error)

	// Put upserts an entry, overwriting any prior value for the same key.
	Put(ctx context.Context, entry *domain.DistanceCacheEntry) error

	// PutMany upserts a batch of entries in one round-trip.
	PutMany(ctx context.Context, entries []*domain.DistanceCacheEntry) error

	// DeleteExpired removes entries whose ExpiresAt is before asOf and
	// reports how many rows were removed.
	DeleteExpired(ctx context.Context, asOf time.Time) (int64, error)
}
