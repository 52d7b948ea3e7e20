// Package distance implements the Distance Oracle: a TTL-cached facade
// over the external routing provider, backed by the grid-quantised
// symmetric key scheme in internal/geo.
package distance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/metrics"
	"dispatch/internal/provider"
	"dispatch/internal/repository"
)

// Sentinel errors in the oracle's own taxonomy (spec 4.1/7): transient
// provider failures are retried once by the oracle itself before being
// handed back; invalid input is a caller bug and is never retried.
var (
	ErrInvalidInput = errors.New("distance: invalid input")
	ErrProvider     = errors.New("distance: provider failure")
)

// DefaultPreFilterKM is the great-circle threshold beyond which a pair is
// rejected before any external call is attempted (spec 4.1).
const DefaultPreFilterKM = 100.0

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Oracle is the Distance Oracle: get/getMatrix backed by a persistent
// cache and a pluggable road-network provider.
type Oracle struct {
	cache      repository.DistanceCacheRepository
	provider   provider.DistanceProvider
	clock      Clock
	preFilterM float64
}

// New builds an Oracle. preFilterKM <= 0 uses the spec default.
func New(cache repository.DistanceCacheRepository, p provider.DistanceProvider, clock Clock, preFilterKM float64) *Oracle {
	if clock == nil {
		clock = time.Now
	}
	if preFilterKM <= 0 {
		preFilterKM = DefaultPreFilterKM
	}
	return &Oracle{cache: cache, provider: p, clock: clock, preFilterM: preFilterKM * 1000}
}

// Get returns (meters, seconds) for an ordered pair under profile.
func (o *Oracle) Get(ctx context.Context, origin, destination domain.Point, profile domain.RoutingProfile) (float64, float64, error) {
	if !origin.Valid() || !destination.Valid() {
		return 0, 0, fmt.Errorf("%w: coordinate out of range", ErrInvalidInput)
	}

	key := geo.PairKey(origin, destination, profile)
	if entry, err := o.cache.Get(ctx, key); err == nil {
		if !entry.Expired(o.clock()) {
			metrics.RecordCacheLookup(true)
			return entry.DistanceMeters, entry.DurationSeconds, nil
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("distance: cache read failed for %s: %v", key, err)
	}
	metrics.RecordCacheLookup(false)

	callStart := o.clock()
	route, err := o.callProviderWithRetry(ctx, origin, destination, profile)
	metrics.RecordProviderCall("route", o.clock().Sub(callStart))
	if err != nil {
		return 0, 0, err
	}

	o.writeCacheAsync(key, route)
	return route.DistanceMeters, route.DurationSeconds, nil
}

func (o *Oracle) callProviderWithRetry(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
	route, err := o.provider.Route(ctx, from, to, profile)
	if err == nil {
		return route, nil
	}
	if !errors.Is(err, provider.ErrTransient) {
		return provider.Route{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	route, err = o.provider.Route(ctx, from, to, profile)
	if err != nil {
		return provider.Route{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return route, nil
}

// writeCacheAsync persists the result; a failure is logged, never
// propagated — cache writes are best-effort (spec 4.1/7).
func (o *Oracle) writeCacheAsync(key string, route provider.Route) {
	entry := &domain.DistanceCacheEntry{
		Key:             key,
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		Geometry:        route.Geometry,
		CreatedAt:       o.clock(),
		ExpiresAt:       o.clock().Add(domain.DistanceCacheTTL),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.cache.Put(ctx, entry); err != nil {
			log.Printf("distance: cache write failed for %s: %v", key, err)
		}
	}()
}

// WithinPreFilter reports whether two points are close enough to bother
// calling the provider for a "nearest driver" style selection.
func (o *Oracle) WithinPreFilter(a, b domain.Point) bool {
	return geo.HaversineMeters(a, b) <= o.preFilterM
}

// GetMatrix computes pairwise (meters, seconds) for n points. The diagonal
// is zero. Uncached pairs are batched into one provider.Matrix call;
// partial provider failures return a partial matrix and the set of
// missing (i,j) indices rather than failing outright.
func (o *Oracle) GetMatrix(ctx context.Context, points []domain.Point, profile domain.RoutingProfile) ([][]float64, [][]float64, []MissingPair, error) {
	n := len(points)
	if n == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty point set", ErrInvalidInput)
	}
	for _, p := range points {
		if !p.Valid() {
			return nil, nil, nil, fmt.Errorf("%w: coordinate out of range", ErrInvalidInput)
		}
	}

	dist := make([][]float64, n)
	dur := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		dur[i] = make([]float64, n)
	}

	type uncached struct{ i, j int }
	var misses []uncached

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			key := geo.PairKey(points[i], points[j], profile)
			entry, err := o.cache.Get(ctx, key)
			if err == nil && !entry.Expired(o.clock()) {
				dist[i][j] = entry.DistanceMeters
				dur[i][j] = entry.DurationSeconds
				metrics.RecordCacheLookup(true)
				continue
			}
			metrics.RecordCacheLookup(false)
			misses = append(misses, uncached{i, j})
		}
	}

	if len(misses) == 0 {
		return dist, dur, nil, nil
	}

	// Collect the distinct point indices involved in any miss and send one
	// batched request for all of them (spec 4.1: "issue a batched request
	// to the external matrix API for the locations involved").
	involved := map[int]bool{}
	for _, m := range misses {
		involved[m.i] = true
		involved[m.j] = true
	}
	idxList := make([]int, 0, len(involved))
	for idx := range involved {
		idxList = append(idxList, idx)
	}
	subset := make([]domain.Point, len(idxList))
	localIndex := make(map[int]int, len(idxList))
	for k, idx := range idxList {
		subset[k] = points[idx]
		localIndex[idx] = k
	}

	result, err := o.provider.Matrix(ctx, subset, profile)
	if err != nil && !errors.Is(err, provider.ErrTransient) {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	missingSet := map[int]bool{}
	for _, flatIdx := range result.Missing {
		missingSet[flatIdx] = true
	}

	var missingPairs []MissingPair
	var toCache []*domain.DistanceCacheEntry

	for _, m := range misses {
		li, lj := localIndex[m.i], localIndex[m.j]
		flatIdx := li*len(subset) + lj
		if missingSet[flatIdx] || result.Distances == nil {
			missingPairs = append(missingPairs, MissingPair{I: m.i, J: m.j})
			continue
		}
		d, du := result.Distances[li][lj], result.Durations[li][lj]
		dist[m.i][m.j], dur[m.i][m.j] = d, du

		key := geo.PairKey(points[m.i], points[m.j], profile)
		toCache = append(toCache, &domain.DistanceCacheEntry{
			Key: key, DistanceMeters: d, DurationSeconds: du,
			CreatedAt: o.clock(), ExpiresAt: o.clock().Add(domain.DistanceCacheTTL),
		})
	}

	if len(toCache) > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := o.cache.PutMany(ctx, toCache); err != nil {
				log.Printf("distance: batch cache write failed: %v", err)
			}
		}()
	}

	return dist, dur, missingPairs, nil
}

// MissingPair identifies a matrix cell the provider could not price.
type MissingPair struct {
	I, J int
}
