package distance

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/provider"
	"dispatch/internal/testutil"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestGetRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	cache := testutil.NewFakeDistanceCacheRepository()
	prov := &testutil.FakeDistanceProvider{}
	o := New(cache, prov, fixedClock(time.Now()), 0)

	_, _, err := o.Get(context.Background(), domain.Point{Lat: 999, Lng: 0}, domain.Point{Lat: 0, Lng: 0}, domain.ProfileDriving)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Get() with out-of-range latitude error = %v, want ErrInvalidInput", err)
	}
}

func TestGetReturnsCachedEntryWithoutCallingProvider(t *testing.T) {
	t.Parallel()

	now := time.Now()
	from := domain.Point{Lat: 1, Lng: 1}
	to := domain.Point{Lat: 1.01, Lng: 1.01}
	cache := testutil.NewFakeDistanceCacheRepository()
	key := geo.PairKey(from, to, domain.ProfileDriving)
	cache.Put(context.Background(), &domain.DistanceCacheEntry{
		Key: key, DistanceMeters: 1500, DurationSeconds: 120,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	prov := &testutil.FakeDistanceProvider{}
	o := New(cache, prov, fixedClock(now), 0)

	meters, seconds, err := o.Get(context.Background(), from, to, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if meters != 1500 || seconds != 120 {
		t.Errorf("Get() = (%v, %v), want (1500, 120) from cache", meters, seconds)
	}
	if prov.RouteCallCount != 0 {
		t.Errorf("provider.Route called %d times, want 0 on a cache hit", prov.RouteCallCount)
	}
}

func TestGetCallsProviderOnCacheMissAndWritesBack(t *testing.T) {
	t.Parallel()

	now := time.Now()
	from := domain.Point{Lat: 1, Lng: 1}
	to := domain.Point{Lat: 1.01, Lng: 1.01}
	cache := testutil.NewFakeDistanceCacheRepository()
	prov := &testutil.FakeDistanceProvider{
		RouteFunc: func(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
			return provider.Route{DistanceMeters: 2000, DurationSeconds: 180}, nil
		},
	}
	o := New(cache, prov, fixedClock(now), 0)

	meters, seconds, err := o.Get(context.Background(), from, to, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if meters != 2000 || seconds != 180 {
		t.Errorf("Get() = (%v, %v), want (2000, 180) from provider", meters, seconds)
	}
	if prov.RouteCallCount != 1 {
		t.Errorf("provider.Route called %d times, want 1", prov.RouteCallCount)
	}
}

func TestGetExpiredCacheEntryFallsThroughToProvider(t *testing.T) {
	t.Parallel()

	now := time.Now()
	from := domain.Point{Lat: 1, Lng: 1}
	to := domain.Point{Lat: 1.01, Lng: 1.01}
	cache := testutil.NewFakeDistanceCacheRepository()
	key := geo.PairKey(from, to, domain.ProfileDriving)
	cache.Put(context.Background(), &domain.DistanceCacheEntry{
		Key: key, DistanceMeters: 999, DurationSeconds: 1,
		CreatedAt: now.Add(-2 * domain.DistanceCacheTTL), ExpiresAt: now.Add(-domain.DistanceCacheTTL),
	})
	prov := &testutil.FakeDistanceProvider{
		RouteFunc: func(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
			return provider.Route{DistanceMeters: 3000, DurationSeconds: 240}, nil
		},
	}
	o := New(cache, prov, fixedClock(now), 0)

	meters, _, err := o.Get(context.Background(), from, to, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if meters != 3000 {
		t.Errorf("Get() on an expired entry = %v, want the fresh provider value 3000", meters)
	}
}

func TestGetRetriesOnceOnTransientProviderError(t *testing.T) {
	t.Parallel()

	cache := testutil.NewFakeDistanceCacheRepository()
	attempt := 0
	prov := &testutil.FakeDistanceProvider{
		RouteFunc: func(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
			attempt++
			if attempt == 1 {
				return provider.Route{}, provider.ErrTransient
			}
			return provider.Route{DistanceMeters: 500, DurationSeconds: 60}, nil
		},
	}
	o := New(cache, prov, fixedClock(time.Now()), 0)

	meters, _, err := o.Get(context.Background(), domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 1.01, Lng: 1.01}, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("Get() returned error after one transient failure: %v", err)
	}
	if meters != 500 {
		t.Errorf("Get() after retry = %v, want 500", meters)
	}
	if prov.RouteCallCount != 2 {
		t.Errorf("provider.Route called %d times, want 2 (initial + one retry)", prov.RouteCallCount)
	}
}

func TestGetDoesNotRetryOnNonTransientProviderError(t *testing.T) {
	t.Parallel()

	cache := testutil.NewFakeDistanceCacheRepository()
	permanent := errors.New("boom")
	prov := &testutil.FakeDistanceProvider{
		RouteFunc: func(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
			return provider.Route{}, permanent
		},
	}
	o := New(cache, prov, fixedClock(time.Now()), 0)

	_, _, err := o.Get(context.Background(), domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 1.01, Lng: 1.01}, domain.ProfileDriving)
	if !errors.Is(err, ErrProvider) {
		t.Errorf("Get() error = %v, want ErrProvider", err)
	}
	if prov.RouteCallCount != 1 {
		t.Errorf("provider.Route called %d times, want 1 (no retry on a non-transient error)", prov.RouteCallCount)
	}
}

func TestWithinPreFilter(t *testing.T) {
	t.Parallel()

	cache := testutil.NewFakeDistanceCacheRepository()
	o := New(cache, &testutil.FakeDistanceProvider{}, fixedClock(time.Now()), 1)

	origin := domain.Point{Lat: 1, Lng: 1}
	near := domain.Point{Lat: 1.001, Lng: 1.001}
	far := domain.Point{Lat: 10, Lng: 10}

	if !o.WithinPreFilter(origin, near) {
		t.Error("WithinPreFilter() for nearby points = false, want true")
	}
	if o.WithinPreFilter(origin, far) {
		t.Error("WithinPreFilter() for distant points = true, want false")
	}
}

func TestGetMatrixRejectsEmptyPoints(t *testing.T) {
	t.Parallel()

	o := New(testutil.NewFakeDistanceCacheRepository(), &testutil.FakeDistanceProvider{}, fixedClock(time.Now()), 0)
	_, _, _, err := o.GetMatrix(context.Background(), nil, domain.ProfileDriving)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("GetMatrix() on empty input error = %v, want ErrInvalidInput", err)
	}
}

func TestGetMatrixFillsDiagonalAndUsesBatchedProviderCall(t *testing.T) {
	t.Parallel()

	points := []domain.Point{{Lat: 1, Lng: 1}, {Lat: 1.01, Lng: 1.01}, {Lat: 1.02, Lng: 1.02}}
	prov := &testutil.FakeDistanceProvider{
		MatrixFunc: func(ctx context.Context, pts []domain.Point, profile domain.RoutingProfile) (provider.MatrixResult, error) {
			n := len(pts)
			d := make([][]float64, n)
			du := make([][]float64, n)
			for i := range d {
				d[i] = make([]float64, n)
				du[i] = make([]float64, n)
				for j := range d[i] {
					if i != j {
						d[i][j] = 100
						du[i][j] = 10
					}
				}
			}
			return provider.MatrixResult{Distances: d, Durations: du}, nil
		},
	}
	o := New(testutil.NewFakeDistanceCacheRepository(), prov, fixedClock(time.Now()), 0)

	dist, _, missing, err := o.GetMatrix(context.Background(), points, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("GetMatrix() returned error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing pairs = %d, want 0", len(missing))
	}
	for i := range dist {
		if dist[i][i] != 0 {
			t.Errorf("dist[%d][%d] = %v, want 0 on the diagonal", i, i, dist[i][i])
		}
	}
	if prov.MatrixCallCount != 1 {
		t.Errorf("provider.Matrix called %d times, want 1 (all misses batched into a single call)", prov.MatrixCallCount)
	}
}

func TestGetMatrixReusesCacheAndSkipsProviderWhenFullyWarm(t *testing.T) {
	t.Parallel()

	now := time.Now()
	points := []domain.Point{{Lat: 1, Lng: 1}, {Lat: 1.01, Lng: 1.01}}
	cache := testutil.NewFakeDistanceCacheRepository()
	for i := 0; i < len(points); i++ {
		for j := 0; j < len(points); j++ {
			if i == j {
				continue
			}
			key := geo.PairKey(points[i], points[j], domain.ProfileDriving)
			cache.Put(context.Background(), &domain.DistanceCacheEntry{
				Key: key, DistanceMeters: 42, DurationSeconds: 4,
				CreatedAt: now, ExpiresAt: now.Add(time.Hour),
			})
		}
	}
	prov := &testutil.FakeDistanceProvider{}
	o := New(cache, prov, fixedClock(now), 0)

	dist, _, missing, err := o.GetMatrix(context.Background(), points, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("GetMatrix() returned error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing pairs = %d, want 0", len(missing))
	}
	if dist[0][1] != 42 {
		t.Errorf("dist[0][1] = %v, want 42 from the warm cache", dist[0][1])
	}
	if prov.MatrixCallCount != 0 {
		t.Errorf("provider.Matrix called %d times, want 0 when every pair is already cached", prov.MatrixCallCount)
	}
}
