package geo

import (
	"math"
	"testing"

	"dispatch/internal/domain"
)

func TestHaversineMetersZeroDistance(t *testing.T) {
	t.Parallel()

	p := domain.Point{Lat: 40.7128, Lng: -74.0060}
	if got := HaversineMeters(p, p); got != 0 {
		t.Errorf("HaversineMeters(p, p) = %v, want 0", got)
	}
}

func TestHaversineMetersKnownDistance(t *testing.T) {
	t.Parallel()

	// New York to Los Angeles, roughly 3935 km great-circle.
	nyc := domain.Point{Lat: 40.7128, Lng: -74.0060}
	la := domain.Point{Lat: 34.0522, Lng: -118.2437}

	got := HaversineMeters(nyc, la)
	want := 3935000.0
	tolerance := 20000.0
	if math.Abs(got-want) > tolerance {
		t.Errorf("HaversineMeters(nyc, la) = %v, want within %v of %v", got, tolerance, want)
	}
}

func TestHaversineMetersSymmetric(t *testing.T) {
	t.Parallel()

	a := domain.Point{Lat: 10, Lng: 20}
	b := domain.Point{Lat: -5, Lng: 30}

	if HaversineMeters(a, b) != HaversineMeters(b, a) {
		t.Error("HaversineMeters should be symmetric")
	}
}

func TestCellKeyGroupsNearbyPoints(t *testing.T) {
	t.Parallel()

	a := domain.Point{Lat: 10.00001, Lng: 20.00001}
	b := domain.Point{Lat: 10.00002, Lng: 20.00002}

	if CellKey(a) != CellKey(b) {
		t.Errorf("CellKey(%v) = %s, CellKey(%v) = %s, want equal for nearby points", a, CellKey(a), b, CellKey(b))
	}
}

func TestCellKeyDistinguishesFarPoints(t *testing.T) {
	t.Parallel()

	a := domain.Point{Lat: 10, Lng: 20}
	b := domain.Point{Lat: 11, Lng: 20}

	if CellKey(a) == CellKey(b) {
		t.Errorf("CellKey should differ for points a full degree of latitude apart, got %s for both", CellKey(a))
	}
}

func TestPairKeySymmetric(t *testing.T) {
	t.Parallel()

	from := domain.Point{Lat: 10, Lng: 20}
	to := domain.Point{Lat: 30, Lng: 40}

	if PairKey(from, to, domain.ProfileDriving) != PairKey(to, from, domain.ProfileDriving) {
		t.Error("PairKey should be symmetric regardless of from/to order")
	}
}

func TestPairKeyDistinguishesProfiles(t *testing.T) {
	t.Parallel()

	from := domain.Point{Lat: 10, Lng: 20}
	to := domain.Point{Lat: 30, Lng: 40}

	driving := PairKey(from, to, domain.ProfileDriving)
	walking := PairKey(from, to, domain.ProfileWalking)
	if driving == walking {
		t.Error("PairKey should differ across routing profiles")
	}
}
