package domain

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		from DriverStatus
		to   DriverStatus
		want bool
	}{
		{"offline to available", DriverStatusOffline, DriverStatusAvailable, true},
		{"offline to en route", DriverStatusOffline, DriverStatusEnRoutePickup, false},
		{"available to en route pickup", DriverStatusAvailable, DriverStatusEnRoutePickup, true},
		{"available to offline", DriverStatusAvailable, DriverStatusOffline, true},
		{"available to at pickup", DriverStatusAvailable, DriverStatusAtPickup, false},
		{"en route pickup to at pickup", DriverStatusEnRoutePickup, DriverStatusAtPickup, true},
		{"en route pickup to available (offer cancelled before pickup)", DriverStatusEnRoutePickup, DriverStatusAvailable, true},
		{"at pickup to en route delivery", DriverStatusAtPickup, DriverStatusEnRouteDeliver, true},
		{"en route delivery to at delivery", DriverStatusEnRouteDeliver, DriverStatusAtDelivery, true},
		{"at delivery to available", DriverStatusAtDelivery, DriverStatusAvailable, true},
		{"at delivery to offline", DriverStatusAtDelivery, DriverStatusOffline, true},
		{"at delivery to en route pickup skips the loop", DriverStatusAtDelivery, DriverStatusEnRoutePickup, false},
		{"unknown source status", DriverStatus("BOGUS"), DriverStatusAvailable, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestDriverIsMatchable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status DriverStatus
		want   bool
	}{
		{"available", DriverStatusAvailable, true},
		{"en route pickup", DriverStatusEnRoutePickup, true},
		{"offline", DriverStatusOffline, false},
		{"at pickup", DriverStatusAtPickup, false},
		{"en route delivery", DriverStatusEnRouteDeliver, false},
		{"at delivery", DriverStatusAtDelivery, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := &Driver{Status: tc.status}
			if got := d.IsMatchable(); got != tc.want {
				t.Errorf("IsMatchable() with status %s = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestDriverIsEnRoute(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status DriverStatus
		want   bool
	}{
		{"en route pickup", DriverStatusEnRoutePickup, true},
		{"en route delivery", DriverStatusEnRouteDeliver, true},
		{"available", DriverStatusAvailable, false},
		{"at pickup", DriverStatusAtPickup, false},
		{"at delivery", DriverStatusAtDelivery, false},
		{"offline", DriverStatusOffline, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := &Driver{Status: tc.status}
			if got := d.IsEnRoute(); got != tc.want {
				t.Errorf("IsEnRoute() with status %s = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}
