package domain

import "time"

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOffline        DriverStatus = "OFFLINE"
	DriverStatusAvailable      DriverStatus = "AVAILABLE"
	DriverStatusEnRoutePickup  DriverStatus = "EN_ROUTE_PICKUP"
	DriverStatusAtPickup       DriverStatus = "AT_PICKUP"
	DriverStatusEnRouteDeliver DriverStatus = "EN_ROUTE_DELIVERY"
	DriverStatusAtDelivery     DriverStatus = "AT_DELIVERY"
)

// driverTransitions is the directed graph of legal driver status moves,
// per spec 4.7. Anything not listed here is rejected.
var driverTransitions = map[DriverStatus]map[DriverStatus]bool{
	DriverStatusOffline:        {DriverStatusAvailable: true},
	DriverStatusAvailable:      {DriverStatusEnRoutePickup: true, DriverStatusOffline: true},
	DriverStatusEnRoutePickup:  {DriverStatusAtPickup: true, DriverStatusAvailable: true},
	DriverStatusAtPickup:       {DriverStatusEnRouteDeliver: true},
	DriverStatusEnRouteDeliver: {DriverStatusAtDelivery: true},
	DriverStatusAtDelivery:     {DriverStatusAvailable: true, DriverStatusOffline: true},
}

// CanTransition reports whether from -> to is a legal driver status move.
func CanTransition(from, to DriverStatus) bool {
	next, ok := driverTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// DefaultMaxConcurrentLoad is used when a driver record omits a capacity.
const DefaultMaxConcurrentLoad = 3

// Driver represents a driver in the dispatch pool.
type Driver struct {
	ID                string
	Name              string
	Phone             string
	VehicleType       string
	MaxConcurrentLoad int

	Status   DriverStatus
	Location DriverLocation
}

// DriverLocation is a driver's last-known position.
type DriverLocation struct {
	Point     Point
	Timestamp time.Time
	Heading   *float64 // degrees, optional
	SpeedMps  *float64 // optional
}

// IsMatchable reports whether the driver can currently receive new offers.
func (d *Driver) IsMatchable() bool {
	return d.Status == DriverStatusAvailable || d.Status == DriverStatusEnRoutePickup
}

// IsEnRoute reports whether the driver is actively travelling a leg, as
// opposed to idle, waiting at a stop, or offline.
func (d *Driver) IsEnRoute() bool {
	return d.Status == DriverStatusEnRoutePickup || d.Status == DriverStatusEnRouteDeliver
}
