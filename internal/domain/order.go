package domain

import "time"

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOffered   OrderStatus = "OFFERED"
	OrderStatusAssigned  OrderStatus = "ASSIGNED"
	OrderStatusPickedUp  OrderStatus = "PICKED_UP"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Order represents a pending or in-flight delivery order.
type Order struct {
	ID         string
	Pickup     Point
	Dropoff    Point
	RequestedFor time.Time
	TimeWindow *TimeOfDayPreference // optional

	BasePriority int // 1-10
	Multiplier   float64

	RejectionCount   int
	RejectedDrivers  map[string]struct{}

	Status    OrderStatus
	CreatedAt time.Time
}

// TimeOfDayPreference is an optional customer-stated delivery window.
type TimeOfDayPreference struct {
	Start time.Time
	End   time.Time
}

// EffectivePriority is the sort key for pending orders: base * multiplier.
func (o *Order) EffectivePriority() float64 {
	return float64(o.BasePriority) * o.Multiplier
}

// HasRejected reports whether driverID already refused this order.
func (o *Order) HasRejected(driverID string) bool {
	if o.RejectedDrivers == nil {
		return false
	}
	_, ok := o.RejectedDrivers[driverID]
	return ok
}

// BoostPriority is applied on every reject/expire: multiplier += 0.2.
// The multiplier is monotonically non-decreasing for the order's lifetime.
func (o *Order) BoostPriority() {
	o.Multiplier += 0.2
}

// Blacklist appends driverID to the rejected-driver set and bumps the
// rejection counter. It does not boost the multiplier — callers decide
// whether a reject also implies a priority boost (it always does per
// the offer lifecycle, but tests exercise the two independently).
func (o *Order) Blacklist(driverID string) {
	if o.RejectedDrivers == nil {
		o.RejectedDrivers = make(map[string]struct{})
	}
	o.RejectedDrivers[driverID] = struct{}{}
	o.RejectionCount++
}
