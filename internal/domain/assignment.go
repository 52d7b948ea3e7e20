package domain

import "time"

// AssignmentStatus is the lifecycle state of an offer.
type AssignmentStatus string

const (
	AssignmentStatusOffered   AssignmentStatus = "OFFERED"
	AssignmentStatusAccepted  AssignmentStatus = "ACCEPTED"
	AssignmentStatusRejected  AssignmentStatus = "REJECTED"
	AssignmentStatusExpired   AssignmentStatus = "EXPIRED"
	AssignmentStatusPickedUp  AssignmentStatus = "PICKED_UP"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusCancelled AssignmentStatus = "CANCELLED"
)

// IsTerminal reports whether the assignment can no longer change state.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentStatusCompleted, AssignmentStatusCancelled:
		return true
	default:
		return false
	}
}

// CalculationMethod tags how a TimeWindow's bounds were derived. The
// stochastic time-window optimiser is a black-box oracle (spec 4.9); this
// is the tagged-variant encoding of its output rather than an "any" blob.
type CalculationMethod string

const (
	CalculationMethodSimpleHeuristic         CalculationMethod = "SIMPLE_HEURISTIC"
	CalculationMethodStochasticSAA           CalculationMethod = "STOCHASTIC_SAA"
	CalculationMethodDistributionallyRobust  CalculationMethod = "DISTRIBUTIONALLY_ROBUST"
)

// TimeWindow is the optional arrival-estimate payload an assignment may
// carry. Written once at assignment creation, never mutated afterward.
type TimeWindow struct {
	LowerBound         time.Time
	UpperBound         time.Time
	ExpectedArrival    time.Time
	WidthSeconds       int
	Confidence         float64
	ViolationProbability float64
	Penalties          float64
	Method             CalculationMethod
	SampleCount        int     // only meaningful for StochasticSAA
	StdDevSeconds      float64 // only meaningful for StochasticSAA
	CoefficientOfVariation float64
}

// Assignment binds one order to one driver for one offer round.
type Assignment struct {
	ID       string
	OrderID  string
	DriverID string

	Sequence int // 1-based position within the driver's non-terminal route

	EstimatedPickup   time.Time
	EstimatedDelivery time.Time

	Status AssignmentStatus

	OfferExpiry time.Time
	OfferRound  int

	RespondedAt    time.Time
	RejectReason   string

	TimeWindow *TimeWindow
}
