package domain

import "time"

// DraftAlgorithm tags which construction/improvement path produced a
// DraftGroup.
type DraftAlgorithm string

const (
	DraftAlgorithmSavings DraftAlgorithm = "savings"
	DraftAlgorithmALNS    DraftAlgorithm = "alns"
)

// DraftConstraint names an invariant the Draft Orchestrator checks.
type DraftConstraint string

const (
	DraftConstraintVRPPD      DraftConstraint = "vrppd"
	DraftConstraintCapacity   DraftConstraint = "capacity"
	DraftConstraintRejection  DraftConstraint = "rejection"
)

// DraftAssignment is the ephemeral, pre-persistence shape of an Assignment
// produced by the optimiser. One DraftGroup owns many DraftAssignments.
type DraftAssignment struct {
	OrderID  string
	DriverID string
	Sequence int

	EstimatedPickup   time.Time
	EstimatedDelivery time.Time

	InsertionCost      float64
	DistanceToPickupM  float64
	DistanceToDropoffM float64

	TimeWindow *TimeWindow
}

// DraftGroup is one candidate solution from one optimisation session.
type DraftGroup struct {
	SessionID string

	Assignments []DraftAssignment

	TotalTravelTimeSeconds float64
	TotalDistanceMeters    float64

	Algorithm DraftAlgorithm

	ComputeElapsed time.Duration
	QualityScore   float64

	ConstraintsViolated map[DraftConstraint]bool

	IsSelected bool
}

// Feasible reports whether no hard constraint was recorded as violated.
func (g *DraftGroup) Feasible() bool {
	for _, violated := range g.ConstraintsViolated {
		if violated {
			return false
		}
	}
	return true
}

// Violate records a constraint violation on the group without discarding it.
func (g *DraftGroup) Violate(c DraftConstraint) {
	if g.ConstraintsViolated == nil {
		g.ConstraintsViolated = make(map[DraftConstraint]bool)
	}
	g.ConstraintsViolated[c] = true
}
