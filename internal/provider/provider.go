// Package provider holds the Distance Oracle's only external collaborator:
// the road-network routing service (spec's "black box"). It is reached
// over gRPC, matching how the rest of the pack talks to routing/solver
// services it doesn't own.
package provider

import (
	"context"
	"errors"

	"dispatch/internal/domain"
)

// ErrTransient marks a failure the Distance Oracle is allowed to retry
// once before surfacing it to its own caller (provider timeout, rejected
// request, connection reset).
var ErrTransient = errors.New("distance provider: transient failure")

// Route is one leg returned by the external provider.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        string
}

// MatrixResult is the stitched-together output of a matrix call. Missing
// holds the flat indices (i*len(points)+j) the provider could not price;
// callers must tolerate a partial fill.
type MatrixResult struct {
	Distances [][]float64
	Durations [][]float64
	Missing   []int
}

// DistanceProvider is the routing collaborator's contract (spec 6): a
// single-pair route lookup and a bounded batch matrix lookup.
type DistanceProvider interface {
	Route(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (Route, error)
	Matrix(ctx context.Context, points []domain.Point, profile domain.RoutingProfile) (MatrixResult, error)
}

// MaxMatrixPoints is the provider's documented per-call ceiling (spec 6).
const MaxMatrixPoints = 25
