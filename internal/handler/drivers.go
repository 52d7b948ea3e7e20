package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/repository"
)

// geoIndex is the subset of LocationStore the handler needs, narrowed so
// tests can fake it without pulling in a real Redis client.
type geoIndex interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
}

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	drivers      repository.DriverRepository
	assignments  repository.AssignmentRepository
	orders       repository.OrderRepository
	observations repository.ObservationRepository
	geo          geoIndex
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(drivers repository.DriverRepository, assignments repository.AssignmentRepository, orders repository.OrderRepository) *DriverHandler {
	return &DriverHandler{drivers: drivers, assignments: assignments, orders: orders}
}

// WithObservations attaches the repository backing route-segment ingest
// from location pings. Optional: a handler with none just skips recording.
func (h *DriverHandler) WithObservations(observations repository.ObservationRepository) *DriverHandler {
	h.observations = observations
	return h
}

// WithGeoIndex attaches the Redis geo-index that location pings keep
// current. Optional.
func (h *DriverHandler) WithGeoIndex(geo geoIndex) *DriverHandler {
	h.geo = geo
	return h
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	VehicleType       string `json:"vehicle_type"`
	MaxConcurrentLoad int    `json:"max_concurrent_load"`
}

// DriverResponse is the HTTP response shape for a driver.
type DriverResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	VehicleType       string `json:"vehicle_type"`
	MaxConcurrentLoad int    `json:"max_concurrent_load"`
	Status            string `json:"status"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:                d.ID,
		Name:              d.Name,
		Phone:             d.Phone,
		VehicleType:       d.VehicleType,
		MaxConcurrentLoad: d.MaxConcurrentLoad,
		Status:            string(d.Status),
	}
}

// Register handles POST /drivers/register.
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Message: "invalid request body"})
		return
	}
	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Message: "name and phone are required"})
		return
	}

	existing, err := h.drivers.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}
	if existing != nil {
		respondJSON(c, http.StatusConflict, toDriverResponse(existing))
		return
	}

	maxLoad := req.MaxConcurrentLoad
	if maxLoad <= 0 {
		maxLoad = domain.DefaultMaxConcurrentLoad
	}

	driver := &domain.Driver{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Phone:             req.Phone,
		VehicleType:       req.VehicleType,
		MaxConcurrentLoad: maxLoad,
		Status:            domain.DriverStatusOffline,
	}

	if err := h.drivers.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// UpdateLocationRequest is the HTTP request body for a location ping.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation handles POST /drivers/:id/location.
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ErrInvalidCoordinates)
		return
	}
	point := domain.Point{Lat: req.Lat, Lng: req.Lng}
	if !point.Valid() {
		respondError(c, ErrInvalidCoordinates)
		return
	}

	driverID := c.Param("id")
	prev, err := h.drivers.GetByID(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	loc := domain.DriverLocation{Point: point, Timestamp: time.Now()}
	if err := h.drivers.UpdateLocation(c.Request.Context(), driverID, loc); err != nil {
		respondError(c, err)
		return
	}

	if h.geo != nil {
		if err := h.geo.UpdateLocation(c.Request.Context(), driverID, point.Lat, point.Lng); err != nil {
			log.Printf("handler: update geo-index for driver %s: %v", driverID, err)
		}
	}

	h.recordSegmentObservation(c.Request.Context(), prev, loc)
	c.Status(http.StatusNoContent)
}

// recordSegmentObservation appends the travelled leg between a driver's
// previous ping and this one as a route_segment_observations row, so the
// time-window oracle can later sample actual traversal times for this
// (from-cell, to-cell) bucket. Best-effort: never fails the location
// update it's attached to.
func (h *DriverHandler) recordSegmentObservation(ctx context.Context, prev *domain.Driver, next domain.DriverLocation) {
	if h.observations == nil || !prev.IsEnRoute() {
		return
	}
	if prev.Location.Timestamp.IsZero() || prev.Location.Point == next.Point {
		return
	}
	elapsed := next.Timestamp.Sub(prev.Location.Timestamp).Seconds()
	if elapsed <= 0 {
		return
	}

	orderID := ""
	route, err := h.assignments.GetAcceptedRouteByDriverID(ctx, prev.ID)
	if err == nil && len(route) > 0 {
		orderID = route[0].OrderID
	}

	obs := repository.RouteSegmentObservation{
		DriverID:      prev.ID,
		OrderID:       orderID,
		From:          prev.Location.Point,
		To:            next.Point,
		Profile:       domain.ProfileDriving,
		ActualSeconds: elapsed,
		ObservedAt:    next.Timestamp,
	}
	if err := h.observations.AppendBatch(ctx, []repository.RouteSegmentObservation{obs}); err != nil {
		log.Printf("handler: append route segment observation for driver %s: %v", prev.ID, err)
	}
}

// UpdateStatusRequest is the HTTP request body for a driver status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /drivers/:id/status, validating the
// transition graph (spec 4.7).
func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	driverID := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Message: "invalid request body"})
		return
	}

	driver, err := h.drivers.GetByID(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	next := domain.DriverStatus(req.Status)
	if !domain.CanTransition(driver.Status, next) {
		c.JSON(http.StatusConflict, ErrorResponse{Status: "error", Message: "invalid driver status transition"})
		return
	}

	if err := h.drivers.UpdateStatus(c.Request.Context(), driverID, next); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignmentResponse is the HTTP response shape for an assignment.
type AssignmentResponse struct {
	ID                string `json:"id"`
	OrderID           string `json:"order_id"`
	DriverID          string `json:"driver_id"`
	Sequence          int    `json:"sequence"`
	Status            string `json:"status"`
	EstimatedPickup   string `json:"estimated_pickup"`
	EstimatedDelivery string `json:"estimated_delivery"`
	OfferExpiry       string `json:"offer_expiry"`
	OfferRound        int    `json:"offer_round"`
}

func toAssignmentResponse(a *domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                a.ID,
		OrderID:           a.OrderID,
		DriverID:          a.DriverID,
		Sequence:          a.Sequence,
		Status:            string(a.Status),
		EstimatedPickup:   a.EstimatedPickup.Format(time.RFC3339),
		EstimatedDelivery: a.EstimatedDelivery.Format(time.RFC3339),
		OfferExpiry:       a.OfferExpiry.Format(time.RFC3339),
		OfferRound:        a.OfferRound,
	}
}

// OfferedAssignments handles GET /drivers/:id/assignments/offered.
func (h *DriverHandler) OfferedAssignments(c *gin.Context) {
	assignments, err := h.assignments.GetOfferedByDriverID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		response = append(response, toAssignmentResponse(a))
	}
	respondJSON(c, http.StatusOK, response)
}

// RouteStop is one stop in a driver's accepted route response.
type RouteStop struct {
	OrderID             string  `json:"order_id"`
	Sequence            int     `json:"sequence"`
	ETA                 string  `json:"eta"`
	CumulativeDistanceM float64 `json:"cumulative_distance_m"`
}

// Route handles GET /drivers/:id/route: the driver's accepted,
// non-terminal assignments ordered by sequence, with cumulative
// straight-line distance as a fast approximation of the travelled path
// (the Distance Oracle is not consulted on this read path).
func (h *DriverHandler) Route(c *gin.Context) {
	driver, err := h.drivers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	assignments, err := h.assignments.GetAcceptedRouteByDriverID(c.Request.Context(), driver.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	stops := make([]RouteStop, 0, len(assignments))
	cumulative := 0.0
	cur := driver.Location.Point
	for _, a := range assignments {
		order, err := h.orders.GetByID(c.Request.Context(), a.OrderID)
		if err != nil {
			continue
		}
		cumulative += geo.HaversineMeters(cur, order.Pickup)
		cumulative += geo.HaversineMeters(order.Pickup, order.Dropoff)
		cur = order.Dropoff

		stops = append(stops, RouteStop{
			OrderID:             a.OrderID,
			Sequence:            a.Sequence,
			ETA:                 a.EstimatedPickup.Format(time.RFC3339),
			CumulativeDistanceM: cumulative,
		})
	}
	respondJSON(c, http.StatusOK, stops)
}
