package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/workqueue"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orders repository.OrderRepository
	queue  jobQueue
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders repository.OrderRepository) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// WithQueue attaches the bounded matching queue that order creation
// triggers a cycle on. Optional: a handler with none just skips the
// trigger; the order stays Pending until some later matching cycle runs.
func (h *OrderHandler) WithQueue(queue jobQueue) *OrderHandler {
	h.queue = queue
	return h
}

// LatLng is the wire shape for a coordinate (spec 6: geometry format).
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) toPoint() domain.Point {
	return domain.Point{Lat: l.Lat, Lng: l.Lng}
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	Pickup       LatLng  `json:"pickup"`
	Dropoff      LatLng  `json:"dropoff"`
	RequestedFor *string `json:"requested_for,omitempty"`
	BasePriority int     `json:"base_priority"`
}

// OrderResponse is the HTTP response shape for an order.
type OrderResponse struct {
	ID           string  `json:"id"`
	Pickup       LatLng  `json:"pickup"`
	Dropoff      LatLng  `json:"dropoff"`
	Status       string  `json:"status"`
	BasePriority int     `json:"base_priority"`
	Multiplier   float64 `json:"multiplier"`
	CreatedAt    string  `json:"created_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		Pickup:       LatLng{Lat: o.Pickup.Lat, Lng: o.Pickup.Lng},
		Dropoff:      LatLng{Lat: o.Dropoff.Lat, Lng: o.Dropoff.Lng},
		Status:       string(o.Status),
		BasePriority: o.BasePriority,
		Multiplier:   o.Multiplier,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ErrInvalidCoordinates)
		return
	}

	pickup, dropoff := req.Pickup.toPoint(), req.Dropoff.toPoint()
	if !pickup.Valid() || !dropoff.Valid() {
		respondError(c, ErrInvalidCoordinates)
		return
	}

	basePriority := req.BasePriority
	if basePriority <= 0 {
		basePriority = 5
	}

	requestedFor := time.Now()
	if req.RequestedFor != nil {
		if parsed, err := time.Parse(time.RFC3339, *req.RequestedFor); err == nil {
			requestedFor = parsed
		}
	}

	order := &domain.Order{
		ID:           uuid.New().String(),
		Pickup:       pickup,
		Dropoff:      dropoff,
		RequestedFor: requestedFor,
		BasePriority: basePriority,
		Multiplier:   1.0,
		Status:       domain.OrderStatusPending,
		CreatedAt:    time.Now(),
	}

	if err := h.orders.Create(c.Request.Context(), order); err != nil {
		respondError(c, err)
		return
	}

	h.enqueueMatchingTrigger(c.Request.Context(), order.ID)

	respondJSON(c, http.StatusCreated, toOrderResponse(order))
}

// enqueueMatchingTrigger pushes a bounded matching-cycle job for the new
// order (spec 9: order creation enqueues a matching trigger). Best-effort:
// a full queue with no overflow publisher just skips the trigger, and the
// order stays Pending until a later queued job or POST /matching/optimize
// runs a cycle.
func (h *OrderHandler) enqueueMatchingTrigger(ctx context.Context, orderID string) {
	if h.queue == nil {
		return
	}
	job := workqueue.Job{SessionID: uuid.New().String(), Reason: "order_created", EnqueuedAt: time.Now()}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		log.Printf("handler: enqueue matching trigger for order %s: %v", orderID, err)
	}
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}
