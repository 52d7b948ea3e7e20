package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch/internal/matching"
	"dispatch/internal/offer"
	"dispatch/internal/repository"
	"dispatch/internal/workqueue"
)

// MatchingHandler handles HTTP requests for the matching engine.
type MatchingHandler struct {
	loop        *matching.Loop
	offers      *offer.Service
	assignments repository.AssignmentRepository
	queue       jobQueue
}

// NewMatchingHandler creates a new MatchingHandler.
func NewMatchingHandler(loop *matching.Loop, offers *offer.Service, assignments repository.AssignmentRepository) *MatchingHandler {
	return &MatchingHandler{loop: loop, offers: offers, assignments: assignments}
}

// WithQueue attaches the bounded matching queue that a rejected assignment
// synchronously enqueues a re-match cycle on (spec 4.7). Optional.
func (h *MatchingHandler) WithQueue(queue jobQueue) *MatchingHandler {
	h.queue = queue
	return h
}

// CycleResponse is the HTTP response for a completed matching cycle
// (spec 6: POST /matching/optimize).
type CycleResponse struct {
	Rounds              []matching.RoundSummary `json:"rounds,omitempty"`
	TotalDistanceMeters float64                 `json:"total_distance_meters"`
	RemainingPending    int                     `json:"remaining_pending"`
	ElapsedMs           int64                   `json:"elapsed_ms"`
	Timestamp           string                  `json:"timestamp"`
}

// Optimize handles POST /matching/optimize?verbose=bool. Always returns
// 200, even with zero assignments made — that is a valid outcome, not an
// error (spec 7).
func (h *MatchingHandler) Optimize(c *gin.Context) {
	sessionID := uuid.New().String()
	result, err := h.loop.RunCycle(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := CycleResponse{
		TotalDistanceMeters: result.TotalDistanceMeters,
		RemainingPending:    result.RemainingPending,
		ElapsedMs:           result.ElapsedMs,
		Timestamp:           result.Timestamp.Format(time.RFC3339),
	}
	if c.Query("verbose") == "true" {
		response.Rounds = result.Rounds
	}
	respondJSON(c, http.StatusOK, response)
}

// AcceptAll handles POST /matching/accept-all: a load-testing utility
// that accepts every currently Offered assignment.
func (h *MatchingHandler) AcceptAll(c *gin.Context) {
	offered, err := h.assignments.GetAllOffered(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	accepted := 0
	for _, a := range offered {
		if _, err := h.offers.Accept(c.Request.Context(), a.ID); err == nil {
			accepted++
		}
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok", "accepted": accepted})
}

// RejectAllRequest is the optional body for POST /matching/reject-all.
type RejectAllRequest struct {
	Reason string `json:"reason"`
}

// RejectAll handles POST /matching/reject-all: a load-testing utility
// that rejects every currently Offered assignment with the given reason.
func (h *MatchingHandler) RejectAll(c *gin.Context) {
	var req RejectAllRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual_reject_all"
	}

	offered, err := h.assignments.GetAllOffered(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	rejected := 0
	for _, a := range offered {
		if _, err := h.offers.Reject(c.Request.Context(), a.ID, req.Reason); err == nil {
			rejected++
		}
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok", "rejected": rejected})
}

// RejectRequest is the optional body for POST /drivers/assignments/:id/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AcceptAssignment handles POST /drivers/assignments/:id/accept.
func (h *MatchingHandler) AcceptAssignment(c *gin.Context) {
	a, err := h.offers.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toAssignmentResponse(a))
}

// RejectAssignment handles POST /drivers/assignments/:id/reject.
func (h *MatchingHandler) RejectAssignment(c *gin.Context) {
	var req RejectRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "declined"
	}

	a, err := h.offers.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	h.enqueueRematchCycle(c.Request.Context(), a.ID)

	respondJSON(c, http.StatusOK, toAssignmentResponse(a))
}

// enqueueRematchCycle synchronously enqueues a matching cycle for the
// order freed up by a rejected assignment (spec 4.7). A full queue falls
// back to the overflow publisher or is dropped; a dropped job leaves the
// order Pending until a later queued job or POST /matching/optimize runs a
// cycle.
func (h *MatchingHandler) enqueueRematchCycle(ctx context.Context, assignmentID string) {
	if h.queue == nil {
		return
	}
	job := workqueue.Job{SessionID: uuid.New().String(), Reason: "assignment_rejected", EnqueuedAt: time.Now()}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		log.Printf("handler: enqueue rematch cycle after rejecting assignment %s: %v", assignmentID, err)
	}
}
