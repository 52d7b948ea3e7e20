package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/distance"
	"dispatch/internal/draft"
	"dispatch/internal/offer"
	"dispatch/internal/repository"
	"dispatch/internal/route"
	"dispatch/internal/savings"
)

// ErrInvalidCoordinates is the input-validation error for a malformed
// {lat,lng} payload (spec 7: input errors).
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Status: "error", Message: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps domain/repository errors to HTTP status codes
// per the error taxonomy (spec 7): input and state-violation errors
// surface as 4xx, unrecoverable internal defects as 500.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, savings.ErrNoOrders),
		errors.Is(err, savings.ErrNoDrivers),
		errors.Is(err, distance.ErrInvalidInput):
		return http.StatusBadRequest

	case errors.Is(err, offer.ErrExpired),
		errors.Is(err, offer.ErrInvalidState),
		errors.Is(err, offer.ErrAlreadyAssigned),
		errors.Is(err, offer.ErrInvalidStatusTransition):
		return http.StatusConflict

	case errors.Is(err, draft.ErrNoFeasibleDraft),
		errors.Is(err, route.ErrInfeasible):
		return http.StatusUnprocessableEntity

	case errors.Is(err, distance.ErrProvider):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
