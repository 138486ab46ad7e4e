package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kubilitics/kubilitics-topology/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-topology/internal/service"
	"github.com/kubilitics/kubilitics-topology/internal/source"
	"github.com/kubilitics/kubilitics-topology/internal/topology"
)

// APIError represents a structured API error response
type APIError struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Error codes for common scenarios
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeUpstream          = "LAYOUT_UNAVAILABLE"
)

// respondStructuredError sends a structured error response with error code and details
func respondStructuredError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: logger.FromContext(r.Context()),
		Details:   details,
	})
}

// respondServiceError maps service and domain errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrViewNotFound):
		respondStructuredError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, source.ErrUnknownLayout):
		respondStructuredError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidScope):
		respondStructuredError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, topology.ErrDuplicateNodeID):
		respondStructuredError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error(), nil)
	case errors.Is(err, service.ErrTooManyViews):
		respondStructuredError(w, r, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, err.Error(), nil)
	case errors.Is(err, service.ErrLayoutFailure):
		respondStructuredError(w, r, http.StatusBadGateway, ErrCodeUpstream, err.Error(), nil)
	default:
		respondStructuredError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error", nil)
	}
}
