package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"swarm-backend/internal/models"
	"swarm-backend/internal/services"
)

// ErrorResponse represents an error response. Retryable marks failures caused
// by contention, where the same request may succeed later.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	writeError(w, ErrorResponse{Error: message}, statusCode)
}

func writeError(w http.ResponseWriter, body ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps a service error to its HTTP status and retryable flag.
// Unknown errors are internal.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrInvalidItem),
		errors.Is(err, services.ErrUnsupportedContentType),
		errors.Is(err, services.ErrInvalidEmblemKey):
		return http.StatusBadRequest, false
	case errors.Is(err, models.ErrNotFounder):
		return http.StatusForbidden, false
	case errors.Is(err, models.ErrAlreadyMember),
		errors.Is(err, models.ErrNotAMember):
		return http.StatusConflict, false
	case errors.Is(err, models.ErrGroupFull),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, services.ErrEmblemNotUploaded):
		return http.StatusConflict, true
	case errors.Is(err, models.ErrInvalidCode):
		return http.StatusNotFound, true
	case errors.Is(err, models.ErrSwarmNotFound),
		errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, models.ErrCodeExhausted):
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, false
	}
}

// respondServiceError sends the mapped status for err. Internal errors are
// reported with a generic message.
func respondServiceError(w http.ResponseWriter, err error) {
	status, retryable := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	writeError(w, ErrorResponse{Error: message, Retryable: retryable}, status)
}
