package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// External error codes carried in the response envelope.
const (
	CodeAuthFailed            = "AUTH_FAILED"
	CodeRateLimited           = "RATE_LIMITED"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeDependencyError       = "DEPENDENCY_ERROR"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrorBody is the error payload of the response envelope.
type ErrorBody struct {
	Code          string            `json:"code"`
	Message       string            `json:"message"`
	Service       string            `json:"service,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// SuccessResponse is the envelope for successful requests.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, SuccessResponse{Success: true, Data: data})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, body ErrorBody) {
	if body.Timestamp.IsZero() {
		body.Timestamp = time.Now().UTC()
	}
	WriteJSON(w, status, ErrorResponse{Success: false, Error: body})
}

// StatusForError maps an internal error to an HTTP status and external
// error code. Store unavailability is never leaked directly; callers
// apply their fallback policy before reaching this mapping.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAuthFailed):
		return http.StatusUnauthorized, CodeAuthFailed
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, ErrDependencyDown):
		return http.StatusServiceUnavailable, CodeDependencyUnavailable
	case errors.Is(err, ErrDependencyFailed):
		return http.StatusBadGateway, CodeDependencyError
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
