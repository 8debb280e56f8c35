package http

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error      string   `json:"error"`                 // Machine-readable error code
	Message    string   `json:"message"`               // Human-readable message
	Field      string   `json:"field,omitempty"`       // Offending input field, if any
	Violations []string `json:"violations,omitempty"`  // Every rule the input broke
	RetryAfter int      `json:"retry_after,omitempty"` // Seconds until the client may retry
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

// WriteValidationFailed reports every violated rule for field
func WriteValidationFailed(w http.ResponseWriter, field string, violations []string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:      "validation_failed",
		Message:    "request validation failed",
		Field:      field,
		Violations: violations,
	})
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

// WriteConflict reports a uniqueness violation, naming the field when known
func WriteConflict(w http.ResponseWriter, field, message string) {
	WriteJSON(w, http.StatusConflict, ErrorResponse{Error: "conflict", Message: message, Field: field})
}

// WriteLocked reports an account deactivated by the lockout policy
func WriteLocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusLocked, "account_locked", message)
}

// WriteTooManyRequests sets Retry-After (whole seconds, rounded up) and writes a 429
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration, message string) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		RetryAfter: seconds,
	})
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, "service_unavailable", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
