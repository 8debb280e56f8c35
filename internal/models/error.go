package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountLocked = errors.New("account is locked")

	// Infrastructure errors
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrStorage               = errors.New("storage failure")
	ErrRevocationUnavailable = errors.New("revocation index unavailable")
	ErrIdentityUnavailable   = errors.New("identity provider unavailable")
)

// ValidationError reports malformed input the caller can correct
type ValidationError struct {
	Field      string
	Violations []string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + strings.Join(e.Violations, "; ")
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// ConflictError reports a uniqueness violation on a specific field
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return e.Field + " already exists"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// RateLimitError reports an exhausted quota along with retry guidance
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// StorageError is returned once a unit of work has exhausted its retries
// or hit a failure that cannot be retried.
type StorageError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

// Unwrap exposes both the ErrStorage classification and the driver error.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
