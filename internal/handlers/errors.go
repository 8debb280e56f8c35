package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/kickvault/internal/models"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
)

// writeServiceError maps a service error onto its HTTP response. Anything
// unrecognised, including exhausted storage retries, is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		conflictErr   *models.ConflictError
		rateLimitErr  *models.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		pkghttp.WriteValidationFailed(w, validationErr.Field, validationErr.Violations)
	case errors.Is(err, models.ErrUnauthorized):
		// Never say why
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	case errors.As(err, &conflictErr):
		pkghttp.WriteConflict(w, conflictErr.Field, conflictErr.Error())
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "Account is locked")
	case errors.As(err, &rateLimitErr):
		pkghttp.WriteTooManyRequests(w, rateLimitErr.RetryAfter, "Too many requests. Please try again later.")
	case errors.Is(err, models.ErrRevocationUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	case errors.Is(err, models.ErrIdentityUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Identity provider unavailable")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
