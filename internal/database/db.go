package database

import (
	"errors"
	"strings"

	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// constraintFields maps unique constraint names to the field reported in a ConflictError
var constraintFields = map[string]string{
	"accounts_username_key": "username",
	"accounts_email_key":    "email",
}

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &models.ConflictError{Field: conflictField(pgErr)}
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		case "23514": // check_violation
			return models.ErrBadRequest
		}
	}

	return err
}

func conflictField(pgErr *pgconn.PgError) string {
	if field, ok := constraintFields[pgErr.ConstraintName]; ok {
		return field
	}
	for name, field := range constraintFields {
		if strings.Contains(pgErr.Message, name) {
			return field
		}
	}
	return ""
}

// IsTransient reports whether err is a failure that may succeed if the whole
// transaction is attempted again: serialization conflicts, deadlocks, lost
// connections and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001": // serialization_failure
			return true
		case pgErr.Code == "40P01": // deadlock_detected
			return true
		case pgErr.Code == "57P01": // admin_shutdown
			return true
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception
			return true
		}
		return false
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
