package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// TxBeginner starts transactions. *DB and *pgxpool.Pool satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFunc is the body of a unit of work. It must not commit or roll back tx.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

type UnitOfWorkConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

func DefaultUnitOfWorkConfig() UnitOfWorkConfig {
	return UnitOfWorkConfig{
		MaxAttempts: 3,
		BaseBackoff: 50 * time.Millisecond,
	}
}

// UnitOfWork runs a function inside a transaction, committing on success and
// rolling back on every other exit. Transient failures re-run the whole
// function in a fresh transaction.
type UnitOfWork struct {
	db     TxBeginner
	config UnitOfWorkConfig
	logger *slog.Logger
}

func NewUnitOfWork(db TxBeginner, config UnitOfWorkConfig, logger *slog.Logger) *UnitOfWork {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultUnitOfWorkConfig().BaseBackoff
	}
	return &UnitOfWork{db: db, config: config, logger: logger}
}

// Do executes fn as one atomic unit named op.
// The caller's cancellation is not propagated: once started, the unit always
// reaches commit or rollback.
func (u *UnitOfWork) Do(ctx context.Context, op string, fn TxFunc) error {
	ctx = context.WithoutCancel(ctx)

	backoff := retry.WithMaxRetries(
		uint64(u.config.MaxAttempts-1),
		retry.NewExponential(u.config.BaseBackoff),
	)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if retryable(err) {
			u.logger.Warn("transient storage failure",
				slog.String("op", op),
				slog.Int("attempt", attempts),
				slog.Int("max_attempts", u.config.MaxAttempts),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}

		return err
	})
	if err == nil {
		return nil
	}

	if IsTransient(err) {
		storageErr := &models.StorageError{Op: op, Attempts: attempts, Err: err}
		u.logger.Error("unit of work failed",
			slog.String("op", op),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("op", op)
			scope.SetExtra("attempts", attempts)
			sentry.CaptureException(storageErr)
		})
		return storageErr
	}

	return MapPostgresError(err)
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				u.logger.Warn("transaction rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return &commitError{err: err}
	}
	return nil
}

// commitError marks a failure returned by COMMIT. Unless the server reported
// the rollback itself, the transaction may already be durable.
type commitError struct {
	err error
}

func (e *commitError) Error() string { return "commit: " + e.err.Error() }

func (e *commitError) Unwrap() error { return e.err }

// retryable reports whether the whole unit may run again after err. A commit
// is re-run only when it provably did not apply.
func retryable(err error) bool {
	var commitErr *commitError
	if !errors.As(err, &commitErr) {
		return IsTransient(err)
	}

	if pgconn.SafeToRetry(commitErr.err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(commitErr.err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
