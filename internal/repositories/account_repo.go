package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/kickvault/internal/database"
	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockoutThreshold is the number of consecutive failed logins that deactivates an account
const DefaultLockoutThreshold = 5

const accountColumns = `id, username, email, password_digest, is_active, failed_login_attempts, created_at, last_login_at`

// AccountRepository is the credential store. Reads go straight to the pool;
// every mutation runs on a transaction owned by the caller.
type AccountRepository struct {
	pool             *pgxpool.Pool
	lockoutThreshold int
}

func NewAccountRepository(db *database.DB, lockoutThreshold int) *AccountRepository {
	if lockoutThreshold <= 0 {
		lockoutThreshold = DefaultLockoutThreshold
	}
	return &AccountRepository{pool: db.Pool, lockoutThreshold: lockoutThreshold}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordDigest,
		&account.IsActive, &account.FailedLoginAttempts,
		&account.CreatedAt, &lastLoginAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LastLoginAt = lastLoginAt
	return &account, nil
}

// getOne returns (nil, nil) when no row matches
func (r *AccountRepository) getOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	account, err := scanAccountRow(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// GetByUsername looks up an account by exact, case-sensitive username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

// Create inserts a new account inside tx. A duplicate username or email
// surfaces as *models.ConflictError naming the field.
func (r *AccountRepository) Create(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, username, email, password_digest, is_active, failed_login_attempts, created_at)
		VALUES ($1, $2, $3, $4, TRUE, 0, $5)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(tx.QueryRow(ctx, query,
		uuid.New().String(), account.Username, account.Email, account.PasswordDigest, time.Now().UTC(),
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// RecordLoginSuccess clears the failure counter and stamps the login time.
// An account locked after it was read is left untouched and reported as
// models.ErrAccountLocked.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, tx pgx.Tx, account *models.Account) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, last_login_at = $2
		WHERE id = $1 AND is_active
		RETURNING ` + accountColumns

	updated, err := scanAccountRow(tx.QueryRow(ctx, query, account.ID, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrAccountLocked
		}
		return err
	}

	*account = *updated
	return nil
}

// RecordLoginFailure increments the failure counter and deactivates the
// account when it reaches the lockout threshold. The row lock taken by the
// UPDATE serializes concurrent failures, so lockedOut is true only for the
// one call that performed the transition. Once at the threshold the counter
// no longer moves.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, tx pgx.Tx, account *models.Account) (lockedOut bool, err error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
			is_active = CASE WHEN failed_login_attempts + 1 >= $2 THEN FALSE ELSE is_active END
		WHERE id = $1 AND failed_login_attempts < $2
		RETURNING ` + accountColumns

	updated, err := scanAccountRow(tx.QueryRow(ctx, query, account.ID, r.lockoutThreshold))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Already at the threshold
			return false, nil
		}
		return false, err
	}

	*account = *updated
	return updated.FailedLoginAttempts >= r.lockoutThreshold, nil
}
