package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/kickvault/internal/database"
	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/jackc/pgx/v5"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByUsernameFunc      func(ctx context.Context, username string) (*models.Account, error)
	GetByIDFunc            func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc         func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc             func(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error)
	RecordLoginSuccessFunc func(ctx context.Context, tx pgx.Tx, account *models.Account) error
	RecordLoginFailureFunc func(ctx context.Context, tx pgx.Tx, account *models.Account) (bool, error)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordLoginSuccess(ctx context.Context, tx pgx.Tx, account *models.Account) error {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, tx, account)
	}
	return nil
}

func (m *MockAccountRepository) RecordLoginFailure(ctx context.Context, tx pgx.Tx, account *models.Account) (bool, error) {
	if m.RecordLoginFailureFunc != nil {
		return m.RecordLoginFailureFunc(ctx, tx, account)
	}
	return false, nil
}

// MockUnitOfWork runs fn once with a nil transaction
type MockUnitOfWork struct {
	DoFunc func(ctx context.Context, op string, fn database.TxFunc) error
	Ops    []string
	mu     sync.Mutex
}

func (m *MockUnitOfWork) Do(ctx context.Context, op string, fn database.TxFunc) error {
	m.mu.Lock()
	m.Ops = append(m.Ops, op)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(ctx, op, fn)
	}
	return fn(ctx, nil)
}

// MockIdentityVerifier implements IdentityVerifier for testing
type MockIdentityVerifier struct {
	VerifyFunc func(ctx context.Context, assertion string) (*models.FederatedIdentity, error)
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, assertion string) (*models.FederatedIdentity, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, assertion)
	}
	return nil, ErrInvalidAssertion
}

// MockLockoutNotifier records every lockout notice it is asked to send
type MockLockoutNotifier struct {
	SendFunc func(ctx context.Context, email, username string) error
	Sent     []string
	mu       sync.Mutex
}

func (m *MockLockoutNotifier) SendLockoutNotice(ctx context.Context, email, username string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, username)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, username)
	}
	return nil
}

func (m *MockLockoutNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockRevocationIndex is an in-memory revocation index
type MockRevocationIndex struct {
	Err     error
	revoked map[string]time.Duration
	mu      sync.Mutex
}

func NewMockRevocationIndex() *MockRevocationIndex {
	return &MockRevocationIndex{revoked: make(map[string]time.Duration)}
}

func (m *MockRevocationIndex) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = ttl
	return nil
}

func (m *MockRevocationIndex) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *MockRevocationIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.revoked)
}

// InMemoryAccountRepository is a concurrency-safe AccountRepository that
// mirrors the uniqueness and lockout rules of the PostgreSQL store
type InMemoryAccountRepository struct {
	threshold int
	accounts  map[string]*models.Account
	nextID    int
	mu        sync.Mutex
}

func NewInMemoryAccountRepository(threshold int) *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		threshold: threshold,
		accounts:  make(map[string]*models.Account),
	}
}

func (r *InMemoryAccountRepository) find(match func(*models.Account) bool) *models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if match(a) {
			copied := *a
			return &copied
		}
	}
	return nil
}

func (r *InMemoryAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Username == username }), nil
}

func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ID == id }), nil
}

func (r *InMemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email }), nil
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Username == account.Username {
			return nil, &models.ConflictError{Field: "username"}
		}
		if a.Email == account.Email {
			return nil, &models.ConflictError{Field: "email"}
		}
	}

	r.nextID++
	stored := *account
	stored.ID = fmt.Sprintf("acct-%d", r.nextID)
	stored.IsActive = true
	stored.FailedLoginAttempts = 0
	stored.CreatedAt = time.Now()
	r.accounts[stored.ID] = &stored

	created := stored
	return &created, nil
}

func (r *InMemoryAccountRepository) RecordLoginSuccess(ctx context.Context, tx pgx.Tx, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok || !stored.IsActive {
		return models.ErrAccountLocked
	}
	now := time.Now()
	stored.FailedLoginAttempts = 0
	stored.LastLoginAt = &now
	*account = *stored
	return nil
}

func (r *InMemoryAccountRepository) RecordLoginFailure(ctx context.Context, tx pgx.Tx, account *models.Account) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return false, models.ErrNotFound
	}
	if stored.FailedLoginAttempts >= r.threshold {
		return false, nil
	}

	stored.FailedLoginAttempts++
	lockedOut := stored.FailedLoginAttempts >= r.threshold
	if lockedOut {
		stored.IsActive = false
	}
	*account = *stored
	return lockedOut, nil
}

// Deactivate marks an account inactive, as an administrator would
func (r *InMemoryAccountRepository) Deactivate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.IsActive = false
	}
}
