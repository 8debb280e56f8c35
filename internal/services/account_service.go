package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines the credential store operations the services need.
// Reads return (nil, nil) when nothing matches.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error)
	RecordLoginSuccess(ctx context.Context, tx pgx.Tx, account *models.Account) error
	RecordLoginFailure(ctx context.Context, tx pgx.Tx, account *models.Account) (bool, error)
}

// AccountService serves read-only account views
type AccountService struct {
	repo   AccountRepository
	logger *slog.Logger
}

func NewAccountService(repo AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		logger: logger,
	}
}

// GetProfile returns the account with the given ID
func (s *AccountService) GetProfile(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}
	if account == nil {
		s.logger.Info("account not found", slog.String("account_id", id))
		return nil, models.ErrNotFound
	}

	return account, nil
}
