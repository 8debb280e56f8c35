package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BradenHooton/kickvault/internal/auth"
	"github.com/BradenHooton/kickvault/internal/database"
	"github.com/BradenHooton/kickvault/internal/models"
	pkgauth "github.com/BradenHooton/kickvault/pkg/auth"
	pkglogger "github.com/BradenHooton/kickvault/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork runs fn atomically, retrying transient storage failures
type UnitOfWork interface {
	Do(ctx context.Context, op string, fn database.TxFunc) error
}

// IdentityVerifier validates an assertion issued by an external identity provider
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*models.FederatedIdentity, error)
}

// LockoutNotifier tells an account owner their account was deactivated
type LockoutNotifier interface {
	SendLockoutNotice(ctx context.Context, email, username string) error
}

// AuthResult is what a successful registration or login hands back
type AuthResult struct {
	Tokens  *models.TokenPair
	Account *models.Account
}

// AuthService orchestrates credential checks, lockout bookkeeping and token issuance
type AuthService struct {
	repo        AccountRepository
	uow         UnitOfWork
	tm          *auth.TokenManager
	hasher      *pkgauth.PasswordHasher
	timing      *auth.TimingDelay
	identity    IdentityVerifier
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// AuthServiceDeps groups the collaborators of AuthService. Identity and
// Notifier are optional.
type AuthServiceDeps struct {
	Repo        AccountRepository
	UnitOfWork  UnitOfWork
	Tokens      *auth.TokenManager
	Hasher      *pkgauth.PasswordHasher
	Timing      *auth.TimingDelay
	Identity    IdentityVerifier
	Notifier    LockoutNotifier
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		repo:        deps.Repo,
		uow:         deps.UnitOfWork,
		tm:          deps.Tokens,
		hasher:      deps.Hasher,
		timing:      deps.Timing,
		identity:    deps.Identity,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
	}
}

// RegisterInput carries a registration request
type RegisterInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// Register creates an account and returns a fresh token pair
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		var pve *pkgauth.PasswordValidationError
		if errors.As(err, &pve) {
			return nil, &models.ValidationError{Field: "password", Violations: pve.Violations}
		}
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	var created *models.Account
	err = s.uow.Do(ctx, "register", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		created, err = s.repo.Create(ctx, tx, &models.Account{
			Username:       in.Username,
			Email:          strings.ToLower(strings.TrimSpace(in.Email)),
			PasswordDigest: digest,
		})
		return err
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("registration conflict", slog.String("field", conflict.Field))
			return nil, err
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, err
	}

	tokens, err := s.tm.IssuePair(created.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("account_id", created.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account registered", slog.String("account_id", created.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegistered,
		AccountID: created.ID,
		Username:  created.Username,
		ClientIP:  in.ClientIP,
		Success:   true,
	})

	return &AuthResult{Tokens: tokens, Account: created}, nil
}

// Login verifies username and password. Every failure that is not a lockout
// is reported as models.ErrUnauthorized regardless of cause.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*AuthResult, error) {
	start := time.Now()

	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	if account == nil {
		s.hasher.CompareDummy(password)
		s.loginFailed(ctx, start, "", username, clientIP, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	compareErr := s.hasher.Compare(account.PasswordDigest, password)
	if compareErr != nil && !errors.Is(compareErr, pkgauth.ErrPasswordMismatch) {
		s.logger.Error("stored password digest is unreadable",
			slog.String("account_id", account.ID),
			slog.Any("error", compareErr))
	}

	if !account.IsActive {
		if compareErr == nil {
			s.loginFailed(ctx, start, account.ID, username, clientIP, "account_locked")
			return nil, models.ErrAccountLocked
		}
		s.loginFailed(ctx, start, account.ID, username, clientIP, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	if compareErr != nil {
		var lockedOut bool
		err := s.uow.Do(ctx, "login_failure", func(ctx context.Context, tx pgx.Tx) error {
			var err error
			lockedOut, err = s.repo.RecordLoginFailure(ctx, tx, account)
			return err
		})
		if err != nil {
			s.logger.Error("failed to record login failure", slog.String("account_id", account.ID), slog.Any("error", err))
			return nil, err
		}

		if lockedOut {
			s.onLockout(ctx, account, clientIP)
		}
		s.loginFailed(ctx, start, account.ID, username, clientIP, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	err = s.uow.Do(ctx, "login_success", func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.RecordLoginSuccess(ctx, tx, account)
	})
	if errors.Is(err, models.ErrAccountLocked) {
		// Locked by a concurrent failure after the lookup
		s.loginFailed(ctx, start, account.ID, username, clientIP, "account_locked")
		return nil, models.ErrAccountLocked
	}
	if err != nil {
		s.logger.Error("failed to record login success", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, err
	}

	tokens, err := s.tm.IssuePair(account.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.timing.WaitFrom(ctx, start, true)
	s.logger.Info("account logged in", slog.String("account_id", account.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		AccountID: account.ID,
		Username:  account.Username,
		ClientIP:  clientIP,
		Success:   true,
	})

	return &AuthResult{Tokens: tokens, Account: account}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, start time.Time, accountID, username, clientIP, reason string) {
	s.logger.Info("login failed", slog.String("reason", reason))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		AccountID:     accountID,
		Username:      username,
		ClientIP:      clientIP,
		FailureReason: reason,
	})
	s.timing.WaitFrom(ctx, start, false)
}

func (s *AuthService) onLockout(ctx context.Context, account *models.Account, clientIP string) {
	s.logger.Warn("account locked after repeated failed logins",
		slog.String("account_id", account.ID),
		slog.Int("failed_login_attempts", account.FailedLoginAttempts))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventAccountLocked,
		AccountID:     account.ID,
		Username:      account.Username,
		ClientIP:      clientIP,
		FailureReason: "too_many_failed_attempts",
	})

	if s.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.notifier.SendLockoutNotice(notifyCtx, account.Email, account.Username); err != nil {
		s.logger.Error("failed to send lockout notice",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}
}

// Refresh exchanges a refresh token for a new access token. The account must
// still exist and be active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tm.Verify(ctx, strings.TrimSpace(refreshToken), models.TokenClassRefresh)
	if err != nil {
		if errors.Is(err, models.ErrRevocationUnavailable) {
			s.logger.Error("revocation check failed during refresh", slog.Any("error", err))
			return "", err
		}
		s.logger.Info("refresh token rejected", slog.Any("error", err))
		return "", models.ErrUnauthorized
	}

	account, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("failed to look up account for refresh", slog.String("account_id", claims.Subject), slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}
	if account == nil || !account.IsActive {
		s.logger.Info("refresh blocked by account state", slog.String("account_id", claims.Subject))
		return "", models.ErrUnauthorized
	}

	access, err := s.tm.IssueAccessToken(account.ID)
	if err != nil {
		s.logger.Error("failed to issue access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventTokenRefreshed,
		AccountID: account.ID,
		Success:   true,
	})

	return access, nil
}

// Logout revokes the presented access token and, when supplied, the refresh
// token issued alongside it.
func (s *AuthService) Logout(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error {
	if err := s.tm.Revoke(ctx, accessToken); err != nil {
		s.logger.Error("failed to revoke access token", slog.String("account_id", accountID), slog.Any("error", err))
		return err
	}

	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := s.tm.Revoke(ctx, refreshToken); err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				s.logger.Info("ignoring unverifiable refresh token on logout", slog.String("account_id", accountID))
			} else {
				s.logger.Error("failed to revoke refresh token", slog.String("account_id", accountID), slog.Any("error", err))
				return err
			}
		}
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		AccountID: accountID,
		ClientIP:  clientIP,
		Success:   true,
	})

	return nil
}

var usernameUnsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// federatedUsername derives "<first name>_<first 6 of external id>"
func federatedUsername(displayName, externalID string, idChars int) string {
	first := ""
	if fields := strings.Fields(displayName); len(fields) > 0 {
		first = usernameUnsafeChars.ReplaceAllString(fields[0], "")
	}
	if first == "" {
		first = "user"
	}
	if len(first) > 30 {
		first = first[:30]
	}

	suffix := usernameUnsafeChars.ReplaceAllString(externalID, "")
	if len(suffix) > idChars {
		suffix = suffix[:idChars]
	}

	return first + "_" + suffix
}

// FederatedLogin signs in with an external identity assertion, provisioning
// an account on first use. Provisioned accounts get an unusable random
// password.
func (s *AuthService) FederatedLogin(ctx context.Context, assertion, clientIP string) (*AuthResult, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("%w: identity federation is not configured", models.ErrBadRequest)
	}

	identity, err := s.identity.Verify(ctx, assertion)
	if errors.Is(err, ErrInvalidAssertion) {
		s.logger.Info("federated assertion rejected", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		s.logger.Error("identity provider unreachable", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to look up account by email", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	if account == nil {
		account, err = s.provisionFederated(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	}

	if !account.IsActive {
		s.loginFailed(ctx, time.Now(), account.ID, account.Username, clientIP, "account_locked")
		return nil, models.ErrAccountLocked
	}

	err = s.uow.Do(ctx, "federated_login", func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.RecordLoginSuccess(ctx, tx, account)
	})
	if errors.Is(err, models.ErrAccountLocked) {
		s.loginFailed(ctx, time.Now(), account.ID, account.Username, clientIP, "account_locked")
		return nil, models.ErrAccountLocked
	}
	if err != nil {
		s.logger.Error("failed to record federated login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, err
	}

	tokens, err := s.tm.IssuePair(account.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventFederatedLogin,
		AccountID: account.ID,
		Username:  account.Username,
		ClientIP:  clientIP,
		Success:   true,
	})

	return &AuthResult{Tokens: tokens, Account: account}, nil
}

func (s *AuthService) provisionFederated(ctx context.Context, identity *models.FederatedIdentity, email string) (*models.Account, error) {
	secret, err := pkgauth.GenerateRandomSecret(32)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	digest, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	var created *models.Account
	create := func(username string) error {
		return s.uow.Do(ctx, "federated_provision", func(ctx context.Context, tx pgx.Tx) error {
			var err error
			created, err = s.repo.Create(ctx, tx, &models.Account{
				Username:       username,
				Email:          email,
				PasswordDigest: digest,
			})
			return err
		})
	}

	err = create(federatedUsername(identity.DisplayName, identity.ExternalID, 6))

	// A short id prefix can collide; fall back to the full external id
	var conflict *models.ConflictError
	if errors.As(err, &conflict) && conflict.Field == "username" {
		err = create(federatedUsername(identity.DisplayName, identity.ExternalID, 19))
	}
	// Lost a race with a concurrent first login for the same email
	if errors.As(err, &conflict) && conflict.Field == "email" {
		existing, lookupErr := s.repo.GetByEmail(ctx, email)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		s.logger.Error("failed to provision federated account", slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("federated account provisioned", slog.String("account_id", created.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegistered,
		AccountID: created.ID,
		Username:  created.Username,
		Success:   true,
		Metadata:  map[string]string{"provider": "google"},
	})

	return created, nil
}
