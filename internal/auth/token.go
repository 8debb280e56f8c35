package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 30 * 24 * time.Hour
)

// RevocationIndex records and checks revoked token identifiers
type RevocationIndex interface {
	MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenConfig is everything the token manager needs to sign and verify tokens
type TokenConfig struct {
	Secret             string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// TokenManager handles JWT token generation, validation and revocation
type TokenManager struct {
	secret             []byte
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	revocations        RevocationIndex
	now                func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(cfg TokenConfig, revocations RevocationIndex) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if revocations == nil {
		return nil, fmt.Errorf("revocation index is required")
	}
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if cfg.RefreshTokenExpiry <= 0 {
		cfg.RefreshTokenExpiry = DefaultRefreshTokenExpiry
	}

	return &TokenManager{
		secret:             []byte(cfg.Secret),
		issuer:             cfg.Issuer,
		accessTokenExpiry:  cfg.AccessTokenExpiry,
		refreshTokenExpiry: cfg.RefreshTokenExpiry,
		revocations:        revocations,
		now:                time.Now,
	}, nil
}

// AccessTokenExpiry is the lifetime of newly issued access tokens
func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

// IssuePair mints a fresh access and refresh token for accountID
func (tm *TokenManager) IssuePair(accountID string) (*models.TokenPair, error) {
	access, err := tm.IssueAccessToken(accountID)
	if err != nil {
		return nil, err
	}

	refresh, err := tm.issue(accountID, models.TokenClassRefresh, tm.refreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tm.accessTokenExpiry.Seconds()),
	}, nil
}

// IssueAccessToken mints a short-lived access token
func (tm *TokenManager) IssueAccessToken(accountID string) (string, error) {
	return tm.issue(accountID, models.TokenClassAccess, tm.accessTokenExpiry)
}

func (tm *TokenManager) issue(accountID string, class models.TokenClass, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("account id is required")
	}

	now := tm.now()
	claims := &models.TokenClaims{
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", class, err)
	}

	return tokenString, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return tm.secret, nil
}

func (tm *TokenManager) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	return opts
}

// Verify checks signature, expiry, class and revocation status.
// Any token problem is reported as models.ErrUnauthorized. If revocation
// status cannot be determined the token is rejected with
// models.ErrRevocationUnavailable.
func (tm *TokenManager) Verify(ctx context.Context, tokenString string, expected models.TokenClass) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc, tm.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Class != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %q", models.ErrUnauthorized, expected, claims.Class)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing token id or subject", models.ErrUnauthorized)
	}

	revoked, err := tm.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrRevocationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", models.ErrUnauthorized)
	}

	return claims, nil
}

// Revoke adds the token's jti to the revocation index for the rest of its
// lifetime. The signature must be valid, but expired tokens are accepted and
// need no entry.
func (tm *TokenManager) Revoke(ctx context.Context, tokenString string) error {
	claims := &models.TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: token cannot be revoked", models.ErrUnauthorized)
	}

	remaining := claims.ExpiresAt.Sub(tm.now())
	if remaining <= 0 {
		return nil
	}

	return tm.revocations.MarkRevoked(ctx, claims.ID, remaining)
}

// Refresh verifies a refresh token and mints a new access token for its
// subject. The refresh token itself stays valid.
func (tm *TokenManager) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := tm.Verify(ctx, refreshToken, models.TokenClassRefresh)
	if err != nil {
		return "", err
	}

	return tm.IssueAccessToken(claims.Subject)
}
