package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/kickvault/internal/models"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey holds the verified access token claims
	ClaimsContextKey contextKey = "claims"
	// TokenContextKey holds the raw bearer token so it can be revoked on logout
	TokenContextKey contextKey = "token"
)

// TokenVerifier verifies bearer tokens. *TokenManager satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, expected models.TokenClass) (*models.TokenClaims, error)
}

// AuthMiddleware requires a valid, unrevoked access token. If revocation
// status cannot be checked the request is refused with 503 rather than let
// a possibly revoked token through.
func AuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := verifier.Verify(r.Context(), tokenString, models.TokenClassAccess)
			if err != nil {
				if errors.Is(err, models.ErrRevocationUnavailable) {
					logger.Error("revocation check failed", slog.Any("error", err))
					pkghttp.WriteServiceUnavailable(w, "unable to verify token status")
					return
				}
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetClaimsFromContext returns the claims stored by AuthMiddleware
func GetClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetTokenFromContext returns the raw bearer token stored by AuthMiddleware
func GetTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}
