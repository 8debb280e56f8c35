package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/kickvault/internal/handlers"
	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/BradenHooton/kickvault/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	var gotIP string
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResult, error) {
			gotIP = clientIP
			return handlers.NewTestAuthResult("acct-1", username), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/login", handlers.LoginRequest{
		Username: "sole_collector",
		Password: "Sneaker$2024",
	})
	req.RemoteAddr = "203.0.113.10:51234"

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, "sole_collector", resp.User.Username)
	assert.Equal(t, "203.0.113.10", gotIP)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad credentials", models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"locked out", models.ErrAccountLocked, http.StatusLocked, "account_locked"},
		{"rate limited", &models.RateLimitError{RetryAfter: 30 * time.Second}, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"storage exhausted", &models.StorageError{Op: "login_failure", Attempts: 3, Err: errors.New("deadlock")}, http.StatusInternalServerError, "internal_error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResult, error) {
					return nil, tt.err
				},
			}

			handler := handlers.NewAuthHandler(mockAuth, nil, nil)
			req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/login", handlers.LoginRequest{
				Username: "sole_collector",
				Password: "whatever",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestLogin_UnauthorizedDoesNotExplain(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, username, password, clientIP string) (*services.AuthResult, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/login", handlers.LoginRequest{
		Username: "nobody",
		Password: "whatever",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.NotContains(t, strings.ToLower(resp.Message), "password")
	assert.NotContains(t, strings.ToLower(resp.Message), "user")
}

func TestLogin_BadRequests(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		handler.Login(w, req)
		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("missing password", func(t *testing.T) {
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/login", map[string]string{"username": "sole_collector"})
		w := httptest.NewRecorder()
		handler.Login(w, req)
		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
		assert.Equal(t, "password", resp.Field)
	})
}

func TestRegister_Success(t *testing.T) {
	var got services.RegisterInput
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
			got = in
			return handlers.NewTestAuthResult("acct-1", in.Username), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/register", handlers.RegisterRequest{
		Username: "sole_collector",
		Email:    "collector@example.com",
		Password: "Sneaker$2024",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "sole_collector", got.Username)
	assert.Equal(t, "collector@example.com", got.Email)
}

func TestRegister_InvalidUsername(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
			called = true
			return nil, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)

	for _, username := range []string{"ab", "has space", "dash-name", strings.Repeat("a", 51)} {
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/register", handlers.RegisterRequest{
			Username: username,
			Email:    "collector@example.com",
			Password: "Sneaker$2024",
		})

		w := httptest.NewRecorder()
		handler.Register(w, req)

		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
		assert.Equal(t, "username", resp.Field, "username %q", username)
	}
	assert.False(t, called)
}

func TestRegister_WeakPasswordListsViolations(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
			return nil, &models.ValidationError{
				Field:      "password",
				Violations: []string{"must be at least 8 characters", "must contain at least one digit"},
			}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/register", handlers.RegisterRequest{
		Username: "sole_collector",
		Email:    "collector@example.com",
		Password: "short",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
	assert.Equal(t, "password", resp.Field)
	assert.Len(t, resp.Violations, 2)
}

func TestRegister_ConflictNamesField(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
			return nil, &models.ConflictError{Field: "email"}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/register", handlers.RegisterRequest{
		Username: "sole_collector",
		Email:    "collector@example.com",
		Password: "Sneaker$2024",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict")
	assert.Equal(t, "email", resp.Field)
}

func TestGoogle(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			FederatedLoginFunc: func(ctx context.Context, assertion, clientIP string) (*services.AuthResult, error) {
				assert.Equal(t, "google-id-token", assertion)
				return handlers.NewTestAuthResult("acct-1", "Ada_109876"), nil
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/google", handlers.GoogleLoginRequest{IDToken: "google-id-token"})

		w := httptest.NewRecorder()
		handler.Google(w, req)

		var resp handlers.AuthResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "Ada_109876", resp.User.Username)
	})

	t.Run("missing token", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/google", map[string]string{})

		w := httptest.NewRecorder()
		handler.Google(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
	})

	t.Run("rejected assertion", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			FederatedLoginFunc: func(ctx context.Context, assertion, clientIP string) (*services.AuthResult, error) {
				return nil, models.ErrUnauthorized
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/google", handlers.GoogleLoginRequest{IDToken: "forged"})

		w := httptest.NewRecorder()
		handler.Google(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("provider unavailable", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			FederatedLoginFunc: func(ctx context.Context, assertion, clientIP string) (*services.AuthResult, error) {
				return nil, fmt.Errorf("%w: connection refused", models.ErrIdentityUnavailable)
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/google", handlers.GoogleLoginRequest{IDToken: "google-id-token"})

		w := httptest.NewRecorder()
		handler.Google(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			RefreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
				return "new_access_token", nil
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/refresh", handlers.RefreshTokenRequest{RefreshToken: "refresh_token_123"})

		w := httptest.NewRecorder()
		handler.RefreshToken(w, req)

		var resp handlers.RefreshResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "new_access_token", resp.AccessToken)
	})

	t.Run("revocation index down", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			RefreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
				return "", models.ErrRevocationUnavailable
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/refresh", handlers.RefreshTokenRequest{RefreshToken: "refresh_token_123"})

		w := httptest.NewRecorder()
		handler.RefreshToken(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes access and refresh tokens", func(t *testing.T) {
		var gotAccount, gotAccess, gotRefresh string
		mockAuth := &handlers.MockAuthService{
			LogoutFunc: func(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error {
				gotAccount, gotAccess, gotRefresh = accountID, accessToken, refreshToken
				return nil
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := handlers.NewTestRequest(t, "POST", "/api/v1/auth/logout", handlers.LogoutRequest{RefreshToken: "refresh_token_123"})
		req = handlers.WithAuthContext(req, "acct-1", "access_token_123")

		w := httptest.NewRecorder()
		handler.Logout(w, req)

		handlers.AssertJSONResponse(t, w, http.StatusOK, nil)
		assert.Equal(t, "acct-1", gotAccount)
		assert.Equal(t, "access_token_123", gotAccess)
		assert.Equal(t, "refresh_token_123", gotRefresh)
	})

	t.Run("empty body", func(t *testing.T) {
		var gotRefresh = "unset"
		mockAuth := &handlers.MockAuthService{
			LogoutFunc: func(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error {
				gotRefresh = refreshToken
				return nil
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
		req = handlers.WithAuthContext(req, "acct-1", "access_token_123")

		w := httptest.NewRecorder()
		handler.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, gotRefresh)
	})

	t.Run("no claims", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)

		w := httptest.NewRecorder()
		handler.Logout(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("revocation index down", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			LogoutFunc: func(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error {
				return models.ErrRevocationUnavailable
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
		req = handlers.WithAuthContext(req, "acct-1", "access_token_123")

		w := httptest.NewRecorder()
		handler.Logout(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
	})
}
