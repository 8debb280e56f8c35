package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/kickvault/internal/auth"
	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/BradenHooton/kickvault/internal/services"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access token claims and the raw token to the request
// context, as AuthMiddleware would
func WithAuthContext(req *http.Request, accountID, token string) *http.Request {
	claims := &models.TokenClaims{
		Class: models.TokenClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: accountID,
			ID:      "jti-" + accountID,
		},
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	ctx = context.WithValue(ctx, auth.TokenContextKey, token)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// NewTestAuthResult builds a successful sign-in result for accountID
func NewTestAuthResult(accountID, username string) *services.AuthResult {
	return &services.AuthResult{
		Tokens: &models.TokenPair{
			AccessToken:  "access_token_123",
			RefreshToken: "refresh_token_123",
			TokenType:    "Bearer",
			ExpiresIn:    900,
		},
		Account: &models.Account{
			ID:       accountID,
			Username: username,
			Email:    username + "@example.com",
			IsActive: true,
		},
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc       func(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	LoginFunc          func(ctx context.Context, username, password, clientIP string) (*services.AuthResult, error)
	FederatedLoginFunc func(ctx context.Context, assertion, clientIP string) (*services.AuthResult, error)
	RefreshFunc        func(ctx context.Context, refreshToken string) (string, error)
	LogoutFunc         func(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, username, password, clientIP string) (*services.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password, clientIP)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) FederatedLogin(ctx context.Context, assertion, clientIP string) (*services.AuthResult, error) {
	if m.FederatedLoginFunc != nil {
		return m.FederatedLoginFunc(ctx, assertion, clientIP)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return "", models.ErrInternalServer
}

func (m *MockAuthService) Logout(ctx context.Context, accountID, accessToken, refreshToken, clientIP string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accountID, accessToken, refreshToken, clientIP)
	}
	return nil
}

// MockAccountService implements AccountService for testing
type MockAccountService struct {
	GetProfileFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountService) GetProfile(ctx context.Context, id string) (*models.Account, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}
