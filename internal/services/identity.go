package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/kickvault/internal/models"
)

const DefaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var ErrInvalidAssertion = errors.New("identity assertion rejected")

// GoogleIdentityVerifier validates Google ID tokens against the tokeninfo endpoint
type GoogleIdentityVerifier struct {
	clientID     string
	tokenInfoURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewGoogleIdentityVerifier(clientID, tokenInfoURL string, logger *slog.Logger) *GoogleIdentityVerifier {
	if tokenInfoURL == "" {
		tokenInfoURL = DefaultGoogleTokenInfoURL
	}
	return &GoogleIdentityVerifier{
		clientID:     clientID,
		tokenInfoURL: tokenInfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// tokenInfo mirrors the fields of the tokeninfo response we rely on.
// Google encodes booleans as strings here.
type tokenInfo struct {
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

// Verify exchanges assertion for the identity it asserts
func (v *GoogleIdentityVerifier) Verify(ctx context.Context, assertion string) (*models.FederatedIdentity, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, fmt.Errorf("%w: empty assertion", ErrInvalidAssertion)
	}

	endpoint := v.tokenInfoURL + "?" + url.Values{"id_token": {assertion}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokeninfo request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Error("tokeninfo request failed", slog.Any("error", err))
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			v.logger.Error("tokeninfo endpoint unavailable", slog.Int("status", resp.StatusCode))
			return nil, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: tokeninfo returned status %d", ErrInvalidAssertion, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo response: %w", err)
	}

	if info.Audience != v.clientID {
		v.logger.Warn("identity assertion issued for another client")
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
	}
	if info.EmailVerified != "true" {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidAssertion)
	}
	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidAssertion)
	}

	name := info.Name
	if name == "" {
		name = info.GivenName
	}

	return &models.FederatedIdentity{
		ExternalID:  info.Subject,
		Email:       info.Email,
		DisplayName: name,
	}, nil
}
