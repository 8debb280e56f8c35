package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/kickvault/internal/auth"
	"github.com/BradenHooton/kickvault/internal/models"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
)

// AccountService defines the interface for account business logic
type AccountService interface {
	GetProfile(ctx context.Context, id string) (*models.Account, error)
}

// UserHandler handles account-related HTTP requests
type UserHandler struct {
	service AccountService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service AccountService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// AccountResponse represents an account in the HTTP response
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Since    string `json:"since"`
	IsActive bool   `json:"is_active"`
}

// accountModelToResponse converts an account model to a response DTO
func accountModelToResponse(account *models.Account) *AccountResponse {
	if account == nil {
		return nil
	}

	since := ""
	if !account.CreatedAt.IsZero() {
		since = account.CreatedAt.Format("2006-01-02")
	}

	return &AccountResponse{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		Since:    since,
		IsActive: account.IsActive,
	}
}

// GetProfile returns the authenticated account
//
// @Summary Get own profile
// @Security BearerAuth
// @Produce json
// @Success 200 {object} AccountResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	account, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]*AccountResponse{
		"user": accountModelToResponse(account),
	})
}
