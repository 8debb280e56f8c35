package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/kickvault/internal/kvstore"
	"github.com/BradenHooton/kickvault/internal/models"
)

const revokedKeyPrefix = "revoked:"

// TokenRevocationRepository is the revocation index. Entries expire on their
// own once the token they block could no longer verify anyway.
type TokenRevocationRepository struct {
	store *kvstore.Store
}

func NewTokenRevocationRepository(store *kvstore.Store) *TokenRevocationRepository {
	return &TokenRevocationRepository{store: store}
}

// MarkRevoked records jti as revoked for ttl
func (r *TokenRevocationRepository) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return fmt.Errorf("%w: empty token id", models.ErrBadRequest)
	}
	if ttl <= 0 {
		return nil
	}

	if err := r.store.Set(ctx, revokedKeyPrefix+jti, "1", ttl); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRevocationUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked
func (r *TokenRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := r.store.Exists(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrRevocationUnavailable, err)
	}
	return revoked, nil
}
