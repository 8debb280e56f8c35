package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/kickvault/internal/kvstore"
	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRevocationRepo(t *testing.T) (*TokenRevocationRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewTokenRevocationRepository(kvstore.New(client, "")), mr
}

func TestTokenRevocation_MarkAndCheck(t *testing.T) {
	repo, mr := newTestRevocationRepo(t)
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.MarkRevoked(ctx, "jti-1", 15*time.Minute))

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.Equal(t, 15*time.Minute, mr.TTL("revoked:jti-1"))
}

func TestTokenRevocation_EntryExpiresWithToken(t *testing.T) {
	repo, mr := newTestRevocationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkRevoked(ctx, "jti-2", time.Minute))
	mr.FastForward(61 * time.Second)

	revoked, err := repo.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenRevocation_NonPositiveTTLIsNoop(t *testing.T) {
	repo, mr := newTestRevocationRepo(t)

	require.NoError(t, repo.MarkRevoked(context.Background(), "jti-3", 0))
	assert.False(t, mr.Exists("revoked:jti-3"))
}

func TestTokenRevocation_EmptyJTI(t *testing.T) {
	repo, _ := newTestRevocationRepo(t)

	err := repo.MarkRevoked(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestTokenRevocation_StoreDown(t *testing.T) {
	repo, mr := newTestRevocationRepo(t)
	mr.Close()

	_, err := repo.IsRevoked(context.Background(), "jti-4")
	assert.ErrorIs(t, err, models.ErrRevocationUnavailable)

	err = repo.MarkRevoked(context.Background(), "jti-4", time.Minute)
	assert.ErrorIs(t, err, models.ErrRevocationUnavailable)
}
