package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/kickvault/internal/kvstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRateLimiter(t *testing.T) (*RateLimitService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRateLimitService(kvstore.New(client, ""), newTestLogger()), mr
}

func TestRateLimitService_DeniesAfterLimit(t *testing.T) {
	limiter, _ := newRedisRateLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		allowed, _ := limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
		assert.True(t, allowed, "call %d should be allowed", i)
	}

	allowed, retryAfter := limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	assert.False(t, allowed, "sixth call should be denied")
	assert.Equal(t, time.Minute, retryAfter)
}

func TestRateLimitService_AllowsAfterWindowLapses(t *testing.T) {
	limiter, mr := newRedisRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	}

	mr.FastForward(61 * time.Second)

	allowed, _ := limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	assert.True(t, allowed)
}

func TestRateLimitService_ActiveClientWindowSlides(t *testing.T) {
	limiter, mr := newRedisRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	}

	// a denied hit 50s in keeps the window alive past the original boundary
	mr.FastForward(50 * time.Second)
	allowed, _ := limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	assert.False(t, allowed)

	mr.FastForward(20 * time.Second)
	allowed, _ = limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	assert.False(t, allowed)
}

func TestRateLimitService_KeysAreIndependent(t *testing.T) {
	limiter, mr := newRedisRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, "203.0.113.10", "register", 3, time.Hour)
	}

	allowed, _ := limiter.Allow(ctx, "203.0.113.11", "register", 3, time.Hour)
	assert.True(t, allowed, "other clients are unaffected")

	allowed, _ = limiter.Allow(ctx, "203.0.113.10", "login", 5, time.Minute)
	assert.True(t, allowed, "other endpoints are unaffected")

	assert.True(t, mr.Exists("ratelimit:register:203.0.113.10"))
}

func TestRateLimitService_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	limiter, _ := newRedisRateLimiter(t)
	ctx := context.Background()

	const callers = 40
	var wg sync.WaitGroup
	var allowedCount atomic.Int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(ctx, "203.0.113.10", "refresh", 10, time.Minute); ok {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowedCount.Load())
}

type failingCounterStore struct{}

func (failingCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (failingCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, errors.New("redis down")
}

func TestRateLimitService_FailsOpen(t *testing.T) {
	limiter := NewRateLimitService(failingCounterStore{}, newTestLogger())

	allowed, retryAfter := limiter.Allow(context.Background(), "203.0.113.10", "login", 5, time.Minute)
	require.True(t, allowed)
	assert.Zero(t, retryAfter)
}
