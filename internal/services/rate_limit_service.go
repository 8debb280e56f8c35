package services

import (
	"context"
	"log/slog"
	"time"
)

// CounterStore is the expiring counter behind the rate limiter. Increment
// must be atomic and must reset the key's expiry to ttl on every call.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitService counts requests per client and endpoint. Every hit pushes
// the window's expiry forward, so a client that keeps hammering an endpoint
// stays blocked until it backs off for a full window.
type RateLimitService struct {
	store  CounterStore
	logger *slog.Logger
}

func NewRateLimitService(store CounterStore, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		logger: logger,
	}
}

func rateLimitKey(endpointKey, clientKey string) string {
	return "ratelimit:" + endpointKey + ":" + clientKey
}

// Allow records one request and reports whether it fits within limit for
// the current window. When denied, retryAfter says how long until the
// window lapses. Store failures let the request through.
func (s *RateLimitService) Allow(ctx context.Context, clientKey, endpointKey string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}

	key := rateLimitKey(endpointKey, clientKey)

	count, err := s.store.Increment(ctx, key, window)
	if err != nil {
		// Fail open: an unreachable counter must not take the API down
		s.logger.Error("rate limit check failed",
			slog.String("endpoint", endpointKey),
			slog.Any("error", err))
		return true, 0
	}

	if count <= int64(limit) {
		return true, 0
	}

	retryAfter, err = s.store.TTL(ctx, key)
	if err != nil || retryAfter <= 0 {
		retryAfter = window
	}

	s.logger.Warn("rate limit exceeded",
		slog.String("endpoint", endpointKey),
		slog.String("client", clientKey),
		slog.Int64("count", count),
		slog.Int("limit", limit))

	return false, retryAfter
}
