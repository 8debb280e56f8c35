package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitByIP caps the total request rate of each client IP across the
// whole API, independent of the per-endpoint quotas. Clients are keyed the
// same way as EndpointRateLimit, so forwarding headers count only when a
// trusted proxy sent them.
func RateLimitByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, time.Minute, "Rate limit exceeded")
		}),
	)
}

// EndpointLimiter decides whether one more request fits a client's quota.
// *services.RateLimitService satisfies it.
type EndpointLimiter interface {
	Allow(ctx context.Context, clientKey, endpointKey string, limit int, window time.Duration) (bool, time.Duration)
}

// EndpointQuota is the number of requests a client may make to one endpoint
// within a sliding window
type EndpointQuota struct {
	Endpoint string
	Limit    int
	Window   time.Duration
}

// EndpointRateLimit enforces quota per client IP, answering 429 with a
// Retry-After header once it is spent
func EndpointRateLimit(limiter EndpointLimiter, quota EndpointQuota, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := pkghttp.ExtractClientIP(r, ipConfig)

			allowed, retryAfter := limiter.Allow(r.Context(), clientIP, quota.Endpoint, quota.Limit, quota.Window)
			if !allowed {
				logger.Warn("endpoint rate limit exceeded",
					slog.String("endpoint", quota.Endpoint),
					slog.String("client_ip", clientIP),
					slog.Duration("retry_after", retryAfter))
				pkghttp.WriteTooManyRequests(w, retryAfter, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
