package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/kickvault/internal/auth"
	"github.com/BradenHooton/kickvault/internal/config"
	"github.com/BradenHooton/kickvault/internal/handlers"
	"github.com/BradenHooton/kickvault/internal/middleware"
	"github.com/BradenHooton/kickvault/internal/observability"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 60 * time.Second

// Dependencies are the collaborators the routes are wired to
type Dependencies struct {
	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	HealthHandler *handlers.HealthHandler
	Verifier      auth.TokenVerifier
	Limiter       middleware.EndpointLimiter
	Quotas        config.RateLimitConfig
	IPConfig      *pkghttp.IPConfig
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// ServerOptions configure the middleware shared by every route
type ServerOptions struct {
	Env             string
	AllowedOrigins  []string
	GlobalPerMinute int
}

// NewRouter builds the router with the global middleware chain and every
// application route. Client addresses come only from pkghttp.ExtractClientIP;
// chi's RealIP must not be added, it rewrites RemoteAddr from client headers.
func NewRouter(deps Dependencies, opts ServerOptions) *chi.Mux {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestIDHeader)
	router.Use(middleware.Recoverer(deps.Logger))
	if deps.Metrics != nil {
		router.Use(middleware.RequestMetrics(deps.Metrics))
	}
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.AllowedOrigins)))
	router.Use(middleware.SecureLogger(deps.Logger))
	if opts.GlobalPerMinute > 0 {
		router.Use(middleware.RateLimitByIP(opts.GlobalPerMinute, deps.IPConfig))
	}
	router.Use(chimiddleware.Timeout(requestTimeout))

	RegisterRoutes(router, deps)
	return router
}

func quota(endpoint string, q config.Quota) middleware.EndpointQuota {
	return middleware.EndpointQuota{Endpoint: endpoint, Limit: q.Limit, Window: q.Window}
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	limit := func(endpoint string, q config.Quota) func(http.Handler) http.Handler {
		return middleware.EndpointRateLimit(deps.Limiter, quota(endpoint, q), deps.IPConfig, deps.Logger)
	}

	router.Get("/health", deps.HealthHandler.Health)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes - per-endpoint quotas
		r.With(limit("register", deps.Quotas.Register)).Post("/auth/register", deps.AuthHandler.Register)
		r.With(limit("login", deps.Quotas.Login)).Post("/auth/login", deps.AuthHandler.Login)
		r.With(limit("google", deps.Quotas.Google)).Post("/auth/google", deps.AuthHandler.Google)
		r.With(limit("refresh", deps.Quotas.Refresh)).Post("/auth/refresh", deps.AuthHandler.RefreshToken)

		// Protected routes - access token required
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(deps.Verifier, deps.Logger))

			r.Post("/auth/logout", deps.AuthHandler.Logout)
			r.Get("/user/profile", deps.UserHandler.GetProfile)
		})
	})
}
