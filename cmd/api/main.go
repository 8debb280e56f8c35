package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/kickvault/internal/auth"
	"github.com/BradenHooton/kickvault/internal/config"
	"github.com/BradenHooton/kickvault/internal/database"
	"github.com/BradenHooton/kickvault/internal/handlers"
	"github.com/BradenHooton/kickvault/internal/kvstore"
	"github.com/BradenHooton/kickvault/internal/observability"
	"github.com/BradenHooton/kickvault/internal/repositories"
	"github.com/BradenHooton/kickvault/internal/routes"
	"github.com/BradenHooton/kickvault/internal/services"
	pkgauth "github.com/BradenHooton/kickvault/pkg/auth"
	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
	pkglogger "github.com/BradenHooton/kickvault/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := observability.InitSentry(cfg.Observability.SentryDSN, cfg.Observability.SentryEnvironment); err != nil {
		logger.Warn("sentry disabled", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize key-value store
	redisClient, err := kvstore.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	store := kvstore.New(redisClient, cfg.Redis.KeyPrefix)

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db, cfg.Auth.LockoutThreshold)
	revokeRepo := repositories.NewTokenRevocationRepository(store)

	unitOfWork := database.NewUnitOfWork(db, database.UnitOfWorkConfig{
		MaxAttempts: cfg.Auth.TxMaxAttempts,
		BaseBackoff: cfg.Auth.TxRetryBackoff,
	}, logger)

	// Initialize token manager
	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:             cfg.Auth.JWTSecret,
		Issuer:             cfg.Auth.Issuer,
		AccessTokenExpiry:  cfg.Auth.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.Auth.RefreshTokenExpiry,
	}, revokeRepo)
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}

	hasher, err := pkgauth.NewPasswordHasher(cfg.Auth.PBKDF2Iterations)
	if err != nil {
		logger.Error("failed to initialize password hasher", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	ipConfig, invalidProxies := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	for _, entry := range invalidProxies {
		logger.Warn("ignoring invalid trusted proxy", slog.String("entry", entry))
	}

	// Lockout notices
	var notifier services.LockoutNotifier
	if cfg.Email.Enabled {
		emailService, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = emailService
	} else {
		notifier = services.NewLogOnlyNotifier(logger)
	}

	var identity services.IdentityVerifier
	if cfg.Identity.GoogleClientID != "" {
		identity = services.NewGoogleIdentityVerifier(cfg.Identity.GoogleClientID, cfg.Identity.GoogleTokenInfoURL, logger)
	} else {
		logger.Info("GOOGLE_CLIENT_ID not set, federated login disabled")
	}

	// Initialize services
	authService := services.NewAuthService(services.AuthServiceDeps{
		Repo:        accountRepo,
		UnitOfWork:  unitOfWork,
		Tokens:      tokenManager,
		Hasher:      hasher,
		Timing:      timingDelay,
		Identity:    identity,
		Notifier:    notifier,
		Logger:      logger,
		AuditLogger: pkglogger.NewAuditLogger(logger),
	})
	accountService := services.NewAccountService(accountRepo, logger)
	rateLimitService := services.NewRateLimitService(store, logger)

	// Setup router
	router := routes.NewRouter(routes.Dependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, ipConfig, logger),
		UserHandler:   handlers.NewUserHandler(accountService),
		HealthHandler: handlers.NewHealthHandler(handlers.PingerFunc(db.HealthCheck), store, logger),
		Verifier:      tokenManager,
		Limiter:       rateLimitService,
		Quotas:        cfg.RateLimit,
		IPConfig:      ipConfig,
		Metrics:       observability.NewMetrics(),
		Logger:        logger,
	}, routes.ServerOptions{
		Env:             cfg.Server.Env,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		GlobalPerMinute: cfg.Server.GlobalPerMinute,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
