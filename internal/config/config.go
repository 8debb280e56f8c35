package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Server        ServerConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Email         EmailConfig
	Identity      IdentityConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	RunMigrations     bool
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	TrustedProxies  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GlobalPerMinute int
}

type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	PBKDF2Iterations   int
	LockoutThreshold   int

	// Unit of work retry policy
	TxMaxAttempts  int
	TxRetryBackoff time.Duration

	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	TimingDelayOnSuccess bool
}

// Quota is a request budget over a sliding window
type Quota struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Login    Quota
	Register Quota
	Google   Quota
	Refresh  Quota
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

type IdentityConfig struct {
	GoogleClientID     string
	GoogleTokenInfoURL string
}

type ObservabilityConfig struct {
	SentryDSN         string
	SentryEnvironment string
}

const (
	minPBKDF2Iterations = 100_000
	maxLockoutThreshold = 5
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "kickvault"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "kickvault"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:  parseAllowedOrigins(env),
			TrustedProxies:  parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			GlobalPerMinute: getEnvAsInt("GLOBAL_RATE_LIMIT_PER_MINUTE", 300),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			Issuer:               getEnv("JWT_ISSUER", "kickvault"),
			AccessTokenExpiry:    getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:   getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),
			PBKDF2Iterations:     getEnvAsInt("PBKDF2_ITERATIONS", 310_000),
			LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", maxLockoutThreshold),
			TxMaxAttempts:        getEnvAsInt("TX_MAX_ATTEMPTS", 3),
			TxRetryBackoff:       getEnvAsDuration("TX_RETRY_BACKOFF", 50*time.Millisecond),
			TimingDelayBaseMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 50),
			TimingDelayOnSuccess: getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
		},
		RateLimit: RateLimitConfig{
			Login:    Quota{Limit: getEnvAsInt("RATE_LIMIT_LOGIN", 5), Window: getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", time.Minute)},
			Register: Quota{Limit: getEnvAsInt("RATE_LIMIT_REGISTER", 3), Window: getEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", time.Hour)},
			Google:   Quota{Limit: getEnvAsInt("RATE_LIMIT_GOOGLE", 5), Window: getEnvAsDuration("RATE_LIMIT_GOOGLE_WINDOW", time.Minute)},
			Refresh:  Quota{Limit: getEnvAsInt("RATE_LIMIT_REFRESH", 10), Window: getEnvAsDuration("RATE_LIMIT_REFRESH_WINDOW", time.Minute)},
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@kickvault.local"),
		},
		Identity: IdentityConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleTokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		},
		Observability: ObservabilityConfig{
			SentryDSN:         getEnv("SENTRY_DSN", ""),
			SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", env),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *AuthConfig) validate() error {
	if a.PBKDF2Iterations < minPBKDF2Iterations {
		return fmt.Errorf("PBKDF2_ITERATIONS must be at least %d (got %d)", minPBKDF2Iterations, a.PBKDF2Iterations)
	}
	if a.LockoutThreshold < 1 || a.LockoutThreshold > maxLockoutThreshold {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be between 1 and %d (got %d)", maxLockoutThreshold, a.LockoutThreshold)
	}
	if a.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1 (got %d)", a.TxMaxAttempts)
	}
	if a.AccessTokenExpiry <= 0 || a.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiry durations must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", "")) // Default to no origins in production
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
