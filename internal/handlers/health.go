package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the status of the database and the KV store
type HealthHandler struct {
	database Pinger
	kv       Pinger
	logger   *slog.Logger
	timeout  time.Duration
}

func NewHealthHandler(database, kv Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		database: database,
		kv:       kv,
		logger:   logger,
		timeout:  2 * time.Second,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health checks every dependency and answers 503 if any is down
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, 2),
	}

	check := func(name string, p Pinger) {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health check failed", slog.String("service", name), slog.Any("error", err))
			resp.Services[name] = "unhealthy"
			resp.Status = "unhealthy"
			return
		}
		resp.Services[name] = "healthy"
	}
	check("database", h.database)
	check("redis", h.kv)

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	pkghttp.WriteJSON(w, status, resp)
}
