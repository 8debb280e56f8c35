package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	pkghttp "github.com/BradenHooton/kickvault/pkg/http"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
)

// Recoverer turns a handler panic into a 500 and reports it to Sentry
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http abort the connection as intended
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				requestID := middleware.GetReqID(r.Context())

				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("request_id", requestID)
					scope.SetExtra("path", r.URL.Path)
					scope.SetExtra("method", r.Method)
					scope.SetExtra("stack", stack)
					sentry.CaptureException(fmt.Errorf("panic in request: %v", rec))
				})

				logger.Error("panic_recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", requestID),
					slog.Any("panic", rec),
					slog.String("stack", stack))

				pkghttp.WriteInternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
