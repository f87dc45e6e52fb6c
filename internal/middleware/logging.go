package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			statusCode := wrapped.Status()
			bytesWritten := wrapped.BytesWritten()
			requestID := middleware.GetReqID(r.Context())

			// Redact the whole query string when it carries sensitive
			// parameters
			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", statusCode),
				slog.Int64("bytes", int64(bytesWritten)),
				slog.String("duration", duration.String()),
				slog.String("request_id", requestID),
				slog.String("remote_addr", r.RemoteAddr),
			}

			logger.LogAttrs(context.Background(), slog.LevelInfo, "http_request", attrs...)
		})
	}
}

// AuditAlertConfig holds request alerting configuration
type AuditAlertConfig struct {
	// SlowThreshold flags requests slower than this.
	SlowThreshold time.Duration
	IPConfig      *pkghttp.IPConfig
}

// AuditAlert emits a structured alert for every error response and for
// requests that exceed the latency threshold. It sits last in the
// gateway so the recorded status is what the client actually received.
func AuditAlert(auditLogger *pkglogger.AuditLogger, config AuditAlertConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			latency := time.Since(start)
			status := wrapped.Status()

			if status >= http.StatusBadRequest || latency > config.SlowThreshold {
				ip := pkghttp.ExtractClientIP(r, config.IPConfig)
				auditLogger.LogRequestAlert(r.Method, r.URL.Path, ip, status, latency)
			}
		})
	}
}
