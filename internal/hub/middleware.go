package hub

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/luciancaetano/syncroom/internal/ratelimit"
)

// responseWriter captures the status code and byte count for the
// request log.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// recoveryMiddleware turns a handler panic into a 500 instead of
// killing the connection.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic in handler",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", err,
						"stack", string(debug.Stack()))
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"detail": "Internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs one line per request with status, size and
// duration.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"bytes", rw.written,
				"duration", time.Since(start))
		})
	}
}

// rateLimitMiddleware applies the fixed-window http limit keyed by
// client address. Over-limit requests get a 429 with the reason.
func rateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ok, reason := limiter.Allow(r.Context(), ip, ratelimit.TypeHTTP); !ok {
				logger.Warn("http rate limit exceeded", "remote_addr", ip, "path", r.URL.Path)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"detail": reason,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
