package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/observability"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.length += n
	return n, err
}

// NewLoggingMiddleware logs one line per completed request and seeds the
// request context with a logger scoped to that request's fields, so every
// downstream component's logs correlate without threading a request ID
// through every function signature.
func NewLoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			ctx := observability.WithLogger(r.Context(), reqLogger)

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			reqLogger.Info("http request",
				zap.Int("status", wrapped.status),
				zap.Duration("duration", time.Since(start)),
				zap.Int("response_bytes", wrapped.length),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// NewRecoverMiddleware contains a panic anywhere downstream, per spec.md
// §7's never-fatal rule: no request path may terminate the process.
func NewRecoverMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					observability.FromContext(r.Context()).Error("panic recovered",
						zap.Any("recovered", rec), zap.String("path", r.URL.Path))
					http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewMaxBodyMiddleware enforces the inbound request body size cap
// (spec.md §6): exceeding it surfaces as 400, not a truncated read deep
// inside JSON parsing.
func NewMaxBodyMiddleware(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
