package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher interface for streaming support.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// principalRecorder lets handlers further down the chain report the
// authenticated principal back to the logging middleware.
type principalRecorder struct {
	name string
}

// Logging returns a middleware that logs HTTP requests. The query string is
// not logged since it may carry an API key.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			rec := &principalRecorder{}
			next.ServeHTTP(rw, r.WithContext(withPrincipalRecorder(r.Context(), rec)))

			//nolint:contextcheck // request context carries the request ID
			requestID := observability.RequestIDFromContext(r.Context())

			logger.Info("http request",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", rw.status),
				observability.Int("size", rw.size),
				observability.Duration("duration", time.Since(start)),
				observability.String("remote_addr", r.RemoteAddr),
				observability.String("user_agent", r.UserAgent()),
				observability.String("request_id", requestID),
				observability.String("principal", rec.name),
			)
		})
	}
}

// RecordPrincipal returns a middleware, placed after the gate, that reports
// the authenticated principal to Logging.
func RecordPrincipal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := security.CurrentToken(r.Context()); ok {
				SetPrincipal(r.Context(), token.PrincipalName())
			}
			next.ServeHTTP(w, r)
		})
	}
}
