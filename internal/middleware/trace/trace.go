// Package trace assigns request ids and logs every request with its
// outcome and latency.
package trace

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"splitperfect/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Observer receives the outcome of each request, typically backed by
// the Prometheus metrics.
type Observer func(method, route string, status int, elapsed time.Duration)

type Middleware struct {
	logger  *log.Logger
	observe Observer
}

func New(logger *log.Logger, observe Observer) *Middleware {
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), observe: observe}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		clientIP := ClientIP(r)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		reqLogger := m.logger.With(
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
		)
		ctx = log.IntoContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		if m.observe != nil {
			m.observe(r.Method, routePattern(r), rw.status, elapsed)
		}

		level := slog.LevelInfo
		switch {
		case rw.status >= 500:
			level = slog.LevelError
		case rw.status >= 400:
			level = slog.LevelWarn
		}
		reqLogger.Log(ctx, level, "request completed",
			log.FieldStatusCode, rw.status,
			log.FieldDuration, elapsed.Milliseconds(),
			log.FieldClientIP, clientIP,
		)
	})
}

// routePattern prefers the mux pattern over the raw path so metrics
// labels stay low-cardinality.
func routePattern(r *http.Request) string {
	if pattern := r.Pattern; pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID returns the id assigned to this request, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ClientIP extracts the caller address, honoring X-Forwarded-For from
// a fronting proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
