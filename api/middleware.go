package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// SECRET GUARD
// =============================================================================

// SecretGuard admits requests whose {secret} path segment matches a bcrypt
// hash. Anything else gets 404 so the sheet's existence is not revealed.
type SecretGuard struct {
	hash []byte

	mu       sync.Mutex
	accepted map[string]bool
}

// NewSecretGuard returns a guard for hash. An empty hash admits everything.
func NewSecretGuard(hash string) *SecretGuard {
	return &SecretGuard{hash: []byte(hash), accepted: make(map[string]bool)}
}

// Allow reports whether secret matches. Matching secrets are remembered so
// bcrypt runs once per secret, not once per request.
func (g *SecretGuard) Allow(secret string) bool {
	if len(g.hash) == 0 {
		return true
	}

	g.mu.Lock()
	ok := g.accepted[secret]
	g.mu.Unlock()
	if ok {
		return true
	}

	if bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) != nil {
		return false
	}
	g.mu.Lock()
	g.accepted[secret] = true
	g.mu.Unlock()
	return true
}

// Middleware rejects requests with a wrong secret.
func (g *SecretGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(chi.URLParam(r, "secret")) {
			writeError(w, http.StatusNotFound, "not found", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// REQUEST LOGGING AND METRICS
// =============================================================================

// HTTPMetrics are the request collectors.
type HTTPMetrics struct {
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the request collectors.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "order_sheet",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.Duration)
	return m
}

// RequestLogger logs every request with slog and records its latency.
// Routes are labelled by pattern, so the secret never reaches logs or metrics.
func RequestLogger(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			if metrics != nil {
				metrics.Duration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
			}

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
