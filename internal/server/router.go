package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gregoryhugaerts/mini-siem/internal/handlers"
	"github.com/gregoryhugaerts/mini-siem/internal/httputil"
	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/middleware"
	"github.com/gregoryhugaerts/mini-siem/internal/ratelimit"
)

// NewRouter wires the ingestion API. The write path is rate limited per
// client address; management and read endpoints are not.
func NewRouter(h *handlers.Handler, limiter ratelimit.Limiter, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	// Source management
	mux.HandleFunc("POST /api/v1/sources", h.RegisterSource)
	mux.HandleFunc("GET /api/v1/sources", h.ListSources)
	mux.HandleFunc("GET /api/v1/sources/{id}", h.GetSource)
	mux.HandleFunc("PUT /api/v1/sources/{id}/schema", h.UpdateSourceSchema)
	mux.HandleFunc("POST /api/v1/sources/{id}/deactivate", h.DeactivateSource)

	// Event ingestion and read path
	mux.Handle("POST /api/v1/events", rateLimited(limiter, logger, http.HandlerFunc(h.IngestEvents)))
	mux.HandleFunc("GET /api/v1/events", h.QueryEvents)
	mux.HandleFunc("GET /api/v1/events/{id}", h.GetEvent)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}

// rateLimited fails open: a broken limiter backend must not take the
// ingestion path down with it.
func rateLimited(limiter ratelimit.Limiter, logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := httputil.GetClientIP(r)
		allowed, err := limiter.Allow(r.Context(), client)
		if err != nil {
			logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
			allowed = true
		}
		if !allowed {
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
