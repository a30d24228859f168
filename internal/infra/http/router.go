package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vulnscan/api/pkg/logger"
)

// Pinger is a health-checkable dependency.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// RouterDeps bundles what the router needs.
type RouterDeps struct {
	Scans  *ScanHandler
	DB     Pinger
	Redis  Pinger
	Logger *logger.Logger
}

// NewRouter builds the chi router with the API routes, health check, and
// metrics endpoint.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", healthHandler(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", deps.Scans.Create)
			r.Get("/{id}", deps.Scans.Get)
			r.Post("/{id}/cancel", deps.Scans.Cancel)
			r.Get("/{id}/diff", deps.Scans.Diff)
		})
		r.Get("/organizations/{id}/quota", deps.Scans.Quota)
	})

	return r
}

func healthHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true

		if err := deps.DB.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := deps.Redis.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}
		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": checks,
		})
	}
}
