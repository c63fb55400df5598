// Package http assembles the service router: evaluation and admin endpoints
// under /v1, plus health and Prometheus metrics.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokengate/internal/compliance/handler"
	"tokengate/internal/platform/middleware"
)

// NewRouter wires all endpoints. Admin routes sit behind the JWT middleware;
// the evaluation surface is authenticated upstream by the API gateway.
func NewRouter(h *handler.Handler, adminJWTSecret string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		h.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(adminJWTSecret, logger))
			h.RegisterAdmin(r)
		})
	})

	return r
}
