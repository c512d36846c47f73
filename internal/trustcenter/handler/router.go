package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fts/pkg/platform/middleware/requestid"
	"fts/pkg/platform/middleware/requesttime"
)

// NewRouter mounts the broker API under /api/v2 next to /health and, when
// metricsHandler is non-nil, /metrics.
func NewRouter(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/health", h.HandleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Route("/api/v2", h.Register)
	return r
}
