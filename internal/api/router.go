package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers the operator endpoints. metrics serves the process
// prometheus registry.
func NewRouter(h *HandlerProvider, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HealthHandler)
	r.Get("/scheduler/heartbeat", h.HeartbeatHandler)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Post("/payouts/{payoutId}/retry", h.RetryPayoutHandler)

	return r
}
