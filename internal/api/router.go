package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bridge "github.com/nerrad567/vicare-bridge/internal/bridges/vicare"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Entity ids contain slashes, so entity routes take the id from the
// trailing wildcard.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/devices", s.handleListDevices)
		r.Get("/entities", s.handleListEntities)
		r.Get("/entities/*", s.handleGetEntity)
		r.Get("/registry", s.handleListRecords)
		r.Get("/registry/*", s.handleGetRecord)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Post("/commands/*", s.handleCommand)
			r.Post("/services/{name}", s.handleService)
		})
	})

	return r
}

// handleHealth returns the bridge health report. Any status other than
// healthy or degraded answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.bridge.Health()
	status := http.StatusOK
	if h.Status != bridge.HealthHealthy && h.Status != bridge.HealthDegraded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":  h.Status,
		"version": s.version,
		"bridge":  h,
	})
}
