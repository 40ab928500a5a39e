package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// RegisterRoutes registers every API route, plus the live websocket route
// when a hub is configured.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/", h.ListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/attempts", h.RecordAttempt)
				r.Get("/remaining", h.RemainingWords)
			})
		})

		r.Post("/recommendations", h.Recommend)
		r.Get("/strategies", h.ListStrategies)

		r.Get("/games", h.ListGames)
		r.Get("/games/{fingerprint}", h.GetGame)
	})

	if h.hub != nil {
		r.Get("/ws/sessions/{id}", h.hub.ServeHTTP)
	}
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":     "healthy",
		"checks":     checks,
		"sessions":   len(h.sessions.List()),
		"strategies": h.recommender.ListStrategies().Available,
	}
	statusCode := http.StatusOK

	switch {
	case h.archive == nil:
		checks["database"] = "disabled"
	case h.archive.Ping(ctx) != nil:
		slog.Error("Health check failed", "check", "database")
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	default:
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}
