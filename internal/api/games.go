package api

import (
	"net/http"

	"github.com/ashureev/connsolve/internal/store"
	"github.com/go-chi/chi/v5"
)

// ListGames handles GET /api/games?limit=N.
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Error(w, http.StatusServiceUnavailable, "game archive is disabled")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	games, err := h.archive.ListGames(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list games", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []*store.GameRecord{}
	}
	JSON(w, http.StatusOK, map[string]any{"games": games})
}

// GetGame handles GET /api/games/{fingerprint}.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Error(w, http.StatusServiceUnavailable, "game archive is disabled")
		return
	}
	game, err := h.archive.GetGame(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.logger.Error("Failed to get game", "error", err)
		Error(w, http.StatusInternalServerError, "failed to get game")
		return
	}
	if game == nil {
		Error(w, http.StatusNotFound, "game not found")
		return
	}
	JSON(w, http.StatusOK, game)
}
