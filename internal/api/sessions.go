package api

import (
	"context"
	"net/http"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/session"
	"github.com/ashureev/connsolve/internal/store"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	Words  []string           `json:"words"`
	Groups []domain.GroupSeed `json:"groups,omitempty"`
}

type attemptRequest struct {
	Words          []string `json:"words,omitempty"`
	Outcome        string   `json:"outcome"`
	WasRecommended bool     `json:"was_recommended"`
	Color          string   `json:"color,omitempty"`
}

type attemptResponse struct {
	Session  domain.Snapshot `json:"session"`
	Recorded bool            `json:"recorded"`
	Finished bool            `json:"finished"`
	GameOver bool            `json:"game_over"`
}

type remainingResponse struct {
	SessionID      string   `json:"session_id"`
	RemainingWords []string `json:"remaining_words"`
	GameOver       bool     `json:"game_over"`
}

// CreateSession handles POST /api/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	sess, err := h.sessions.Create(req.Words, req.Groups...)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	JSON(w, http.StatusCreated, sess.Snapshot())
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	all := h.sessions.List()
	out := make([]domain.Snapshot, 0, len(all))
	for _, s := range all {
		out = append(out, s.Snapshot())
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, sess.Snapshot())
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Remove(id); err != nil {
		h.WriteError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.CloseSession(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordAttempt handles POST /api/sessions/{id}/attempts. An empty word
// list records the last recommendation.
func (h *Handler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req attemptRequest
	if err := decode(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		h.WriteError(w, err)
		return
	}

	res, err := h.sessions.RecordAttempt(id, session.AttemptInput{
		Words:          req.Words,
		Outcome:        outcome,
		WasRecommended: req.WasRecommended,
		Color:          req.Color,
	})
	if err != nil {
		h.WriteError(w, err)
		return
	}

	if res.Finished {
		h.archiveGame(res.Session)
	}
	if res.Recorded {
		h.publish(res.Session)
	}

	JSON(w, http.StatusOK, attemptResponse{
		Session:  res.Session.Snapshot(),
		Recorded: res.Recorded,
		Finished: res.Finished,
		GameOver: res.Session.IsGameOver(),
	})
}

// RemainingWords handles GET /api/sessions/{id}/remaining.
func (h *Handler) RemainingWords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	words, err := h.sessions.RemainingWords(id)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	over, err := h.sessions.IsGameOver(id)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, remainingResponse{SessionID: id, RemainingWords: words, GameOver: over})
}

// archiveGame stores a finished game. Failures are logged, not returned;
// the attempt itself already succeeded.
func (h *Handler) archiveGame(sess *domain.Session) {
	if h.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := store.ArchiveSession(ctx, h.archive, sess); err != nil {
		h.logger.Error("Failed to archive game", "session_id", sess.ID, "error", err)
		return
	}
	h.logger.Info("Game archived", "session_id", sess.ID, "fingerprint", sess.Fingerprint, "won", sess.Won)
}
