package api

import (
	"context"
	"net/http"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/recommend"
)

type priorAttempt struct {
	Words   []string `json:"words"`
	Outcome string   `json:"outcome"`
}

type recommendRequest struct {
	Strategy      string         `json:"strategy,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Words         []string       `json:"words,omitempty"`
	PriorAttempts []priorAttempt `json:"prior_attempts,omitempty"`
	Context       string         `json:"context,omitempty"`
}

// Recommend handles POST /api/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decode(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}

	prior := make([]domain.Attempt, 0, len(req.PriorAttempts))
	for _, a := range req.PriorAttempts {
		outcome, err := domain.ParseOutcome(a.Outcome)
		if err != nil {
			h.WriteError(w, err)
			return
		}
		prior = append(prior, domain.Attempt{Words: domain.NormalizeWords(a.Words), Outcome: outcome})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.recommendTimeout)
	defer cancel()

	res, err := h.recommender.Recommend(ctx, recommend.Request{
		StrategyID:    req.Strategy,
		SessionID:     req.SessionID,
		Words:         req.Words,
		PriorAttempts: prior,
		Context:       req.Context,
	})
	if err != nil {
		h.WriteError(w, err)
		return
	}

	if res.SessionID != "" {
		if sess, err := h.sessions.Get(res.SessionID); err == nil {
			h.publish(sess)
		}
	}
	JSON(w, http.StatusOK, res)
}

// ListStrategies handles GET /api/strategies.
func (h *Handler) ListStrategies(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.recommender.ListStrategies())
}
