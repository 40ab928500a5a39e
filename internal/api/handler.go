// Package api provides the HTTP transport for the puzzle assistant.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/live"
	"github.com/ashureev/connsolve/internal/recommend"
	"github.com/ashureev/connsolve/internal/session"
	"github.com/ashureev/connsolve/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	archiveTimeout   = 5 * time.Second
	defaultRecommend = 30 * time.Second
)

// Deps are the collaborators the handlers need. Archive and Hub are
// optional.
type Deps struct {
	Sessions         *session.Store
	Recommender      *recommend.Orchestrator
	Archive          store.Archive
	Hub              *live.Hub
	RecommendTimeout time.Duration
	Logger           *slog.Logger
}

// Handler serves the API.
type Handler struct {
	sessions         *session.Store
	recommender      *recommend.Orchestrator
	archive          store.Archive
	hub              *live.Hub
	recommendTimeout time.Duration
	logger           *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.RecommendTimeout
	if timeout <= 0 {
		timeout = defaultRecommend
	}
	return &Handler{
		sessions:         d.Sessions,
		recommender:      d.Recommender,
		archive:          d.Archive,
		hub:              d.Hub,
		recommendTimeout: timeout,
		logger:           logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorBody is the wire form of a *domain.Error.
type errorBody struct {
	Error     string            `json:"error"`
	Code      domain.Code       `json:"code"`
	Strategy  string            `json:"strategy,omitempty"`
	CauseType string            `json:"cause_type,omitempty"`
	Available []string          `json:"available,omitempty"`
	Rules     []string          `json:"rules,omitempty"`
	Candidate *domain.Candidate `json:"candidate,omitempty"`
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidInput, domain.CodeInsufficientWords, domain.CodeLatestSessionDisabled:
		return http.StatusBadRequest
	case domain.CodeSessionNotFound:
		return http.StatusNotFound
	case domain.CodeStrategyUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeStrategyFailure, domain.CodeMalformedResponse:
		return http.StatusBadGateway
	case domain.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err, preserving domain error codes and details.
func (h *Handler) WriteError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		h.logger.Error("Unhandled error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := StatusFor(de.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed", "code", de.Code, "strategy", de.Strategy, "error", err)
	}
	JSON(w, status, errorBody{
		Error:     de.Error(),
		Code:      de.Code,
		Strategy:  de.Strategy,
		CauseType: de.CauseType,
		Available: de.Available,
		Rules:     de.Rules,
		Candidate: de.Candidate,
	})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.InvalidInput("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) publish(sess *domain.Session) {
	if h.hub != nil && sess != nil {
		h.hub.Publish(sess.Snapshot())
	}
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, domain.InvalidInput("invalid limit %q", s)
	}
	return n, nil
}
