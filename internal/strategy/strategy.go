// Package strategy defines the interchangeable recommendation backends and
// the registry the orchestrator selects them from.
package strategy

import (
	"context"
	"errors"

	"github.com/ashureev/connsolve/internal/domain"
)

// ErrMalformed marks a backend answer that arrived but could not be decoded.
// Strategies wrap it so callers can tell a bad answer from an unreachable
// backend.
var ErrMalformed = errors.New("malformed strategy response")

// Strategy produces one recommendation for a set of remaining words.
type Strategy interface {
	// Name is the strategy identity used for routing and provenance.
	Name() string
	// Model names the underlying model, or "" for local strategies.
	Model() string
	// Generate blocks until the backend answers. It has no internal timeout;
	// the caller bounds it through ctx.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is what a strategy sees. Words are already authoritative.
type Request struct {
	Words    []string
	Attempts []domain.Attempt
	Context  string
}

// IncorrectAttempts returns prior guesses that cost a mistake.
func (r Request) IncorrectAttempts() []domain.Attempt {
	var out []domain.Attempt
	for _, a := range r.Attempts {
		if a.Outcome.IsMistake() {
			out = append(out, a)
		}
	}
	return out
}

// Response carries either a structured candidate or a raw payload decoded
// from the backend. The orchestrator normalizes Payload into a candidate.
type Response struct {
	Candidate *domain.Candidate
	Payload   map[string]any
}
