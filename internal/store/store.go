// Package store persists finished games.
package store

import (
	"context"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
)

// GameRecord is the archived form of a finished session.
type GameRecord struct {
	SessionID    string           `json:"session_id"`
	Fingerprint  string           `json:"fingerprint"`
	Words        []string         `json:"words"`
	Groups       []domain.Group   `json:"groups"`
	Attempts     []domain.Attempt `json:"attempts"`
	Won          bool             `json:"won"`
	Mistakes     int              `json:"mistakes"`
	OneAwayCount int              `json:"one_away_count"`
	Strategy     string           `json:"strategy,omitempty"`
	Model        string           `json:"model,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// NewGameRecord captures a session for archival.
func NewGameRecord(s *domain.Session) *GameRecord {
	c := s.Clone()
	rec := &GameRecord{
		SessionID:    c.ID,
		Fingerprint:  c.Fingerprint,
		Words:        c.Words,
		Groups:       c.Groups,
		Attempts:     c.Attempts,
		Won:          c.Won,
		Mistakes:     c.Mistakes,
		OneAwayCount: c.OneAwayCount,
		StartedAt:    c.CreatedAt,
		FinishedAt:   c.UpdatedAt,
	}
	if c.Provenance != nil {
		rec.Strategy = c.Provenance.Strategy
		rec.Model = c.Provenance.Model
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	return rec
}

// Archive defines the interface for persisting finished games.
type Archive interface {
	// SaveGame stores a record. Saving the same session twice replaces it.
	SaveGame(ctx context.Context, rec *GameRecord) error

	// GetGame returns the most recent game played on the board with the
	// given fingerprint, or nil if there is none.
	GetGame(ctx context.Context, fingerprint string) (*GameRecord, error)

	// ListGames returns up to limit games, newest first.
	ListGames(ctx context.Context, limit int) ([]*GameRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
