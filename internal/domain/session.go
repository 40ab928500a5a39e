// Package domain contains core domain types for the puzzle assistant.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// PuzzleSize is the number of words on the board.
const PuzzleSize = 16

// MaxMistakes is the mistake budget of one puzzle.
const MaxMistakes = 4

// State is the lifecycle state of a session.
type State string

const (
	StateActive State = "active"
	StateWon    State = "won"
	StateLost   State = "lost"
)

// Provenance records which strategy last served a session.
type Provenance struct {
	Strategy string    `json:"strategy"`
	Model    string    `json:"model,omitempty"`
	At       time.Time `json:"at"`
}

// Session holds the state of one puzzle in progress.
type Session struct {
	ID          string
	Fingerprint string
	Words       []string
	Groups      []Group
	Attempts    []Attempt
	Mistakes    int
	MaxMistakes int
	// OneAwayCount is the subset of Mistakes that were one-away guesses.
	OneAwayCount       int
	Completed          bool
	Won                bool
	LastRecommendation []string
	Provenance         *Provenance
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSession validates the board and builds an active session.
func NewSession(id string, words []string, seeds []GroupSeed) (*Session, error) {
	if len(words) != PuzzleSize {
		return nil, InvalidInput("a puzzle needs exactly %d words, got %d", PuzzleSize, len(words))
	}
	normalized := NormalizeWords(words)
	seen := make(map[string]struct{}, len(normalized))
	for _, w := range normalized {
		if w == "" {
			return nil, InvalidInput("words must be non-empty")
		}
		if _, ok := seen[w]; ok {
			return nil, InvalidInput("duplicate word %q", w)
		}
		seen[w] = struct{}{}
	}

	groups, err := seedGroups(seeds, seen)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		ID:          id,
		Fingerprint: Fingerprint(normalized),
		Words:       normalized,
		Groups:      groups,
		MaxMistakes: MaxMistakes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func seedGroups(seeds []GroupSeed, board map[string]struct{}) ([]Group, error) {
	if len(seeds) > MaxGroups {
		return nil, InvalidInput("at most %d groups can be seeded, got %d", MaxGroups, len(seeds))
	}
	used := make(map[string]struct{})
	groups := make([]Group, 0, len(seeds))
	for i, s := range seeds {
		words := NormalizeWords(s.Words)
		if len(words) != GroupSize {
			return nil, InvalidInput("group %d needs %d words, got %d", i+1, GroupSize, len(words))
		}
		for _, w := range words {
			if _, ok := board[w]; !ok {
				return nil, InvalidInput("group %d word %q is not on the board", i+1, w)
			}
			if _, ok := used[w]; ok {
				return nil, InvalidInput("word %q belongs to more than one group", w)
			}
			used[w] = struct{}{}
		}
		difficulty := s.Difficulty
		if difficulty <= 0 {
			difficulty = DefaultDifficulty
		}
		label := strings.TrimSpace(s.Label)
		if label == "" {
			label = fmt.Sprintf("group %d", i+1)
		}
		groups = append(groups, Group{
			Kind:       GroupPredefined,
			Label:      label,
			Words:      words,
			Difficulty: difficulty,
		})
	}
	return groups, nil
}

// Fingerprint derives a stable identifier from the board contents. It is
// independent of word order and case.
func Fingerprint(words []string) string {
	key := sortedKey(words)
	sum := sha256.Sum256([]byte(strings.Join(key, "\n")))
	return hex.EncodeToString(sum[:16])
}

// State returns the lifecycle state derived from the completion flags.
func (s *Session) State() State {
	switch {
	case s.Won:
		return StateWon
	case s.Completed:
		return StateLost
	default:
		return StateActive
	}
}

// IsGameOver reports whether the session reached a terminal state.
func (s *Session) IsGameOver() bool {
	return s.Completed
}

// FoundGroups returns the groups solved so far, in discovery order of the
// group list.
func (s *Session) FoundGroups() []Group {
	var out []Group
	for _, g := range s.Groups {
		if g.Found {
			out = append(out, g)
		}
	}
	return out
}

// GroupsFoundCount is the number of solved groups.
func (s *Session) GroupsFoundCount() int {
	n := 0
	for _, g := range s.Groups {
		if g.Found {
			n++
		}
	}
	return n
}

// TotalGuesses is the number of recorded attempts.
func (s *Session) TotalGuesses() int {
	return len(s.Attempts)
}

// RemainingWords lists words not yet in a found group, in board order.
func (s *Session) RemainingWords() []string {
	found := s.foundWords()
	out := make([]string, 0, len(s.Words))
	for _, w := range s.Words {
		if _, ok := found[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}

func (s *Session) foundWords() map[string]struct{} {
	found := make(map[string]struct{}, len(s.Words))
	for _, g := range s.Groups {
		if !g.Found {
			continue
		}
		for _, w := range g.Words {
			found[w] = struct{}{}
		}
	}
	return found
}

// HasAttempt reports whether an attempt with the same word set and outcome
// was already recorded.
func (s *Session) HasAttempt(words []string, outcome Outcome) bool {
	for _, a := range s.Attempts {
		if a.Outcome == outcome && SameWordSet(a.Words, words) {
			return true
		}
	}
	return false
}

// RecordAttempt advances the state machine with one guess. It returns false
// when the attempt duplicates an earlier one and nothing changed.
//
// Attempts are still accepted after the game is over; callers are expected
// to treat a completed session as closed.
func (s *Session) RecordAttempt(words []string, outcome Outcome, wasRecommended bool, color string) bool {
	words = NormalizeWords(words)
	if s.HasAttempt(words, outcome) {
		return false
	}

	now := time.Now()
	s.Attempts = append(s.Attempts, Attempt{
		Words:          words,
		Outcome:        outcome,
		Timestamp:      now,
		WasRecommended: wasRecommended,
	})

	switch {
	case outcome == OutcomeCorrect:
		s.confirmGroup(words, NormalizeWord(color))
	case outcome.IsMistake():
		if s.Mistakes < s.MaxMistakes {
			s.Mistakes++
		}
		if outcome == OutcomeOneAway {
			s.OneAwayCount++
		}
	}

	s.refreshCompletion()
	s.UpdatedAt = now
	return true
}

// confirmGroup marks the matching unfound group as found, or synthesizes a
// new one. A word never ends up in two found groups, and a synthesized group
// never takes words reserved by an unfound seeded group.
func (s *Session) confirmGroup(words []string, color string) {
	if len(words) != GroupSize || HasDuplicates(words) {
		return
	}
	found := s.foundWords()
	for _, w := range words {
		if _, ok := found[w]; ok {
			return
		}
	}

	reserved := make(map[string]struct{})
	for i := range s.Groups {
		g := &s.Groups[i]
		if g.Found {
			continue
		}
		if g.Matches(words) {
			g.Found = true
			if color != "" {
				g.Color = color
			}
			return
		}
		for _, w := range g.Words {
			reserved[NormalizeWord(w)] = struct{}{}
		}
	}

	if len(s.Groups) >= MaxGroups {
		return
	}
	board := make(map[string]struct{}, len(s.Words))
	for _, w := range s.Words {
		board[w] = struct{}{}
	}
	for _, w := range words {
		if _, ok := board[w]; !ok {
			return
		}
		if _, ok := reserved[w]; ok {
			return
		}
	}
	s.Groups = append(s.Groups, Group{
		Kind:       GroupUserConfirmed,
		Label:      fmt.Sprintf("confirmed group %d", len(s.Groups)+1),
		Words:      slices.Clone(words),
		Difficulty: DefaultDifficulty,
		Found:      true,
		Color:      color,
	})
}

func (s *Session) refreshCompletion() {
	if s.Completed {
		return
	}
	switch {
	case s.GroupsFoundCount() >= MaxGroups:
		s.Completed = true
		s.Won = true
	case s.Mistakes >= s.MaxMistakes:
		s.Completed = true
	}
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Words = slices.Clone(s.Words)
	out.Groups = make([]Group, len(s.Groups))
	for i, g := range s.Groups {
		g.Words = slices.Clone(g.Words)
		out.Groups[i] = g
	}
	out.Attempts = make([]Attempt, len(s.Attempts))
	for i, a := range s.Attempts {
		a.Words = slices.Clone(a.Words)
		out.Attempts[i] = a
	}
	out.LastRecommendation = slices.Clone(s.LastRecommendation)
	if s.Provenance != nil {
		p := *s.Provenance
		out.Provenance = &p
	}
	return &out
}

// Snapshot is the serializable view of a session.
type Snapshot struct {
	ID                 string      `json:"id"`
	Fingerprint        string      `json:"fingerprint"`
	State              State       `json:"state"`
	Words              []string    `json:"words"`
	RemainingWords     []string    `json:"remaining_words"`
	Groups             []Group     `json:"groups"`
	Attempts           []Attempt   `json:"attempts"`
	Mistakes           int         `json:"mistakes"`
	MaxMistakes        int         `json:"max_mistakes"`
	OneAwayCount       int         `json:"one_away_count"`
	GroupsFound        int         `json:"groups_found"`
	TotalGuesses       int         `json:"total_guesses"`
	Completed          bool        `json:"completed"`
	Won                bool        `json:"won"`
	LastRecommendation []string    `json:"last_recommendation,omitempty"`
	Provenance         *Provenance `json:"provenance,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Snapshot renders the session for transport. Unfound seeded groups are
// omitted so the answer is not leaked to the client.
func (s *Session) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{
		ID:                 c.ID,
		Fingerprint:        c.Fingerprint,
		State:              c.State(),
		Words:              c.Words,
		RemainingWords:     c.RemainingWords(),
		Groups:             c.FoundGroups(),
		Attempts:           c.Attempts,
		Mistakes:           c.Mistakes,
		MaxMistakes:        c.MaxMistakes,
		OneAwayCount:       c.OneAwayCount,
		GroupsFound:        c.GroupsFoundCount(),
		TotalGuesses:       c.TotalGuesses(),
		Completed:          c.Completed,
		Won:                c.Won,
		LastRecommendation: c.LastRecommendation,
		Provenance:         c.Provenance,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
