// Package session owns the in-memory registry of puzzle sessions.
package session

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/google/uuid"
)

// Options configures a Store.
type Options struct {
	// AllowLatest enables the deprecated "most recently created session"
	// accessor for single-game deployments.
	AllowLatest bool
	Logger      *slog.Logger
}

// Store holds every session for the lifetime of the process. Each method
// runs as one critical section under a single coarse lock, and sessions
// leave the store only as deep copies.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	order    []string
	latest   string
	opts     Options
	log      *slog.Logger
	newID    func() string
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*domain.Session),
		opts:     opts,
		log:      logger,
		newID:    uuid.NewString,
	}
}

// AttemptInput describes one guess to record.
type AttemptInput struct {
	// Words may be empty, in which case the session's last recommendation
	// is used and the attempt is marked as recommended.
	Words          []string
	Outcome        domain.Outcome
	WasRecommended bool
	Color          string
}

// AttemptResult reports what RecordAttempt did.
type AttemptResult struct {
	Session *domain.Session
	// Recorded is false when the attempt duplicated an earlier one.
	Recorded bool
	// Finished is true when this attempt moved the game to a terminal state.
	Finished bool
}

// Create validates the board and registers a new session.
func (s *Store) Create(words []string, seeds ...domain.GroupSeed) (*domain.Session, error) {
	sess, err := domain.NewSession(s.newID(), words, seeds)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	s.latest = sess.ID

	s.log.Info("Session created", "session_id", sess.ID, "fingerprint", sess.Fingerprint, "seeded_groups", len(seeds))
	return sess.Clone(), nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.SessionNotFound(id)
	}
	return sess.Clone(), nil
}

// Latest returns the most recently created session that still exists.
//
// Deprecated: callers should pass explicit session identifiers. Latest only
// works when the store was built with Options.AllowLatest.
func (s *Store) Latest() (*domain.Session, error) {
	if !s.opts.AllowLatest {
		return nil, &domain.Error{
			Code:    domain.CodeLatestSessionDisabled,
			Message: "implicit latest-session targeting is disabled; pass a session id",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == "" {
		return nil, domain.SessionNotFound("latest")
	}
	sess, ok := s.sessions[s.latest]
	if !ok {
		return nil, domain.SessionNotFound(s.latest)
	}
	return sess.Clone(), nil
}

// LatestEnabled reports whether Latest may be used.
func (s *Store) LatestEnabled() bool {
	return s.opts.AllowLatest
}

// List returns copies of every session in creation order.
func (s *Store) List() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].Clone())
	}
	return out
}

// Remove deletes a session. Removing an unknown id reports not found.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.SessionNotFound(id)
	}
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	if s.latest == id {
		s.latest = ""
		if n := len(s.order); n > 0 {
			s.latest = s.order[n-1]
		}
	}

	s.log.Info("Session removed", "session_id", id)
	return nil
}

// RecordAttempt advances the session's state machine with one guess.
func (s *Store) RecordAttempt(id string, in AttemptInput) (AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return AttemptResult{}, domain.SessionNotFound(id)
	}

	words := in.Words
	wasRecommended := in.WasRecommended
	if len(words) == 0 {
		if len(sess.LastRecommendation) == 0 {
			return AttemptResult{}, domain.InvalidInput("no words given and no recommendation has been issued")
		}
		words = slices.Clone(sess.LastRecommendation)
		wasRecommended = true
	}
	if err := validateAttempt(words, in.Outcome); err != nil {
		return AttemptResult{}, err
	}

	wasOver := sess.IsGameOver()
	recorded := sess.RecordAttempt(words, in.Outcome, wasRecommended, in.Color)
	finished := !wasOver && sess.IsGameOver()

	if !recorded {
		s.log.Debug("Duplicate attempt ignored", "session_id", id, "outcome", in.Outcome)
	} else {
		s.log.Info("Attempt recorded",
			"session_id", id,
			"outcome", in.Outcome,
			"was_recommended", wasRecommended,
			"mistakes", sess.Mistakes,
			"groups_found", sess.GroupsFoundCount(),
			"state", sess.State())
	}

	return AttemptResult{Session: sess.Clone(), Recorded: recorded, Finished: finished}, nil
}

// SetLastRecommendation stores the words most recently issued to the player
// together with the strategy that produced them.
func (s *Store) SetLastRecommendation(id string, words []string, strategy, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.SessionNotFound(id)
	}
	now := time.Now()
	sess.LastRecommendation = domain.NormalizeWords(words)
	sess.Provenance = &domain.Provenance{Strategy: strategy, Model: model, At: now}
	sess.UpdatedAt = now
	return nil
}

// RemainingWords returns the unsolved words of a session in board order.
func (s *Store) RemainingWords(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.SessionNotFound(id)
	}
	return sess.RemainingWords(), nil
}

// IsGameOver reports whether the session reached a terminal state.
func (s *Store) IsGameOver(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, domain.SessionNotFound(id)
	}
	return sess.IsGameOver(), nil
}

func validateAttempt(words []string, outcome domain.Outcome) error {
	switch outcome {
	case domain.OutcomeCorrect, domain.OutcomeIncorrect, domain.OutcomeOneAway:
	default:
		return domain.InvalidInput("unknown outcome %q", outcome)
	}
	if len(words) != domain.GroupSize {
		return domain.InvalidInput("a guess needs exactly %d words, got %d", domain.GroupSize, len(words))
	}
	if domain.HasDuplicates(words) {
		return domain.InvalidInput("a guess cannot repeat words")
	}
	return nil
}
