// Package recommend routes recommendation requests to a strategy, enforces
// server-authoritative board state, and gates every answer through the
// validation engine.
package recommend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/session"
	"github.com/ashureev/connsolve/internal/strategy"
	"github.com/ashureev/connsolve/internal/validation"
)

// Request is one recommendation request.
type Request struct {
	// StrategyID selects the backend; empty uses the orchestrator default.
	StrategyID string
	// SessionID targets a session. When set, its remaining words and
	// attempts replace Words and PriorAttempts.
	SessionID string
	// Words is the client's view of the remaining board, used only when no
	// session is resolved.
	Words         []string
	PriorAttempts []domain.Attempt
	Context       string
}

// Result is a validated recommendation.
type Result struct {
	Candidate *domain.Candidate   `json:"candidate"`
	Verdict   validation.Verdict `json:"validation"`
	// Corrected is true when auto-correction changed the candidate.
	Corrected bool   `json:"corrected"`
	SessionID string `json:"session_id,omitempty"`
}

// StrategyInfo lists strategies for clients.
type StrategyInfo struct {
	Default    string   `json:"default"`
	Configured []string `json:"configured"`
	Available  []string `json:"available"`
}

// Config holds the orchestrator's collaborators.
type Config struct {
	// Sessions may be nil for sessionless use such as the CLI.
	Sessions        *session.Store
	Strategies      *strategy.Registry
	Engine          *validation.Engine
	DefaultStrategy string
	Logger          *slog.Logger
}

// Orchestrator implements the recommendation pipeline. It holds no state of
// its own and is safe for concurrent use.
type Orchestrator struct {
	sessions        *session.Store
	strategies      *strategy.Registry
	engine          *validation.Engine
	defaultStrategy string
	logger          *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = validation.NewEngine()
	}
	return &Orchestrator{
		sessions:        cfg.Sessions,
		strategies:      cfg.Strategies,
		engine:          engine,
		defaultStrategy: cfg.DefaultStrategy,
		logger:          logger,
	}
}

// ListStrategies reports configured and currently instantiable strategies.
func (o *Orchestrator) ListStrategies() StrategyInfo {
	return StrategyInfo{
		Default:    o.defaultStrategy,
		Configured: o.strategies.Configured(),
		Available:  o.strategies.Available(),
	}
}

// Recommend produces one validated recommendation. The caller bounds it
// through ctx; an expired deadline surfaces as a timeout error.
func (o *Orchestrator) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	sess, err := o.resolveSession(req.SessionID)
	if err != nil {
		return nil, err
	}

	words := domain.NormalizeWords(req.Words)
	attempts := req.PriorAttempts
	var validationPrior []domain.Attempt
	if sess != nil {
		words = sess.RemainingWords()
		attempts = sess.Attempts
		validationPrior = sess.Attempts
	}

	if len(words) < domain.GroupSize {
		return nil, domain.InsufficientWords(len(words))
	}
	if domain.HasDuplicates(words) {
		return nil, domain.InvalidInput("word list contains duplicates")
	}
	for _, w := range words {
		if w == "" {
			return nil, domain.InvalidInput("word list contains an empty word")
		}
	}

	id := strings.TrimSpace(req.StrategyID)
	if id == "" {
		id = o.defaultStrategy
	}
	strat, err := o.strategies.Resolve(id)
	if err != nil {
		return nil, domain.StrategyUnavailable(id, o.strategies.Available(), err)
	}

	resp, err := strat.Generate(ctx, strategy.Request{Words: words, Attempts: attempts, Context: req.Context})
	if err != nil {
		return nil, o.translate(ctx, id, err)
	}

	cand, err := normalizeResponse(id, resp)
	if err != nil {
		return nil, err
	}
	if cand.Strategy == "" {
		cand.Strategy = strat.Name()
	}
	if cand.Model == "" {
		cand.Model = strat.Model()
	}

	verdict := o.engine.Validate(cand, validationPrior)
	corrected := false
	if !verdict.Valid {
		rem := validation.Remediate(cand, verdict)
		if rem.Outcome == validation.Rejected {
			o.logger.Warn("Recommendation rejected",
				"strategy", id,
				"session_id", req.SessionID,
				"rules", rem.Reasons,
				"overall", verdict.Overall)
			return nil, domain.ValidationFailed(id, rem.Reasons, cand)
		}
		cand = rem.Candidate
		corrected = rem.Changed
		verdict = o.engine.Validate(cand, validationPrior)
		o.logger.Warn("Recommendation below quality threshold",
			"strategy", id,
			"session_id", req.SessionID,
			"corrected", corrected,
			"overall", verdict.Overall)
	}

	res := &Result{Candidate: cand, Verdict: verdict, Corrected: corrected}
	if sess != nil {
		res.SessionID = sess.ID
		if err := o.sessions.SetLastRecommendation(sess.ID, cand.Words, cand.Strategy, cand.Model); err != nil {
			return nil, err
		}
	}

	o.logger.Info("Recommendation issued",
		"strategy", id,
		"session_id", res.SessionID,
		"words", cand.Words,
		"overall", verdict.Overall,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// resolveSession returns the targeted session, the latest session when the
// deprecated shortcut is enabled, or nil for sessionless requests.
func (o *Orchestrator) resolveSession(id string) (*domain.Session, error) {
	if o.sessions == nil {
		if id != "" {
			return nil, domain.SessionNotFound(id)
		}
		return nil, nil
	}
	if id != "" {
		return o.sessions.Get(id)
	}
	if !o.sessions.LatestEnabled() {
		return nil, nil
	}
	sess, err := o.sessions.Latest()
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	return sess, err
}

// translate maps a strategy error onto the domain taxonomy. Structured
// domain errors pass through first, then deadlines, then undecodable
// answers; anything else is a provider failure.
func (o *Orchestrator) translate(ctx context.Context, id string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		o.logger.Warn("Strategy timed out", "strategy", id, "error", err)
		return domain.Timeout(id, err)
	}
	if errors.Is(err, strategy.ErrMalformed) {
		o.logger.Warn("Strategy answered with an undecodable response", "strategy", id, "error", err)
		return domain.MalformedResponse(id, err.Error())
	}
	o.logger.Error("Strategy failed", "strategy", id, "error", err)
	return domain.StrategyFailure(id, err)
}
