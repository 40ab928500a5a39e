// Package validation scores and gates recommendation candidates before they
// reach the player.
package validation

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/ashureev/connsolve/internal/domain"
)

// Rule names.
const (
	RuleWordCount          = "word_count"
	RuleWordUniqueness     = "word_uniqueness"
	RuleWordFormat         = "word_format"
	RuleExplanationQuality = "explanation_quality"
	RuleConfidenceRange    = "confidence_range"
	RuleNoRepetition       = "no_repetition"
)

const (
	// ValidThreshold is the minimum overall score of a valid candidate.
	ValidThreshold = 0.6
	// criticalThreshold is the score under which a critical rule fails.
	criticalThreshold = 0.5
	// suggestionThreshold is the score under which a rule yields a suggestion.
	suggestionThreshold = 0.8
)

// Rule is one weighted check over a candidate.
type Rule struct {
	Name     string
	Weight   float64
	Critical bool
	Score    func(c *domain.Candidate, prior []domain.Attempt) float64
	// Advice is shown when the rule scores below the suggestion threshold.
	Advice string
}

// Verdict is the result of validating one candidate.
type Verdict struct {
	Scores           map[string]float64 `json:"scores"`
	CriticalFailures []string           `json:"critical_failures,omitempty"`
	Overall          float64            `json:"overall"`
	Valid            bool               `json:"valid"`
	Suggestions      []string           `json:"suggestions,omitempty"`
	Summary          string             `json:"summary"`
}

// Engine applies a fixed, ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine with the default rules.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// DefaultRules returns the standard rule set. Weights sum to 1.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: RuleWordCount, Weight: 0.25, Critical: true,
			Score:  scoreWordCount,
			Advice: fmt.Sprintf("return exactly %d words", domain.GroupSize),
		},
		{
			Name: RuleWordUniqueness, Weight: 0.20, Critical: true,
			Score:  scoreWordUniqueness,
			Advice: "every recommended word must be distinct",
		},
		{
			Name: RuleWordFormat, Weight: 0.15,
			Score:  scoreWordFormat,
			Advice: "use plain alphabetic words of at least two letters",
		},
		{
			Name: RuleExplanationQuality, Weight: 0.15,
			Score:  scoreExplanation,
			Advice: "explain the shared connection in a full sentence",
		},
		{
			Name: RuleConfidenceRange, Weight: 0.10,
			Score:  scoreConfidence,
			Advice: "report a calibrated confidence between 0 and 1",
		},
		{
			Name: RuleNoRepetition, Weight: 0.15,
			Score:  scoreNoRepetition,
			Advice: "do not repeat a guess that was already tried",
		},
	}
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Validate scores a candidate against every rule.
func (e *Engine) Validate(c *domain.Candidate, prior []domain.Attempt) Verdict {
	if c == nil {
		c = &domain.Candidate{}
	}
	v := Verdict{Scores: make(map[string]float64, len(e.rules))}

	var weighted, total float64
	for _, r := range e.rules {
		score := clamp01(r.Score(c, prior))
		v.Scores[r.Name] = score
		weighted += score * r.Weight
		total += r.Weight
		if r.Critical && score < criticalThreshold {
			v.CriticalFailures = append(v.CriticalFailures, r.Name)
		}
		if score < suggestionThreshold && r.Advice != "" {
			v.Suggestions = append(v.Suggestions, fmt.Sprintf("%s: %s", r.Name, r.Advice))
		}
	}
	if total > 0 {
		v.Overall = weighted / total
	}
	v.Valid = len(v.CriticalFailures) == 0 && v.Overall >= ValidThreshold
	v.Summary = summarize(v)
	return v
}

func summarize(v Verdict) string {
	switch {
	case v.Valid:
		return fmt.Sprintf("valid recommendation (score %.2f)", v.Overall)
	case len(v.CriticalFailures) > 0:
		return fmt.Sprintf("invalid recommendation: critical failures in %s (score %.2f)",
			strings.Join(v.CriticalFailures, ", "), v.Overall)
	default:
		return fmt.Sprintf("invalid recommendation: score %.2f below %.2f", v.Overall, ValidThreshold)
	}
}

// QuickValidate is a cheap pre-check: exactly four distinct alphabetic
// words of more than one letter.
func QuickValidate(words []string) bool {
	if len(words) != domain.GroupSize || domain.HasDuplicates(words) {
		return false
	}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if len([]rune(w)) < 2 || !isAlpha(w) {
			return false
		}
	}
	return true
}

func scoreWordCount(c *domain.Candidate, _ []domain.Attempt) float64 {
	if len(c.Words) == domain.GroupSize {
		return 1
	}
	return 0
}

func scoreWordUniqueness(c *domain.Candidate, _ []domain.Attempt) float64 {
	if len(c.Words) == 0 || domain.HasDuplicates(c.Words) {
		return 0
	}
	return 1
}

func scoreWordFormat(c *domain.Candidate, _ []domain.Attempt) float64 {
	if len(c.Words) == 0 {
		return 0
	}
	ok := 0
	for _, w := range c.Words {
		w = domain.NormalizeWord(w)
		if _, common := commonWords[w]; common || (len([]rune(w)) >= 2 && isAlpha(w)) {
			ok++
		}
	}
	return float64(ok) / float64(len(c.Words))
}

func scoreExplanation(c *domain.Candidate, _ []domain.Attempt) float64 {
	text := strings.TrimSpace(c.Explanation)
	if text == "" {
		return 0
	}
	score := 0.5
	if len(text) >= 20 {
		score += 0.2
	}
	lower := strings.ToLower(text)
	for _, kw := range connectives {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}
	if len(strings.Fields(text)) >= 5 {
		score += 0.1
	}
	return score
}

func scoreConfidence(c *domain.Candidate, _ []domain.Attempt) float64 {
	if c.Confidence == nil {
		return 0.5
	}
	v := *c.Confidence
	switch {
	case v < 0 || v > 1:
		return 0
	case v < 0.05 || v > 0.99:
		return 0.7
	default:
		return 1
	}
}

func scoreNoRepetition(c *domain.Candidate, prior []domain.Attempt) float64 {
	repeats := 0
	for _, a := range prior {
		if domain.SameWordSet(a.Words, c.Words) {
			repeats++
		}
	}
	return 1 - 0.5*float64(repeats)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// commonWords are short or punctuated entries that still count as well formed.
var commonWords = map[string]struct{}{
	"a": {}, "i": {}, "o": {}, "x": {},
	"t-shirt": {}, "x-ray": {}, "e-mail": {}, "yo-yo": {}, "hip-hop": {},
	"rock'n'roll": {}, "o'clock": {},
}

var connectives = []string{
	"all", "each", "share", "shared", "category", "type", "kind",
	"every", "both", "common", "are", "can be", "related", "connected",
}
