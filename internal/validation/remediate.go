package validation

import (
	"strings"

	"github.com/ashureev/connsolve/internal/domain"
)

// AutoCorrectedSuffix marks explanations of candidates changed by Remediate.
const AutoCorrectedSuffix = "(auto-corrected)"

// Outcome is the decision of the remediation step.
type Outcome string

const (
	Corrected Outcome = "corrected"
	Rejected  Outcome = "rejected"
)

// Remediation is the auditable result of Remediate. Candidate is set when
// Outcome is Corrected; Reasons when it is Rejected.
type Remediation struct {
	Outcome   Outcome           `json:"outcome"`
	Candidate *domain.Candidate `json:"candidate,omitempty"`
	// Changed is true when correction altered the words.
	Changed bool     `json:"changed"`
	Reasons []string `json:"reasons,omitempty"`
}

// Remediate decides what to do with a candidate that did not pass
// validation. Critical failures are rejected outright. Otherwise the words
// are deduplicated case-insensitively and trimmed to four; the candidate is
// never padded with invented words.
//
// The input candidate is not modified. A candidate that already has four
// distinct words comes back unchanged.
func Remediate(c *domain.Candidate, v Verdict) Remediation {
	if c == nil {
		return Remediation{Outcome: Rejected, Reasons: []string{"no candidate"}}
	}
	if len(v.CriticalFailures) > 0 {
		return Remediation{Outcome: Rejected, Reasons: append([]string(nil), v.CriticalFailures...)}
	}

	out := c.Clone()
	words := dedupe(out.Words)
	if len(words) > domain.GroupSize {
		words = words[:domain.GroupSize]
	}
	if len(words) < domain.GroupSize {
		return Remediation{
			Outcome: Rejected,
			Reasons: []string{RuleWordCount, RuleWordUniqueness},
		}
	}

	changed := len(words) != len(out.Words)
	if !changed {
		for i := range words {
			if words[i] != out.Words[i] {
				changed = true
				break
			}
		}
	}
	if !changed {
		return Remediation{Outcome: Corrected, Candidate: out}
	}

	out.Words = words
	out.Explanation = strings.TrimSpace(strings.TrimSpace(out.Explanation) + " " + AutoCorrectedSuffix)
	return Remediation{Outcome: Corrected, Candidate: out, Changed: true}
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		k := domain.NormalizeWord(w)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	return out
}
