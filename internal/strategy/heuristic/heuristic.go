// Package heuristic implements the offline baseline strategy: it scores
// every four-word combination of the remaining words against static
// category and spelling-pattern tables.
package heuristic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/strategy"
)

// Name is the strategy identity.
const Name = "heuristic"

// Signal weights.
const (
	weightCategory = 5.0
	weightPattern  = 3.0
	weightLength   = 1.0
	weightAlpha    = 0.5
	weightOverlap  = 2.0
	weightAvoid    = 1.0

	penaltyExact = 10.0
	penaltyThree = 3.0
	penaltyTwo   = 1.0

	// minCategoryHits is how many words must share a category to count.
	minCategoryHits = 3
	// maxAlphaGap is the widest spread of first letters that still clusters.
	maxAlphaGap = 3

	fallbackConfidence = 0.1
	confidenceScale    = 10.0
)

// Config configures a Generator.
type Config struct {
	// Tables defaults to the embedded tables.
	Tables *Tables
	// Rand drives the random fallback. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Generator is the heuristic strategy. It never fails and is safe for
// concurrent use.
type Generator struct {
	tables *Tables
	index  map[string][]string

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

var _ strategy.Strategy = (*Generator)(nil)

// New builds a generator.
func New(cfg Config) *Generator {
	t := cfg.Tables
	if t == nil {
		t = DefaultTables()
	}
	rng := cfg.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{tables: t, index: t.index(), rng: rng}
}

func (g *Generator) Name() string  { return Name }
func (g *Generator) Model() string { return "" }

// Generate picks the highest-scoring combination of the request's words.
func (g *Generator) Generate(_ context.Context, req strategy.Request) (strategy.Response, error) {
	start := time.Now()
	words := domain.NormalizeWords(req.Words)
	incorrect := req.IncorrectAttempts()

	c := g.best(words, incorrect)
	c.Strategy = Name
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	c.LatencyMS = &elapsed
	return strategy.Response{Candidate: c}, nil
}

func (g *Generator) best(words []string, incorrect []domain.Attempt) *domain.Candidate {
	n := len(words)
	if n < domain.GroupSize {
		return &domain.Candidate{
			Words:       words,
			Explanation: "Not enough words left to form a group.",
			Confidence:  domain.Float(fallbackConfidence),
		}
	}

	var (
		bestScore float64
		bestCombo []string
		bestWhy   string
	)
	combo := make([]string, domain.GroupSize)
	for i := 0; i < n-3; i++ {
		for j := i + 1; j < n-2; j++ {
			for k := j + 1; k < n-1; k++ {
				for l := k + 1; l < n; l++ {
					combo[0], combo[1], combo[2], combo[3] = words[i], words[j], words[k], words[l]
					s, why := g.score(combo, incorrect)
					if s > bestScore {
						bestScore = s
						bestCombo = append(bestCombo[:0], combo...)
						bestWhy = why
					}
				}
			}
		}
	}

	if bestScore <= 0 {
		return g.randomGuess(words)
	}
	return &domain.Candidate{
		Words:       bestCombo,
		Explanation: bestWhy,
		Confidence:  domain.Float(min(bestScore/confidenceScale, 1)),
	}
}

func (g *Generator) randomGuess(words []string) *domain.Candidate {
	g.mu.Lock()
	perm := g.rng.Perm(len(words))
	g.mu.Unlock()
	pick := make([]string, domain.GroupSize)
	for i := range pick {
		pick[i] = words[perm[i]]
	}
	return &domain.Candidate{
		Words:       pick,
		Explanation: "No strong connection stood out, so this is a best-effort guess.",
		Confidence:  domain.Float(fallbackConfidence),
	}
}

// score returns the weighted, floored score of one combination and a short
// explanation of its strongest signal.
func (g *Generator) score(combo []string, incorrect []domain.Attempt) (float64, string) {
	category, catName := g.categoryMatch(combo)
	pattern, patWhy := g.patternSimilarity(combo)

	total := weightCategory*category +
		weightPattern*pattern +
		weightLength*lengthSimilarity(combo) +
		weightAlpha*alphaCluster(combo) -
		weightOverlap*overlapPenalty(combo, incorrect) +
		weightAvoid*avoidance(combo, incorrect)
	if total < 0 {
		total = 0
	}

	var why string
	switch {
	case category > 0 && weightCategory*category >= weightPattern*pattern:
		why = fmt.Sprintf("%s of these words are %s.", countWord(int(category*domain.GroupSize)), humanize(catName))
	case pattern > 0:
		why = patWhy
	default:
		why = "These words share similar length and spelling."
	}
	return total, why
}

func (g *Generator) categoryMatch(combo []string) (float64, string) {
	hits := make(map[string]int)
	for _, w := range combo {
		for _, c := range g.index[w] {
			hits[c]++
		}
	}
	best, name := 0, ""
	for c, n := range hits {
		if n > best || (n == best && c < name) {
			best, name = n, c
		}
	}
	if best < minCategoryHits {
		return 0, ""
	}
	return float64(best) / domain.GroupSize, name
}

func (g *Generator) patternSimilarity(combo []string) (float64, string) {
	var best float64
	var why string

	try := func(n int, desc string) {
		if n < minCategoryHits {
			return
		}
		if s := float64(n) / domain.GroupSize; s > best {
			best, why = s, desc
		}
	}

	for _, suf := range g.tables.Suffixes {
		n := 0
		for _, w := range combo {
			if len(w) > len(suf)+1 && strings.HasSuffix(w, suf) {
				n++
			}
		}
		try(n, fmt.Sprintf("These words share the ending %q.", "-"+suf))
	}
	for _, pre := range g.tables.Prefixes {
		n := 0
		for _, w := range combo {
			if len(w) > len(pre)+1 && strings.HasPrefix(w, pre) {
				n++
			}
		}
		try(n, fmt.Sprintf("These words share the beginning %q.", pre+"-"))
	}

	rhymes := make(map[string]int)
	for _, w := range combo {
		if len(w) >= 3 {
			rhymes[w[len(w)-2:]]++
		}
	}
	for tail, n := range rhymes {
		try(n, fmt.Sprintf("These words rhyme on %q.", tail))
	}
	return best, why
}

func lengthSimilarity(combo []string) float64 {
	counts := make(map[int]int)
	mode := 0
	for _, w := range combo {
		counts[len(w)]++
		mode = max(mode, counts[len(w)])
	}
	return float64(mode) / domain.GroupSize
}

func alphaCluster(combo []string) float64 {
	lo, hi := byte(255), byte(0)
	for _, w := range combo {
		if w == "" {
			return 0
		}
		lo, hi = min(lo, w[0]), max(hi, w[0])
	}
	if int(hi)-int(lo) <= maxAlphaGap {
		return 1
	}
	return 0
}

func overlapPenalty(combo []string, incorrect []domain.Attempt) float64 {
	var p float64
	for _, a := range incorrect {
		switch overlap(combo, a.Words) {
		case 4:
			p += penaltyExact
		case 3:
			p += penaltyThree
		case 2:
			p += penaltyTwo
		}
	}
	return p
}

func avoidance(combo []string, incorrect []domain.Attempt) float64 {
	if len(incorrect) == 0 {
		return 1
	}
	seen := 0
	for _, a := range incorrect {
		seen += overlap(combo, a.Words)
	}
	return 1 - float64(seen)/float64(domain.GroupSize*len(incorrect))
}

func overlap(a, b []string) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == domain.NormalizeWord(y) {
				n++
				break
			}
		}
	}
	return n
}

func countWord(n int) string {
	switch n {
	case 4:
		return "All four"
	case 3:
		return "Three"
	default:
		return fmt.Sprintf("%d", n)
	}
}

func humanize(category string) string {
	return strings.ReplaceAll(category, "_", " ")
}
