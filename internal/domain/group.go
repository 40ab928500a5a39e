package domain

import (
	"slices"
	"strings"
)

// GroupSize is the number of words in every group and every guess.
const GroupSize = 4

// MaxGroups is the number of hidden groups in a puzzle.
const MaxGroups = 4

// DefaultDifficulty is assigned to groups confirmed during play.
const DefaultDifficulty = 1

// GroupKind distinguishes how a group came to exist.
type GroupKind string

const (
	// GroupPredefined groups were seeded when the session was created.
	GroupPredefined GroupKind = "predefined"
	// GroupUserConfirmed groups were synthesized from a correct guess that
	// matched no seeded group.
	GroupUserConfirmed GroupKind = "user_confirmed"
)

// Color tags shown by the puzzle for a solved group.
const (
	ColorYellow = "yellow"
	ColorGreen  = "green"
	ColorBlue   = "blue"
	ColorPurple = "purple"
)

// Group is a set of four words sharing a hidden connection.
type Group struct {
	Kind       GroupKind `json:"kind"`
	Label      string    `json:"label"`
	Words      []string  `json:"words"`
	Difficulty int       `json:"difficulty"`
	Found      bool      `json:"found"`
	Color      string    `json:"color,omitempty"`
}

// GroupSeed describes a group known before play begins.
type GroupSeed struct {
	Label      string   `json:"label"`
	Words      []string `json:"words"`
	Difficulty int      `json:"difficulty"`
}

// Matches reports whether words (already normalized) equal the group's set.
func (g *Group) Matches(words []string) bool {
	return SameWordSet(g.Words, words)
}

// NormalizeWord trims and lower-cases a single word.
func NormalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// NormalizeWords normalizes every word, preserving order.
func NormalizeWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = NormalizeWord(w)
	}
	return out
}

// SameWordSet compares two word lists as sets, ignoring order and case.
func SameWordSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := sortedKey(a)
	y := sortedKey(b)
	return slices.Equal(x, y)
}

// HasDuplicates reports whether words repeat case-insensitively.
func HasDuplicates(words []string) bool {
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		k := NormalizeWord(w)
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
	}
	return false
}

func sortedKey(words []string) []string {
	out := NormalizeWords(words)
	slices.Sort(out)
	return out
}
