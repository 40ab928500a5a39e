package domain

import (
	"fmt"
	"time"
)

// Outcome is the puzzle's verdict on a guess.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeOneAway   Outcome = "one_away"
)

// ParseOutcome accepts the wire spellings of an outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch NormalizeWord(s) {
	case "correct":
		return OutcomeCorrect, nil
	case "incorrect", "wrong":
		return OutcomeIncorrect, nil
	case "one_away", "one-away", "oneaway":
		return OutcomeOneAway, nil
	default:
		return "", InvalidInput("unknown outcome %q", s)
	}
}

// IsMistake reports whether the outcome consumes the mistake budget.
func (o Outcome) IsMistake() bool {
	return o == OutcomeIncorrect || o == OutcomeOneAway
}

// Attempt is one recorded guess.
type Attempt struct {
	Words          []string  `json:"words"`
	Outcome        Outcome   `json:"outcome"`
	Timestamp      time.Time `json:"timestamp"`
	WasRecommended bool      `json:"was_recommended"`
}

// String renders the attempt compactly for prompts and logs.
func (a Attempt) String() string {
	return fmt.Sprintf("%v -> %s", a.Words, a.Outcome)
}
