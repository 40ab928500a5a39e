package domain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func boardWords() []string {
	return []string{
		"Bass", "Flounder", "Salmon", "Trout",
		"Piano", "Guitar", "Drum", "Flute",
		"Red", "Blue", "Green", "Yellow",
		"Apple", "Pear", "Plum", "Grape",
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("s1", boardWords(), nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func checkWordConservation(t *testing.T, s *Session) {
	t.Helper()
	total := len(s.RemainingWords())
	for _, g := range s.FoundGroups() {
		total += len(g.Words)
	}
	if total != PuzzleSize {
		t.Errorf("Expected remaining+found = %d, got %d", PuzzleSize, total)
	}
}

func TestNewSession_Normalizes(t *testing.T) {
	s := newTestSession(t)
	if s.Words[0] != "bass" {
		t.Errorf("Expected normalized word bass, got %q", s.Words[0])
	}
	if s.State() != StateActive {
		t.Errorf("Expected active state, got %s", s.State())
	}
	if s.MaxMistakes != MaxMistakes {
		t.Errorf("Expected max mistakes %d, got %d", MaxMistakes, s.MaxMistakes)
	}
}

func TestNewSession_RejectsBadBoards(t *testing.T) {
	tests := []struct {
		name  string
		words []string
	}{
		{"too few", boardWords()[:15]},
		{"too many", append(boardWords(), "extra")},
		{"duplicate ignoring case", append(boardWords()[:15], "BASS")},
		{"blank word", append(boardWords()[:15], "  ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession("x", tt.words, nil)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected invalid input error, got %v", err)
			}
		})
	}
}

func TestNewSession_SeedValidation(t *testing.T) {
	_, err := NewSession("x", boardWords(), []GroupSeed{{Words: []string{"bass", "trout", "salmon", "banana"}}})
	if CodeOf(err) != CodeInvalidInput {
		t.Errorf("Expected invalid_input for off-board seed, got %v", err)
	}

	_, err = NewSession("x", boardWords(), []GroupSeed{
		{Words: []string{"bass", "trout", "salmon", "flounder"}},
		{Words: []string{"bass", "piano", "drum", "flute"}},
	})
	if CodeOf(err) != CodeInvalidInput {
		t.Errorf("Expected invalid_input for overlapping seeds, got %v", err)
	}
}

func TestFingerprint_OrderAndCaseIndependent(t *testing.T) {
	a := boardWords()
	b := make([]string, len(a))
	for i := range a {
		b[len(a)-1-i] = "  " + a[i] + " "
	}
	b[0] = "GRAPE"
	if Fingerprint(a) != Fingerprint(b) {
		t.Errorf("Expected equal fingerprints for reordered boards")
	}
	if Fingerprint(a) == Fingerprint(append(a[:15:15], "kiwi")) {
		t.Errorf("Expected different fingerprint for a different board")
	}
}

func TestRecordAttempt_CorrectSynthesizesGroup(t *testing.T) {
	s := newTestSession(t)
	changed := s.RecordAttempt([]string{"Bass", "flounder", "SALMON", "trout"}, OutcomeCorrect, true, "Yellow")
	if !changed {
		t.Fatal("Expected attempt to be recorded")
	}
	if s.GroupsFoundCount() != 1 {
		t.Errorf("Expected 1 group found, got %d", s.GroupsFoundCount())
	}
	remaining := s.RemainingWords()
	if len(remaining) != 12 {
		t.Fatalf("Expected 12 remaining words, got %d", len(remaining))
	}
	for _, w := range remaining {
		switch w {
		case "bass", "flounder", "salmon", "trout":
			t.Errorf("Expected %q to be removed from remaining words", w)
		}
	}
	g := s.Groups[0]
	if g.Kind != GroupUserConfirmed || g.Color != ColorYellow || !g.Found {
		t.Errorf("Unexpected synthesized group: %+v", g)
	}
	checkWordConservation(t, s)
}

func TestRecordAttempt_MatchesSeededGroup(t *testing.T) {
	s, err := NewSession("s", boardWords(), []GroupSeed{
		{Label: "fish", Words: []string{"bass", "flounder", "salmon", "trout"}, Difficulty: 1},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	s.RecordAttempt([]string{"trout", "salmon", "flounder", "bass"}, OutcomeCorrect, false, "")
	if len(s.Groups) != 1 {
		t.Fatalf("Expected seeded group to be reused, got %d groups", len(s.Groups))
	}
	if !s.Groups[0].Found || s.Groups[0].Kind != GroupPredefined {
		t.Errorf("Expected predefined group marked found, got %+v", s.Groups[0])
	}
}

func TestRecordAttempt_SeededWordsAreNotTakenBySynthesis(t *testing.T) {
	s, err := NewSession("s", boardWords(), []GroupSeed{
		{Label: "fish", Words: []string{"bass", "flounder", "salmon", "trout"}},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	s.RecordAttempt([]string{"bass", "flounder", "salmon", "piano"}, OutcomeCorrect, false, "")
	if s.GroupsFoundCount() != 0 {
		t.Errorf("Expected no group from words reserved by a seed, got %d", s.GroupsFoundCount())
	}
	checkWordConservation(t, s)

	s.RecordAttempt([]string{"guitar", "drum", "flute", "piano"}, OutcomeCorrect, false, "")
	s.RecordAttempt([]string{"bass", "flounder", "salmon", "trout"}, OutcomeCorrect, false, "")
	if s.GroupsFoundCount() != 2 {
		t.Fatalf("Expected 2 groups found, got %d", s.GroupsFoundCount())
	}
	if len(s.Groups) != 2 {
		t.Errorf("Expected the seed plus one synthesized group, got %d groups", len(s.Groups))
	}
	checkWordConservation(t, s)

	seen := make(map[string]int)
	for _, g := range s.FoundGroups() {
		for _, w := range g.Words {
			seen[w]++
		}
	}
	for w, n := range seen {
		if n > 1 {
			t.Errorf("Expected %q in at most one found group, got %d", w, n)
		}
	}
}

func TestRecordAttempt_ConservationWithSeeds(t *testing.T) {
	s, err := NewSession("s", boardWords(), []GroupSeed{
		{Label: "fish", Words: []string{"bass", "flounder", "salmon", "trout"}},
		{Label: "colors", Words: []string{"red", "blue", "green", "yellow"}},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	attempts := [][]string{
		{"bass", "flounder", "salmon", "apple"},
		{"red", "blue", "green", "yellow"},
		{"bass", "flounder", "salmon", "trout"},
		{"bass", "flounder", "salmon", "trout"},
		{"piano", "guitar", "drum", "flute"},
		{"apple", "pear", "plum", "grape"},
	}
	for _, a := range attempts {
		s.RecordAttempt(a, OutcomeCorrect, false, "")
		checkWordConservation(t, s)
	}
	if !s.Won {
		t.Errorf("Expected the session to be won, got state %s", s.State())
	}
}

func TestRecordAttempt_CorrectWithFoundWordDoesNotSynthesize(t *testing.T) {
	s := newTestSession(t)
	s.RecordAttempt([]string{"bass", "flounder", "salmon", "trout"}, OutcomeCorrect, false, "")
	s.RecordAttempt([]string{"bass", "piano", "guitar", "drum"}, OutcomeCorrect, false, "")
	if s.GroupsFoundCount() != 1 {
		t.Errorf("Expected 1 group found, got %d", s.GroupsFoundCount())
	}
	if s.TotalGuesses() != 2 {
		t.Errorf("Expected 2 guesses, got %d", s.TotalGuesses())
	}
	checkWordConservation(t, s)
}

func TestRecordAttempt_Idempotent(t *testing.T) {
	s := newTestSession(t)
	guess := []string{"bass", "piano", "red", "apple"}
	s.RecordAttempt(guess, OutcomeIncorrect, false, "")
	before := s.Clone()

	if s.RecordAttempt([]string{"APPLE", "red", "piano", "bass"}, OutcomeIncorrect, false, "") {
		t.Error("Expected duplicate attempt to be a no-op")
	}
	if s.Mistakes != before.Mistakes || s.TotalGuesses() != before.TotalGuesses() {
		t.Errorf("Expected counters unchanged, got mistakes=%d guesses=%d", s.Mistakes, s.TotalGuesses())
	}

	correct := []string{"red", "blue", "green", "yellow"}
	s.RecordAttempt(correct, OutcomeCorrect, false, "")
	found := s.GroupsFoundCount()
	s.RecordAttempt(correct, OutcomeCorrect, false, "")
	if s.GroupsFoundCount() != found || s.TotalGuesses() != 2 {
		t.Errorf("Expected duplicate correct attempt to be ignored")
	}
}

func TestRecordAttempt_SameWordsDifferentOutcomeIsRecorded(t *testing.T) {
	s := newTestSession(t)
	guess := []string{"bass", "piano", "red", "apple"}
	s.RecordAttempt(guess, OutcomeIncorrect, false, "")
	s.RecordAttempt(guess, OutcomeOneAway, false, "")
	if s.TotalGuesses() != 2 || s.Mistakes != 2 || s.OneAwayCount != 1 {
		t.Errorf("Expected 2 guesses, 2 mistakes, 1 one-away; got %d, %d, %d", s.TotalGuesses(), s.Mistakes, s.OneAwayCount)
	}
}

func TestRecordAttempt_FourMistakesLoses(t *testing.T) {
	s := newTestSession(t)
	guesses := [][]string{
		{"bass", "piano", "red", "apple"},
		{"flounder", "guitar", "blue", "pear"},
		{"salmon", "drum", "green", "plum"},
		{"trout", "flute", "yellow", "grape"},
	}
	for i, g := range guesses {
		if s.IsGameOver() {
			t.Fatalf("Game over too early after %d guesses", i)
		}
		s.RecordAttempt(g, OutcomeIncorrect, false, "")
	}
	if !s.IsGameOver() || s.Won || s.State() != StateLost {
		t.Errorf("Expected lost game, got state=%s won=%v", s.State(), s.Won)
	}

	s.RecordAttempt([]string{"bass", "flounder", "salmon", "grape"}, OutcomeOneAway, false, "")
	if s.Mistakes != MaxMistakes {
		t.Errorf("Expected mistakes capped at %d, got %d", MaxMistakes, s.Mistakes)
	}
	if s.State() != StateLost {
		t.Errorf("Expected terminal state to persist, got %s", s.State())
	}
}

func TestRecordAttempt_FourGroupsWins(t *testing.T) {
	s := newTestSession(t)
	words := s.Words
	for i := 0; i < 4; i++ {
		s.RecordAttempt(words[i*4:i*4+4], OutcomeCorrect, false, "")
		checkWordConservation(t, s)
	}
	if !s.Won || s.State() != StateWon {
		t.Errorf("Expected won game, got %s", s.State())
	}
	if len(s.RemainingWords()) != 0 {
		t.Errorf("Expected no remaining words, got %v", s.RemainingWords())
	}
}

func TestSnapshot_HidesUnfoundSeeds(t *testing.T) {
	s, err := NewSession("s", boardWords(), []GroupSeed{{Label: "fish", Words: []string{"bass", "flounder", "salmon", "trout"}}})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Groups) != 0 {
		t.Errorf("Expected unfound seeds hidden, got %v", snap.Groups)
	}
	if diff := cmp.Diff(s.Words, snap.RemainingWords); diff != "" {
		t.Errorf("Remaining words mismatch (-want +got):\n%s", diff)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := newTestSession(t)
	s.RecordAttempt([]string{"bass", "flounder", "salmon", "trout"}, OutcomeCorrect, false, "")
	c := s.Clone()
	c.Words[0] = "changed"
	c.Groups[0].Words[0] = "changed"
	c.Attempts[0].Words[0] = "changed"
	if s.Words[0] != "bass" || s.Groups[0].Words[0] != "bass" || s.Attempts[0].Words[0] != "bass" {
		t.Error("Expected clone mutations not to leak into the original")
	}
}

func TestParseOutcome(t *testing.T) {
	for in, want := range map[string]Outcome{
		"correct":   OutcomeCorrect,
		"Incorrect": OutcomeIncorrect,
		"one-away":  OutcomeOneAway,
		"one_away":  OutcomeOneAway,
	} {
		got, err := ParseOutcome(in)
		if err != nil || got != want {
			t.Errorf("ParseOutcome(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutcome("maybe"); CodeOf(err) != CodeInvalidInput {
		t.Errorf("Expected invalid_input, got %v", err)
	}
}
