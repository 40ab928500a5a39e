package strategy

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs generative backends on the puzzle and the exact
// JSON shape to return.
const SystemPrompt = `You help a player solve a word grouping puzzle. The board hides groups of four words that share a connection (a category, a wordplay pattern, a phrase they complete, and so on).
Pick the ONE group of four words from the remaining words that you are most confident about.
Never repeat a guess that was already tried. Use only words from the remaining list, spelled exactly as given.
Return ONLY JSON, no prose and no code fences:
{"words": [string, string, string, string], "explanation": string, "confidence": number between 0 and 1}`

// BuildPrompt renders the user prompt for a request.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remaining words (%d): %s\n", len(req.Words), strings.Join(req.Words, ", "))

	if len(req.Attempts) > 0 {
		b.WriteString("Previous guesses:\n")
		for _, a := range req.Attempts {
			fmt.Fprintf(&b, "- %s: %s\n", strings.Join(a.Words, ", "), a.Outcome)
		}
	}
	if c := strings.TrimSpace(req.Context); c != "" {
		fmt.Fprintf(&b, "Player notes: %s\n", c)
	}
	b.WriteString("Answer with the JSON object only.")
	return b.String()
}

// StripCodeFences removes a surrounding markdown code fence, which models
// add even when told not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
