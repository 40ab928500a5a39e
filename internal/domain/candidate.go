package domain

import "slices"

// Candidate is a proposed group of four words plus optional metadata.
type Candidate struct {
	Words       []string `json:"words"`
	Explanation string   `json:"explanation,omitempty"`
	// Confidence is nil when the strategy did not report one.
	Confidence *float64 `json:"confidence,omitempty"`
	// LatencyMS is nil when the strategy did not report generation time.
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	Strategy  string   `json:"strategy"`
	Model     string   `json:"model,omitempty"`
}

// Clone returns a deep copy.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Words = slices.Clone(c.Words)
	if c.Confidence != nil {
		v := *c.Confidence
		out.Confidence = &v
	}
	if c.LatencyMS != nil {
		v := *c.LatencyMS
		out.LatencyMS = &v
	}
	return &out
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }
