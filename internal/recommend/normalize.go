package recommend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/strategy"
)

// Alternate field names seen in backend payloads, in lookup order.
var (
	wordKeys        = []string{"words", "recommendation", "recommended_words", "group", "selection"}
	explanationKeys = []string{"explanation", "connection", "reasoning", "reason", "rationale"}
	confidenceKeys  = []string{"confidence", "confidence_score", "score"}
	latencyKeys     = []string{"generation_time_ms", "latency_ms", "elapsed_ms", "time_ms"}
	modelKeys       = []string{"model", "model_name"}
)

func normalizeResponse(id string, resp strategy.Response) (*domain.Candidate, error) {
	if resp.Candidate != nil {
		return resp.Candidate.Clone(), nil
	}
	if resp.Payload == nil {
		return nil, domain.MalformedResponse(id, "empty response")
	}
	return normalizePayload(id, resp.Payload)
}

// normalizePayload maps a dictionary-shaped backend answer onto a
// candidate. Only the word list is mandatory.
func normalizePayload(id string, p map[string]any) (*domain.Candidate, error) {
	// Some backends nest the answer one level down.
	if inner, ok := p["recommendation"].(map[string]any); ok {
		p = inner
	}

	raw, ok := lookup(p, wordKeys)
	if !ok {
		return nil, domain.MalformedResponse(id, "no word list field")
	}
	words, err := toWords(raw)
	if err != nil {
		return nil, domain.MalformedResponse(id, err.Error())
	}

	c := &domain.Candidate{Words: words}
	if v, ok := lookup(p, explanationKeys); ok {
		if s, ok := v.(string); ok {
			c.Explanation = strings.TrimSpace(s)
		}
	}
	if v, ok := lookup(p, confidenceKeys); ok {
		if f, ok := toFloat(v); ok {
			c.Confidence = &f
		}
	}
	if v, ok := lookup(p, latencyKeys); ok {
		if f, ok := toFloat(v); ok {
			c.LatencyMS = &f
		}
	}
	if v, ok := lookup(p, modelKeys); ok {
		if s, ok := v.(string); ok {
			c.Model = s
		}
	}
	return c, nil
}

func lookup(p map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toWords(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("word %d is %T, not a string", i, e)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	case string:
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, s := range parts {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("word list is %T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
