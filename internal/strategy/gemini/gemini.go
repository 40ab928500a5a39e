// Package gemini implements the Google Gemini recommendation strategy.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/connsolve/internal/strategy"
	"google.golang.org/genai"
)

const (
	// Name is the strategy identity.
	Name = "gemini"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// Strategy asks Gemini for a group.
type Strategy struct {
	client *genai.Client
	model  string
}

var _ strategy.Strategy = (*Strategy)(nil)

// New creates a Gemini strategy.
func New(ctx context.Context, apiKey, model string) (*Strategy, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Strategy{client: client, model: model}, nil
}

func (s *Strategy) Name() string  { return Name }
func (s *Strategy) Model() string { return s.model }

// Generate sends one prompt and returns the decoded JSON payload.
func (s *Strategy) Generate(ctx context.Context, req strategy.Request) (strategy.Response, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(strategy.BuildPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(strategy.SystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.2),
		},
	)
	if err != nil {
		return strategy.Response{}, fmt.Errorf("gemini generate: %w", err)
	}

	payload, err := ParsePayload(resp.Text())
	if err != nil {
		return strategy.Response{}, err
	}
	return strategy.Response{Payload: payload}, nil
}

// ParsePayload decodes a model answer into a generic map, tolerating
// surrounding code fences.
func ParsePayload(text string) (map[string]any, error) {
	body := strategy.StripCodeFences(text)
	if body == "" {
		return nil, fmt.Errorf("gemini: empty response: %w", strategy.ErrMalformed)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w: %v", strategy.ErrMalformed, err)
	}
	return payload, nil
}
