// Package openai implements the OpenAI chat completions strategy over plain
// HTTP.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/connsolve/internal/strategy"
)

const (
	// Name is the strategy identity.
	Name = "openai"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	maxErrorBody = 512
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Config configures the strategy.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Strategy calls the chat completions endpoint in JSON mode.
type Strategy struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

var _ strategy.Strategy = (*Strategy)(nil)

// New creates an OpenAI strategy.
func New(cfg Config) (*Strategy, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	s := &Strategy{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   cfg.HTTPClient,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.baseURL == "" {
		s.baseURL = DefaultBaseURL
	}
	if s.httpc == nil {
		// No client timeout: the caller's context bounds each request.
		s.httpc = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        10,
		}}
	}
	return s, nil
}

func (s *Strategy) Name() string  { return Name }
func (s *Strategy) Model() string { return s.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends one chat completion and returns the decoded JSON payload.
func (s *Strategy) Generate(ctx context.Context, req strategy.Request) (strategy.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []message{
			{Role: "system", Content: strategy.SystemPrompt},
			{Role: "user", Content: strategy.BuildPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return strategy.Response{}, fmt.Errorf("openai: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return strategy.Response{}, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return strategy.Response{}, fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return strategy.Response{}, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return strategy.Response{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(raw, maxErrorBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return strategy.Response{}, fmt.Errorf("openai: decode envelope: %w: %v", strategy.ErrMalformed, err)
	}
	if cr.Error != nil {
		return strategy.Response{}, fmt.Errorf("openai: %s: %s", cr.Error.Type, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return strategy.Response{}, fmt.Errorf("openai: no choices in response: %w", strategy.ErrMalformed)
	}

	var payload map[string]any
	content := strategy.StripCodeFences(cr.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return strategy.Response{}, fmt.Errorf("openai: decode content: %w: %v", strategy.ErrMalformed, err)
	}
	return strategy.Response{Payload: payload}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
