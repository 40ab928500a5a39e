// Package builtin wires every strategy this module ships with into a registry.
package builtin

import (
	"context"
	"log/slog"

	"github.com/ashureev/connsolve/internal/config"
	"github.com/ashureev/connsolve/internal/strategy"
	"github.com/ashureev/connsolve/internal/strategy/gemini"
	"github.com/ashureev/connsolve/internal/strategy/heuristic"
	"github.com/ashureev/connsolve/internal/strategy/openai"
	"github.com/ashureev/connsolve/internal/strategy/remote"
)

// NewRegistry registers every known strategy. Model-backed strategies are
// built lazily, so a missing key only makes that strategy unavailable.
func NewRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*strategy.Registry, func()) {
	reg := strategy.NewRegistry()
	reg.RegisterStrategy(heuristic.New(heuristic.Config{}))

	reg.Register(gemini.Name, func() (strategy.Strategy, error) {
		return gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	})
	reg.Register(openai.Name, func() (strategy.Strategy, error) {
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	})

	closeFn := func() {}
	if cfg.RemoteStrategyAddr != "" {
		rc := remote.DefaultConfig(cfg.RemoteStrategyAddr)
		rc.Logger = logger
		client, err := remote.New(rc)
		if err != nil {
			slog.Warn("Remote strategy unavailable", "address", cfg.RemoteStrategyAddr, "error", err)
			reg.Register(remote.Name, func() (strategy.Strategy, error) { return nil, err })
		} else {
			reg.RegisterStrategy(client)
			closeFn = client.Close
		}
	}

	slog.Info("Strategies registered", "configured", reg.Configured(), "available", reg.Available())
	return reg, closeFn
}
