package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/connsolve/internal/config"
	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/recommend"
	"github.com/ashureev/connsolve/internal/strategy/builtin"
	"github.com/ashureev/connsolve/internal/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

type suggestOptions struct {
	strategy string
	exclude  []string
	oneAway  []string
	context  string
	asJSON   bool
}

type validateOptions struct {
	explanation string
	confidence  float64
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "connsolve",
		Short:         "Suggest groups for a word-grouping puzzle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline events to stderr")

	root.AddCommand(newSuggestCmd(opts), newValidateCmd(), newStrategiesCmd(opts))
	return root
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	opts := &suggestOptions{}
	cmd := &cobra.Command{
		Use:   "suggest word...",
		Short: "Recommend four words that likely form a group",
		Long: `Recommends one group from the given words. Earlier wrong guesses can be
passed with --exclude (four comma-separated words, repeatable) so they are not
suggested again.`,
		Args: cobra.MinimumNArgs(domain.GroupSize),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "strategy to use (default from DEFAULT_STRATEGY)")
	cmd.Flags().StringArrayVar(&opts.exclude, "exclude", nil, "a rejected guess, e.g. --exclude bass,piano,red,apple")
	cmd.Flags().StringArrayVar(&opts.oneAway, "one-away", nil, "a guess reported as one away")
	cmd.Flags().StringVar(&opts.context, "context", "", "free-form hint passed to model strategies")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func runSuggest(cmd *cobra.Command, root *rootOptions, opts *suggestOptions, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(root.verbose, cfg.LogLevel)

	prior, err := priorAttempts(opts.exclude, domain.OutcomeIncorrect)
	if err != nil {
		return err
	}
	oneAway, err := priorAttempts(opts.oneAway, domain.OutcomeOneAway)
	if err != nil {
		return err
	}
	prior = append(prior, oneAway...)

	ctx := cmd.Context()
	reg, closeFn := builtin.NewRegistry(ctx, cfg, logger)
	defer closeFn()

	orch := recommend.New(recommend.Config{
		Strategies:      reg,
		DefaultStrategy: cfg.DefaultStrategy,
		Logger:          logger,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.RecommendTimeout)
	defer cancel()

	res, err := orch.Recommend(ctx, recommend.Request{
		StrategyID:    opts.strategy,
		Words:         splitWords(args),
		PriorAttempts: prior,
		Context:       opts.context,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, res)
	}
	c := res.Candidate
	fmt.Fprintln(out, strings.Join(c.Words, ", "))
	if c.Explanation != "" {
		fmt.Fprintf(out, "  %s\n", c.Explanation)
	}
	if c.Confidence != nil {
		fmt.Fprintf(out, "  confidence %.2f, strategy %s\n", *c.Confidence, c.Strategy)
	}
	if !res.Verdict.Valid {
		fmt.Fprintf(out, "  warning: %s\n", res.Verdict.Summary)
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	opts := &validateOptions{confidence: -1}
	cmd := &cobra.Command{
		Use:   "validate word...",
		Short: "Score a candidate group with the validation rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &domain.Candidate{Words: splitWords(args), Explanation: opts.explanation}
			if opts.confidence >= 0 {
				c.Confidence = domain.Float(opts.confidence)
			}
			v := validation.NewEngine().Validate(c, nil)
			res := map[string]any{"verdict": v}
			if !v.Valid {
				rem := validation.Remediate(c, v)
				res["remediation"] = rem
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&opts.explanation, "explanation", "e", "", "explanation to score")
	cmd.Flags().Float64VarP(&opts.confidence, "confidence", "c", -1, "confidence to score; negative means unset")
	return cmd
}

func newStrategiesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List configured and available strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(root.verbose, cfg.LogLevel)
			reg, closeFn := builtin.NewRegistry(cmd.Context(), cfg, logger)
			defer closeFn()

			orch := recommend.New(recommend.Config{Strategies: reg, DefaultStrategy: cfg.DefaultStrategy, Logger: logger})
			return writeJSON(cmd.OutOrStdout(), orch.ListStrategies())
		},
	}
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

func newLogger(verbose bool, level slog.Level) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// splitWords accepts both "a b c d" and "a,b,c,d" style arguments.
func splitWords(args []string) []string {
	var out []string
	for _, a := range args {
		for _, w := range strings.Split(a, ",") {
			if w = strings.TrimSpace(w); w != "" {
				out = append(out, w)
			}
		}
	}
	return out
}

func priorAttempts(groups []string, outcome domain.Outcome) ([]domain.Attempt, error) {
	out := make([]domain.Attempt, 0, len(groups))
	for _, g := range groups {
		words := domain.NormalizeWords(splitWords([]string{g}))
		if len(words) != domain.GroupSize {
			return nil, fmt.Errorf("guess %q must have %d words", g, domain.GroupSize)
		}
		out = append(out, domain.Attempt{Words: words, Outcome: outcome})
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
