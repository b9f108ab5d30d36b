package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sattvalabs/karmika/internal/classifier"
	"github.com/sattvalabs/karmika/internal/config"
	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/rules"
)

var (
	classifyText       string
	classifyConfigPath string
	classifyTimeout    int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single action without recording it",
	Long: `Run one action description through the classification pipeline and print
the result as JSON. Nothing is written to storage: this uses the built-in
weight rules and habit catalog, plus the configured LLM provider when a
config file with a providers section is available.

Examples:
  karmika classify -m "helped a colleague debug a production incident"
  karmika classify -m "skipped my morning run again" --config ~/.karmika/config.yaml`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyText, "message", "m", "", "action description to classify (required)")
	classifyCmd.Flags().StringVar(&classifyConfigPath, "config", "", "path to config file (optional, enables the LLM tier)")
	classifyCmd.Flags().IntVar(&classifyTimeout, "timeout", 60, "timeout in seconds")

	_ = classifyCmd.MarkFlagRequired("message")
}

func runClassify(_ *cobra.Command, _ []string) error {
	if classifyText == "" {
		return fmt.Errorf("message is required: use -m flag")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	opts := []classifier.Option{}
	if classifyConfigPath != "" {
		cfg, err := config.Load(classifyConfigPath)
		if err != nil {
			return err
		}
		if cfg.Providers != nil {
			provider, err := newLLMProvider(cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing LLM provider: %w", err)
			}
			opts = append(opts,
				classifier.WithProvider(provider),
				classifier.WithLLMTimeout(cfg.Engine.LLMTimeout()),
			)
		}
	}

	cls := classifier.New(
		rules.StaticSource(rules.DefaultWeightRules()),
		builtinHabitCatalog{},
		logger,
		opts...,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(classifyTimeout)*time.Second)
	defer cancel()

	res, err := cls.Classify(ctx, classifyText)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// builtinHabitCatalog is a read-only ledger.HabitStore over the built-in
// suggestion set, so classify works without a database.
type builtinHabitCatalog struct{}

var _ ledger.HabitStore = builtinHabitCatalog{}

func (builtinHabitCatalog) ListActiveByPattern(_ context.Context, pattern string) ([]domain.HabitSuggestion, error) {
	var out []domain.HabitSuggestion
	for _, h := range rules.DefaultHabitSuggestions() {
		if h.Pattern == pattern && h.Active {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (c builtinHabitCatalog) ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error) {
	return c.ListActiveByPattern(ctx, "general")
}

func (builtinHabitCatalog) Create(context.Context, *domain.HabitSuggestion) error {
	return fmt.Errorf("the built-in habit catalog is read-only")
}
