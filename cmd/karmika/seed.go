package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/sattvalabs/karmika/internal/config"
	"github.com/sattvalabs/karmika/internal/rules"
)

var (
	seedConfigPath string
	seedUsers      []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the built-in weight rules and habit catalog",
	Long: `Insert the built-in weight rules and habit suggestions into storage,
skipping anything already present. Safe to run repeatedly.

Optionally creates user rows so API keys can be mapped to them:
  karmika seed --user arjuna --user bhima`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	seedCmd.Flags().StringArrayVar(&seedUsers, "user", nil, "user ID to create (repeatable)")
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("KARMIKA_CONFIG", seedConfigPath))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.ResolvedDataDir(), 0750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store, err := initStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	result, err := rules.Seed(ctx, store.Rules(), store.Habits(), logger)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	for _, userID := range seedUsers {
		if err := store.EnsureUser(ctx, userID); err != nil {
			return fmt.Errorf("ensuring user %q: %w", userID, err)
		}
		logger.Info("user ensured", slog.String("user_id", userID))
	}

	fmt.Printf("rules: %d seeded, %d skipped\nhabits: %d seeded, %d skipped\nusers: %d ensured\n",
		result.RulesSeeded, result.RulesSkipped,
		result.HabitsSeeded, result.HabitsSkipped,
		len(seedUsers),
	)
	return nil
}
