package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sattvalabs/karmika/internal/classifier"
	"github.com/sattvalabs/karmika/internal/config"
	"github.com/sattvalabs/karmika/internal/engine"
	"github.com/sattvalabs/karmika/internal/habits"
	"github.com/sattvalabs/karmika/internal/llm"
	"github.com/sattvalabs/karmika/internal/llm/anthropic"
	"github.com/sattvalabs/karmika/internal/llm/gemini"
	"github.com/sattvalabs/karmika/internal/llm/openai"
	"github.com/sattvalabs/karmika/internal/observability"
	"github.com/sattvalabs/karmika/internal/patterns"
	"github.com/sattvalabs/karmika/internal/rules"
	"github.com/sattvalabs/karmika/internal/scoring"
	"github.com/sattvalabs/karmika/internal/storage"
	pgstore "github.com/sattvalabs/karmika/internal/storage/postgres"
	sqlitestore "github.com/sattvalabs/karmika/internal/storage/sqlite"
	"github.com/sattvalabs/karmika/internal/streak"
)

// SharedComponents holds the initialized subsystems that serve mode requires.
// Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store // Unified store (SQLite or PostgreSQL).

	Obs         *observability.Observability // nil = observability disabled.
	LLMProvider llm.Provider                 // nil = LLM classification tier disabled.
	RuleSource  *rules.CachedSource
	Scoring     *scoring.Service
	Engine      *engine.Engine

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization for serve mode.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Ensure data directory exists.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// LLM provider (optional: the classifier degrades to the heuristic tier
	// when no provider is configured).
	if cfg.Providers != nil {
		llmProvider, err := newLLMProvider(cfg, logger)
		if err != nil {
			sc.Cleanup()
			return nil, fmt.Errorf("initializing LLM provider: %w", err)
		}
		sc.LLMProvider = llmProvider
		logger.Debug("llm provider initialized", slog.String("provider", llmProvider.Name()))
	}

	// Storage (unified: SQLite default, PostgreSQL optional).
	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})

	// Run migrations.
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("storage initialized", slog.String("driver", store.Driver()))

	// Health checks.
	if obs != nil && obs.Health != nil {
		includeDB := cfg.Observability != nil &&
			cfg.Observability.Health != nil &&
			cfg.Observability.Health.IncludeDB
		if includeDB {
			obs.Health.AddCheck("database", store.Ping)
		}
	}

	// Classification pipeline.
	ruleSource := rules.NewCachedSource(store.Rules(), cfg.Engine.RuleCacheTTL())
	sc.RuleSource = ruleSource

	clsOpts := []classifier.Option{
		classifier.WithLLMTimeout(cfg.Engine.LLMTimeout()),
	}
	if sc.LLMProvider != nil {
		clsOpts = append(clsOpts, classifier.WithProvider(sc.LLMProvider))
	}
	if obs != nil && obs.Metrics != nil {
		clsOpts = append(clsOpts, classifier.WithMetrics(obs.Metrics))
	}
	cls := classifier.New(ruleSource, store.Habits(), logger, clsOpts...)

	// Core services behind the engine facade.
	scoringSvc := scoring.NewService(store.Entries(), store.Summaries(), logger)
	sc.Scoring = scoringSvc
	analyzer := patterns.NewAnalyzer(store.Entries(), store.Patterns(), logger)
	recommender := habits.NewRecommender(store.Habits(), logger)
	tracker := streak.NewTracker(store.Entries(), logger)

	sc.Engine = engine.New(
		store.Users(), store.Entries(),
		cls, scoringSvc, analyzer, recommender, tracker,
		logger,
	)
	logger.Debug("karma engine initialized",
		slog.Bool("llm_tier", sc.LLMProvider != nil),
		slog.String("rule_cache_ttl", cfg.Engine.RuleCacheTTL().String()),
	)

	return sc, nil
}

// initStore creates the appropriate storage backend from config.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	driver := cfg.StorageDriverName()

	switch driver {
	case "postgres":
		return initPostgresStore(cfg, logger)
	case "sqlite":
		return initSQLiteStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	dbPath := cfg.DatabasePath()
	journalMode := "wal"

	if cfg.Storage != nil && cfg.Storage.SQLite != nil {
		if cfg.Storage.SQLite.Path != "" {
			dbPath = cfg.Storage.SQLite.Path
		}
		if cfg.Storage.SQLite.JournalMode != "" {
			journalMode = cfg.Storage.SQLite.JournalMode
		}
	}

	return sqlitestore.Open(sqlitestore.Config{
		Path:        dbPath,
		JournalMode: journalMode,
	}, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var dsn string
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		dsn = cfg.Storage.Postgres.DSN
	}

	if envDSN := os.Getenv("KARMIKA_DB_DSN"); envDSN != "" {
		dsn = envDSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required (set storage.postgres.dsn or KARMIKA_DB_DSN)")
	}

	pgCfg := pgstore.Config{DSN: dsn}
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		pgCfg.MaxOpenConns = cfg.Storage.Postgres.MaxOpenConns
		pgCfg.MaxIdleConns = cfg.Storage.Postgres.MaxIdleConns
		pgCfg.ConnMaxLifetime = time.Duration(cfg.Storage.Postgres.ConnMaxLifetimeS) * time.Second
	}

	pgDB, err := pgstore.Open(pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	return pgstore.NewStore(pgDB), nil
}

// newLLMProvider creates the LLM provider based on the configured default.
func newLLMProvider(cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	primary, err := buildProvider(cfg.Providers.Default, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Build fallback chain if configured.
	if len(cfg.Providers.Fallback) > 0 {
		providers := []llm.Provider{primary}
		for _, name := range cfg.Providers.Fallback {
			fb, err := buildProvider(name, cfg, logger)
			if err != nil {
				logger.Warn("skipping fallback provider",
					slog.String("provider", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			providers = append(providers, fb)
		}
		if len(providers) > 1 {
			return llm.NewFallbackProvider(providers, logger), nil
		}
	}

	return primary, nil
}

// buildProvider creates a single LLM provider by name.
func buildProvider(name string, cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	switch name {
	case "anthropic", "":
		return anthropic.NewClient(
			cfg.Providers.Anthropic.APIKey,
			cfg.Providers.Anthropic.Model,
			logger,
		), nil
	case "openai":
		var opts []openai.Option
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		return openai.NewClient(
			cfg.Providers.OpenAI.APIKey,
			cfg.Providers.OpenAI.Model,
			logger,
			opts...,
		), nil
	case "gemini":
		var opts []gemini.Option
		if cfg.Providers.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Providers.Gemini.BaseURL))
		}
		return gemini.NewClient(
			cfg.Providers.Gemini.APIKey,
			cfg.Providers.Gemini.Model,
			logger,
			opts...,
		), nil
	case "ollama":
		baseURL := cfg.Providers.Ollama.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return openai.NewClient(
			"",
			cfg.Providers.Ollama.Model,
			logger,
			openai.WithBaseURL(baseURL),
			openai.WithName("ollama"),
		), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", name)
	}
}
