// Package sqlite implements the karmika store on an embedded SQLite
// database. It reuses the PostgreSQL package's GORM models and repositories;
// only the connection setup differs.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/storage"
	pgstore "github.com/sattvalabs/karmika/internal/storage/postgres"
)

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Config holds SQLite settings.
type Config struct {
	// Path is the database file location. Parent directories are created.
	Path string
	// JournalMode sets the SQLite journal pragma. Defaults to "wal".
	JournalMode string
}

// Store is the SQLite-backed storage.Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu        sync.Mutex
	entries   *pgstore.EntryRepository
	rules     *pgstore.RuleRepository
	habits    *pgstore.HabitRepository
	patterns  *pgstore.PatternRepository
	summaries *pgstore.SummaryRepository
	users     *pgstore.UserRepository
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

// Open opens (and creates if needed) the SQLite database file.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	journal := cfg.JournalMode
	if journal == "" {
		journal = "wal"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		cfg.Path, journal)

	gormLogger := gormlogger.New(slogAdapter{logger: logger}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sql.DB: %w", err)
	}
	// A single writer keeps SQLite lock contention away.
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db, logger: logger}, nil
}

// Entries returns the karma entry ledger.
func (s *Store) Entries() ledger.EntryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = pgstore.NewEntryRepository(s.db)
	}
	return s.entries
}

// Rules returns the weight rule table.
func (s *Store) Rules() ledger.RuleStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules == nil {
		s.rules = pgstore.NewRuleRepository(s.db)
	}
	return s.rules
}

// Habits returns the habit suggestion catalog.
func (s *Store) Habits() ledger.HabitStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.habits == nil {
		s.habits = pgstore.NewHabitRepository(s.db)
	}
	return s.habits
}

// Patterns returns the per-user pattern cache.
func (s *Store) Patterns() ledger.PatternStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patterns == nil {
		s.patterns = pgstore.NewPatternRepository(s.db)
	}
	return s.patterns
}

// Summaries returns the per-period score rollups.
func (s *Store) Summaries() ledger.SummaryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaries == nil {
		s.summaries = pgstore.NewSummaryRepository(s.db)
	}
	return s.summaries
}

// Users returns the identity surface.
func (s *Store) Users() ledger.UserStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = pgstore.NewUserRepository(s.db)
	}
	return s.users
}

// EnsureUser creates the user row if it does not exist.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	repo, _ := s.Users().(*pgstore.UserRepository)
	return repo.Ensure(ctx, userID)
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(pgstore.Models()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	s.logger.Info("database schema migrated", "driver", "sqlite")
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Driver returns the backend driver name.
func (s *Store) Driver() string {
	return storage.DriverSQLite
}
