package postgres

import (
	"context"
	"sync"

	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/storage"
)

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Store is the PostgreSQL-backed storage.Store. Repositories are constructed
// lazily and cached.
type Store struct {
	db *DB

	mu        sync.Mutex
	entries   *EntryRepository
	rules     *RuleRepository
	habits    *HabitRepository
	patterns  *PatternRepository
	summaries *SummaryRepository
	users     *UserRepository
}

// NewStore wraps an open database handle.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Entries returns the karma entry ledger.
func (s *Store) Entries() ledger.EntryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = NewEntryRepository(s.db.GormDB())
	}
	return s.entries
}

// Rules returns the weight rule table.
func (s *Store) Rules() ledger.RuleStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules == nil {
		s.rules = NewRuleRepository(s.db.GormDB())
	}
	return s.rules
}

// Habits returns the habit suggestion catalog.
func (s *Store) Habits() ledger.HabitStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.habits == nil {
		s.habits = NewHabitRepository(s.db.GormDB())
	}
	return s.habits
}

// Patterns returns the per-user pattern cache.
func (s *Store) Patterns() ledger.PatternStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patterns == nil {
		s.patterns = NewPatternRepository(s.db.GormDB())
	}
	return s.patterns
}

// Summaries returns the per-period score rollups.
func (s *Store) Summaries() ledger.SummaryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaries == nil {
		s.summaries = NewSummaryRepository(s.db.GormDB())
	}
	return s.summaries
}

// Users returns the identity surface.
func (s *Store) Users() ledger.UserStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = NewUserRepository(s.db.GormDB())
	}
	return s.users
}

// EnsureUser creates the user row if it does not exist.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	repo, _ := s.Users().(*UserRepository)
	return repo.Ensure(ctx, userID)
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend driver name.
func (s *Store) Driver() string {
	return storage.DriverPostgres
}
