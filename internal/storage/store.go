// Package storage defines the unified persistence interface implemented by
// the SQLite and PostgreSQL backends.
package storage

import (
	"context"

	"github.com/sattvalabs/karmika/internal/ledger"
)

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the unified persistence interface. Sub-stores are lazily
// constructed views over one underlying database.
type Store interface {
	// Entries returns the karma entry ledger.
	Entries() ledger.EntryStore
	// Rules returns the weight rule table.
	Rules() ledger.RuleStore
	// Habits returns the habit suggestion catalog.
	Habits() ledger.HabitStore
	// Patterns returns the per-user pattern cache.
	Patterns() ledger.PatternStore
	// Summaries returns the per-period score rollups.
	Summaries() ledger.SummaryStore
	// Users returns the identity surface.
	Users() ledger.UserStore

	// EnsureUser creates the user row if it does not exist.
	EnsureUser(ctx context.Context, userID string) error

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error
	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
	// Driver returns the backend driver name.
	Driver() string
}
