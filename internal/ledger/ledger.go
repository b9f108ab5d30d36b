// Package ledger defines the narrow persistence interfaces the karma engine
// consumes. The engine treats the ledger as an external collaborator: entries
// are append-only (plus soft delete), aggregates are idempotent upserts, and
// ordering/pagination is the engine's responsibility, not the store's.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sattvalabs/karmika/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// EntryStore is the append-only karma entry ledger.
type EntryStore interface {
	// Create appends a classified entry. The entry is never mutated afterwards
	// except through SoftDelete.
	Create(ctx context.Context, e *domain.KarmaEntry) error
	// FindByUser returns all non-deleted entries for a user, newest first.
	FindByUser(ctx context.Context, userID string) ([]domain.KarmaEntry, error)
	// FindByUserSince returns non-deleted entries with EntryDate in [from, to), newest first.
	FindByUserSince(ctx context.Context, userID string, from, to time.Time) ([]domain.KarmaEntry, error)
	// SoftDelete marks an entry deleted. Returns ErrNotFound for unknown IDs.
	SoftDelete(ctx context.Context, userID string, id uuid.UUID) error
}

// RuleStore provides read access to the admin-authored weight rule table.
type RuleStore interface {
	// ListActive returns all active weight rules.
	ListActive(ctx context.Context) ([]domain.WeightRule, error)
	// Create inserts a rule. Used only by seeding, never by classification.
	Create(ctx context.Context, r *domain.WeightRule) error
}

// HabitStore provides read access to admin-authored habit suggestions.
type HabitStore interface {
	// ListActiveByPattern returns active suggestions for a pattern key,
	// ordered by ascending priority.
	ListActiveByPattern(ctx context.Context, pattern string) ([]domain.HabitSuggestion, error)
	// ListGeneral returns active suggestions tagged with the "general" pattern,
	// ordered by ascending priority.
	ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error)
	// Create inserts a suggestion. Used only by seeding.
	Create(ctx context.Context, h *domain.HabitSuggestion) error
}

// PatternStore persists the per-user pattern cache.
type PatternStore interface {
	// Upsert writes one (user, pattern) row, replacing the previous aggregate.
	Upsert(ctx context.Context, p *domain.KarmaPattern) error
	// FindByUser returns all cached pattern rows for a user.
	FindByUser(ctx context.Context, userID string) ([]domain.KarmaPattern, error)
}

// SummaryStore persists per-period score rollups.
type SummaryStore interface {
	// Upsert writes one (user, period, period start) row idempotently.
	Upsert(ctx context.Context, s *domain.ScoreSummary) error
	// Get returns the summary for the exact period start, or ErrNotFound.
	Get(ctx context.Context, userID string, period domain.PeriodType, periodStart time.Time) (*domain.ScoreSummary, error)
}

// UserStore is the identity collaborator surface.
type UserStore interface {
	// Exists reports whether the opaque user identity is known.
	Exists(ctx context.Context, userID string) (bool, error)
	// ActiveSince returns user IDs with at least one entry since the given time.
	// Used by the summary rollup scheduler.
	ActiveSince(ctx context.Context, since time.Time) ([]string, error)
}
