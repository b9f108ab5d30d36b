// Package rules provides read-only access to the admin-authored weight rule
// table. Classification never mutates shared state: callers receive an
// immutable snapshot, refreshed through a short TTL cache so the small table
// is not re-queried on every action.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Source supplies the active weight rule snapshot for one classification call.
type Source interface {
	Snapshot(ctx context.Context) ([]domain.WeightRule, error)
}

// DefaultTTL is the default snapshot cache lifetime.
const DefaultTTL = 30 * time.Second

// CachedSource is a TTL-cached Source backed by a ledger.RuleStore.
// Thread-safe: concurrent classifications share one snapshot.
type CachedSource struct {
	store ledger.RuleStore
	ttl   time.Duration

	mu        sync.RWMutex
	snapshot  []domain.WeightRule
	expiresAt time.Time
}

// NewCachedSource creates a CachedSource with the given TTL.
func NewCachedSource(store ledger.RuleStore, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedSource{store: store, ttl: ttl}
}

// Snapshot returns the cached rule set, refreshing it from the store when
// expired. The returned slice must be treated as read-only.
func (s *CachedSource) Snapshot(ctx context.Context) ([]domain.WeightRule, error) {
	s.mu.RLock()
	if s.snapshot != nil && time.Now().Before(s.expiresAt) {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check after acquiring the write lock.
	if s.snapshot != nil && time.Now().Before(s.expiresAt) {
		return s.snapshot, nil
	}

	rows, err := s.store.ListActive(ctx)
	if err != nil {
		// Serve the stale snapshot if one exists rather than failing the
		// classification call.
		if s.snapshot != nil {
			return s.snapshot, nil
		}
		return nil, fmt.Errorf("loading weight rules: %w", err)
	}

	s.snapshot = rows
	s.expiresAt = time.Now().Add(s.ttl)
	return s.snapshot, nil
}

// Invalidate drops the cached snapshot so the next call re-queries the store.
func (s *CachedSource) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// StaticSource is a fixed in-memory Source, used in tests and for the
// built-in seed rules before a store exists.
type StaticSource []domain.WeightRule

// Snapshot returns the static rule set.
func (s StaticSource) Snapshot(_ context.Context) ([]domain.WeightRule, error) {
	return s, nil
}
