package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sattvalabs/karmika/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRuleStore struct {
	rules []domain.WeightRule
	calls int
	err   error
}

func (f *fakeRuleStore) ListActive(_ context.Context) ([]domain.WeightRule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

func (f *fakeRuleStore) Create(_ context.Context, r *domain.WeightRule) error {
	f.rules = append(f.rules, *r)
	return nil
}

type fakeHabitStore struct {
	habits []domain.HabitSuggestion
}

func (f *fakeHabitStore) ListActiveByPattern(_ context.Context, pattern string) ([]domain.HabitSuggestion, error) {
	var out []domain.HabitSuggestion
	for _, h := range f.habits {
		if h.Pattern == pattern {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHabitStore) ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error) {
	return f.ListActiveByPattern(ctx, "general")
}

func (f *fakeHabitStore) Create(_ context.Context, h *domain.HabitSuggestion) error {
	f.habits = append(f.habits, *h)
	return nil
}

func TestCachedSource_CachesWithinTTL(t *testing.T) {
	store := &fakeRuleStore{rules: []domain.WeightRule{{Pattern: "kindness"}}}
	src := NewCachedSource(store, time.Minute)

	for i := 0; i < 3; i++ {
		snap, err := src.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(snap))
		}
	}
	if store.calls != 1 {
		t.Errorf("expected 1 store query, got %d", store.calls)
	}
}

func TestCachedSource_InvalidateForcesRefresh(t *testing.T) {
	store := &fakeRuleStore{rules: []domain.WeightRule{{Pattern: "kindness"}}}
	src := NewCachedSource(store, time.Minute)

	if _, err := src.Snapshot(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src.Invalidate()
	if _, err := src.Snapshot(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("expected 2 store queries, got %d", store.calls)
	}
}

func TestCachedSource_ServesStaleOnError(t *testing.T) {
	store := &fakeRuleStore{rules: []domain.WeightRule{{Pattern: "kindness"}}}
	src := NewCachedSource(store, time.Minute)

	if _, err := src.Snapshot(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Expire the snapshot without dropping it, then fail the store.
	src.mu.Lock()
	src.expiresAt = time.Now().Add(-time.Second)
	src.mu.Unlock()
	store.err = errors.New("connection lost")

	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("expected stale snapshot, got error: %v", err)
	}
	if len(snap) != 1 {
		t.Errorf("expected stale snapshot of 1 rule, got %d", len(snap))
	}
}

func TestCachedSource_ErrorWithNoSnapshot(t *testing.T) {
	store := &fakeRuleStore{err: errors.New("down")}
	src := NewCachedSource(store, time.Minute)

	if _, err := src.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error when store fails and no snapshot exists")
	}
}

func TestStaticSource(t *testing.T) {
	src := StaticSource(DefaultWeightRules())
	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap) != 9 {
		t.Errorf("expected 9 built-in rules, got %d", len(snap))
	}
}

func TestDefaultWeightRules_SignsMatchTypes(t *testing.T) {
	for _, r := range DefaultWeightRules() {
		switch r.Type {
		case domain.KarmaGood:
			if r.Weight <= 0 {
				t.Errorf("rule %q: good rule with non-positive weight %v", r.Pattern, r.Weight)
			}
		case domain.KarmaBad:
			if r.Weight >= 0 {
				t.Errorf("rule %q: bad rule with non-negative weight %v", r.Pattern, r.Weight)
			}
		}
		if len(r.Keywords) == 0 {
			t.Errorf("rule %q has no keywords", r.Pattern)
		}
	}
}

func TestSeed_FreshStore(t *testing.T) {
	ruleStore := &fakeRuleStore{}
	habitStore := &fakeHabitStore{}

	res, err := Seed(context.Background(), ruleStore, habitStore, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RulesSeeded != 9 || res.RulesSkipped != 0 {
		t.Errorf("unexpected rule counts: %+v", res)
	}
	if res.HabitsSeeded != 9 || res.HabitsSkipped != 0 {
		t.Errorf("unexpected habit counts: %+v", res)
	}
	for _, r := range ruleStore.rules {
		if !r.Active {
			t.Errorf("seeded rule %q not active", r.Pattern)
		}
		if r.ID == uuid.Nil {
			t.Errorf("seeded rule %q missing ID", r.Pattern)
		}
	}
}

func TestSeed_Idempotent(t *testing.T) {
	ruleStore := &fakeRuleStore{}
	habitStore := &fakeHabitStore{}

	if _, err := Seed(context.Background(), ruleStore, habitStore, discardLogger()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	res, err := Seed(context.Background(), ruleStore, habitStore, discardLogger())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if res.RulesSeeded != 0 || res.HabitsSeeded != 0 {
		t.Errorf("second run should seed nothing: %+v", res)
	}
	if res.RulesSkipped != 9 || res.HabitsSkipped != 9 {
		t.Errorf("second run should skip everything: %+v", res)
	}
	if len(ruleStore.rules) != 9 {
		t.Errorf("expected 9 rules after two runs, got %d", len(ruleStore.rules))
	}
}
