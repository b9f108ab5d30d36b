package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sattvalabs/karmika/internal/classifier"
	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/habits"
	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/patterns"
	"github.com/sattvalabs/karmika/internal/rules"
	"github.com/sattvalabs/karmika/internal/scoring"
	"github.com/sattvalabs/karmika/internal/streak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memLedger is an in-memory implementation of every ledger interface.
type memLedger struct {
	users     map[string]bool
	entries   []domain.KarmaEntry
	ruleRows  []domain.WeightRule
	habitRows []domain.HabitSuggestion
	patterns  map[string]domain.KarmaPattern
	summaries map[string]domain.ScoreSummary
}

func newMemLedger(users ...string) *memLedger {
	m := &memLedger{
		users:     make(map[string]bool),
		patterns:  make(map[string]domain.KarmaPattern),
		summaries: make(map[string]domain.ScoreSummary),
	}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memLedger) Create(_ context.Context, e *domain.KarmaEntry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLedger) FindByUser(_ context.Context, userID string) ([]domain.KarmaEntry, error) {
	var out []domain.KarmaEntry
	for _, e := range m.entries {
		if e.UserID == userID && !e.Deleted {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	return out, nil
}

func (m *memLedger) FindByUserSince(ctx context.Context, userID string, from, to time.Time) ([]domain.KarmaEntry, error) {
	all, _ := m.FindByUser(ctx, userID)
	var out []domain.KarmaEntry
	for _, e := range all {
		if !e.EntryDate.Before(from) && e.EntryDate.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) SoftDelete(_ context.Context, userID string, id uuid.UUID) error {
	for i, e := range m.entries {
		if e.UserID == userID && e.ID == id && !e.Deleted {
			m.entries[i].Deleted = true
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (m *memLedger) ListActive(_ context.Context) ([]domain.WeightRule, error) {
	return m.ruleRows, nil
}

func (m *memLedger) CreateRule(_ context.Context, r *domain.WeightRule) error {
	m.ruleRows = append(m.ruleRows, *r)
	return nil
}

func (m *memLedger) ListActiveByPattern(_ context.Context, pattern string) ([]domain.HabitSuggestion, error) {
	var out []domain.HabitSuggestion
	for _, h := range m.habitRows {
		if h.Pattern == pattern && h.Active {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *memLedger) ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error) {
	return m.ListActiveByPattern(ctx, "general")
}

func (m *memLedger) CreateHabit(_ context.Context, h *domain.HabitSuggestion) error {
	m.habitRows = append(m.habitRows, *h)
	return nil
}

func (m *memLedger) Upsert(_ context.Context, p *domain.KarmaPattern) error {
	m.patterns[p.UserID+"|"+p.Pattern] = *p
	return nil
}

func (m *memLedger) FindPatternsByUser(_ context.Context, userID string) ([]domain.KarmaPattern, error) {
	var out []domain.KarmaPattern
	for _, p := range m.patterns {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memLedger) UpsertSummary(_ context.Context, s *domain.ScoreSummary) error {
	m.summaries[s.UserID+"|"+string(s.Period)+"|"+s.PeriodStart.Format(time.RFC3339)] = *s
	return nil
}

func (m *memLedger) GetSummary(_ context.Context, userID string, p domain.PeriodType, start time.Time) (*domain.ScoreSummary, error) {
	if s, ok := m.summaries[userID+"|"+string(p)+"|"+start.Format(time.RFC3339)]; ok {
		return &s, nil
	}
	return nil, ledger.ErrNotFound
}

func (m *memLedger) Exists(_ context.Context, userID string) (bool, error) {
	return m.users[userID], nil
}

func (m *memLedger) ActiveSince(_ context.Context, since time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, e := range m.entries {
		if !e.Deleted && !e.EntryDate.Before(since) && !seen[e.UserID] {
			seen[e.UserID] = true
			out = append(out, e.UserID)
		}
	}
	return out, nil
}

// Adapter views so memLedger satisfies each narrow interface despite
// overlapping method names.
type rulesView struct{ *memLedger }

func (v rulesView) Create(ctx context.Context, r *domain.WeightRule) error {
	return v.CreateRule(ctx, r)
}

type habitsView struct{ *memLedger }

func (v habitsView) Create(ctx context.Context, h *domain.HabitSuggestion) error {
	return v.CreateHabit(ctx, h)
}

type patternsView struct{ *memLedger }

func (v patternsView) FindByUser(ctx context.Context, userID string) ([]domain.KarmaPattern, error) {
	return v.FindPatternsByUser(ctx, userID)
}

type summariesView struct{ *memLedger }

func (v summariesView) Upsert(ctx context.Context, s *domain.ScoreSummary) error {
	return v.UpsertSummary(ctx, s)
}

func (v summariesView) Get(ctx context.Context, userID string, p domain.PeriodType, start time.Time) (*domain.ScoreSummary, error) {
	return v.GetSummary(ctx, userID, p, start)
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func newTestEngine(t *testing.T, mem *memLedger, now func() time.Time) *Engine {
	t.Helper()
	logger := discardLogger()

	if _, err := rules.Seed(context.Background(), rulesView{mem}, habitsView{mem}, logger); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	src := rules.NewCachedSource(rulesView{mem}, time.Minute)
	cls := classifier.New(src, habitsView{mem}, logger)
	sc := scoring.NewService(mem, summariesView{mem}, logger)
	pa := patterns.NewAnalyzer(mem, patternsView{mem}, logger)
	hr := habits.NewRecommender(habitsView{mem}, logger)
	st := streak.NewTracker(mem, logger, streak.WithClock(now))

	return New(mem, mem, cls, sc, pa, hr, st, logger, WithClock(now))
}

func TestRecordAction_RuleClassified(t *testing.T) {
	mem := newMemLedger("u1")
	eng := newTestEngine(t, mem, fixedClock(2024, 3, 15))

	entry, err := eng.RecordAction(context.Background(), RecordActionInput{
		UserID: "u1",
		Text:   "I helped my neighbor move furniture",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Type != domain.KarmaGood {
		t.Errorf("expected good, got %q", entry.Type)
	}
	if entry.Source != domain.SourceRule {
		t.Errorf("expected rule source, got %q", entry.Source)
	}
	if entry.Pattern != "helping" {
		t.Errorf("expected helping, got %q", entry.Pattern)
	}
	if len(entry.Suggestions) == 0 {
		t.Error("expected suggestions to be resolved")
	}
	if len(mem.entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(mem.entries))
	}
}

func TestRecordAction_Validation(t *testing.T) {
	eng := newTestEngine(t, newMemLedger("u1"), fixedClock(2024, 3, 15))

	_, err := eng.RecordAction(context.Background(), RecordActionInput{UserID: "u1", Text: "   "})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	_, err = eng.RecordAction(context.Background(), RecordActionInput{UserID: "ghost", Text: "hello"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	_, err = eng.RecordAction(context.Background(), RecordActionInput{UserID: "u1", Text: "hello", SelfAssessment: "great"})
	if !errors.Is(err, ErrInvalidSelfAssessment) {
		t.Errorf("expected ErrInvalidSelfAssessment, got %v", err)
	}
}

func TestRecordAction_SelfAssessmentStoredVerbatim(t *testing.T) {
	eng := newTestEngine(t, newMemLedger("u1"), fixedClock(2024, 3, 15))

	entry, err := eng.RecordAction(context.Background(), RecordActionInput{
		UserID:         "u1",
		Text:           "I helped someone carry groceries",
		SelfAssessment: "Bad",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The user's own label is stored but never overrides classification.
	if entry.SelfAssessment != "bad" {
		t.Errorf("expected self assessment bad, got %q", entry.SelfAssessment)
	}
	if entry.Type != domain.KarmaGood {
		t.Errorf("classification must not follow self assessment, got %q", entry.Type)
	}
}

func TestDeleteEntry_RemovesFromScore(t *testing.T) {
	mem := newMemLedger("u1")
	eng := newTestEngine(t, mem, fixedClock(2024, 3, 15))

	entry, err := eng.RecordAction(context.Background(), RecordActionInput{
		UserID: "u1", Text: "I helped out at the shelter",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before, err := eng.OverallScore(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.Normalized <= 50 {
		t.Fatalf("expected score above midpoint, got %v", before.Normalized)
	}

	if err := eng.DeleteEntry(context.Background(), "u1", entry.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := eng.OverallScore(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Normalized != 50 {
		t.Errorf("expected midpoint after delete, got %v", after.Normalized)
	}

	if err := eng.DeleteEntry(context.Background(), "u1", uuid.New()); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPeriodScore_InvalidPeriod(t *testing.T) {
	eng := newTestEngine(t, newMemLedger("u1"), fixedClock(2024, 3, 15))
	if _, err := eng.PeriodScore(context.Background(), "u1", "hourly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestDashboard_FreshUser(t *testing.T) {
	eng := newTestEngine(t, newMemLedger("u1"), fixedClock(2024, 3, 15))

	dash, err := eng.Dashboard(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dash.Overall.Normalized != 50 {
		t.Errorf("expected 50, got %v", dash.Overall.Normalized)
	}
	if dash.Today.Trend != scoring.TrendStable || dash.Today.TrendPercentage != 0 {
		t.Errorf("expected stable/0: %+v", dash.Today)
	}
	if dash.Streak.CurrentStreak != 0 || dash.Streak.Level != streak.LevelAwaken {
		t.Errorf("unexpected streak: %+v", dash.Streak)
	}
	// No weaknesses yet: the general catalog supplies three suggestions.
	if len(dash.Habits.Suggestions) != 3 {
		t.Errorf("expected 3 general suggestions, got %d", len(dash.Habits.Suggestions))
	}
	if len(dash.Recent) != 0 {
		t.Errorf("expected no recent entries, got %d", len(dash.Recent))
	}
}

func TestDashboard_ComposedFlow(t *testing.T) {
	mem := newMemLedger("u1")
	now := fixedClock(2024, 3, 15)
	eng := newTestEngine(t, mem, now)

	// Two angry days make anger a weakness.
	texts := []string{
		"I yelled at my brother in rage",
		"I got angry and insulted a coworker",
		"I helped an old friend move",
	}
	for _, txt := range texts {
		if _, err := eng.RecordAction(context.Background(), RecordActionInput{UserID: "u1", Text: txt}); err != nil {
			t.Fatalf("recording %q: %v", txt, err)
		}
	}

	dash, err := eng.Dashboard(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dash.Patterns.Weaknesses) != 1 || dash.Patterns.Weaknesses[0].Pattern != "anger" {
		t.Fatalf("expected anger weakness, got %+v", dash.Patterns.Weaknesses)
	}
	// Weakness-driven plan, drawn from the anger catalog.
	if len(dash.Habits.Suggestions) == 0 {
		t.Fatal("expected suggestions for the anger weakness")
	}
	for _, s := range dash.Habits.Suggestions {
		if s.Pattern != "anger" {
			t.Errorf("expected anger suggestions, got %q", s.Pattern)
		}
	}
	if dash.Streak.CurrentStreak != 1 {
		t.Errorf("expected streak 1, got %d", dash.Streak.CurrentStreak)
	}
	if len(dash.Recent) != 3 {
		t.Errorf("expected 3 recent entries, got %d", len(dash.Recent))
	}
}
