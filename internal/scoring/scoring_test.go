package scoring

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEntryStore struct {
	entries []domain.KarmaEntry
}

func (f *fakeEntryStore) Create(_ context.Context, e *domain.KarmaEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeEntryStore) FindByUser(_ context.Context, userID string) ([]domain.KarmaEntry, error) {
	var out []domain.KarmaEntry
	for _, e := range f.entries {
		if e.UserID == userID && !e.Deleted {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) FindByUserSince(_ context.Context, userID string, from, to time.Time) ([]domain.KarmaEntry, error) {
	var out []domain.KarmaEntry
	for _, e := range f.entries {
		if e.UserID == userID && !e.Deleted && !e.EntryDate.Before(from) && e.EntryDate.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) SoftDelete(_ context.Context, _ string, _ uuid.UUID) error {
	return ledger.ErrNotFound
}

type fakeSummaryStore struct {
	rows map[string]*domain.ScoreSummary
}

func summaryKey(userID string, p domain.PeriodType, start time.Time) string {
	return userID + "|" + string(p) + "|" + start.Format(time.RFC3339)
}

func (f *fakeSummaryStore) Upsert(_ context.Context, s *domain.ScoreSummary) error {
	if f.rows == nil {
		f.rows = make(map[string]*domain.ScoreSummary)
	}
	cp := *s
	f.rows[summaryKey(s.UserID, s.Period, s.PeriodStart)] = &cp
	return nil
}

func (f *fakeSummaryStore) Get(_ context.Context, userID string, p domain.PeriodType, start time.Time) (*domain.ScoreSummary, error) {
	if s, ok := f.rows[summaryKey(userID, p, start)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, ledger.ErrNotFound
}

func entry(userID string, t domain.KarmaType, score float64, at time.Time) domain.KarmaEntry {
	return domain.KarmaEntry{
		ID:        domain.NewID(),
		UserID:    userID,
		Type:      t,
		Score:     score,
		EntryDate: at,
	}
}

func TestCompute_MixedEntries(t *testing.T) {
	now := time.Now().UTC()
	agg := Compute([]domain.KarmaEntry{
		entry("u1", domain.KarmaGood, 20, now),
		entry("u1", domain.KarmaGood, 30, now),
		entry("u1", domain.KarmaBad, -10, now),
	})
	if agg.GoodPoints != 50 || agg.BadPoints != 10 {
		t.Errorf("unexpected points: %+v", agg)
	}
	if agg.RawScore != 40 {
		t.Errorf("expected raw score 40, got %v", agg.RawScore)
	}
	if agg.Normalized != 54 {
		t.Errorf("expected normalized 54, got %v", agg.Normalized)
	}
	if agg.GoodCount != 2 || agg.BadCount != 1 || agg.NeutralCount != 0 {
		t.Errorf("unexpected counts: %+v", agg)
	}
}

func TestCompute_Empty(t *testing.T) {
	agg := Compute(nil)
	if agg.Normalized != 50 {
		t.Errorf("expected midpoint 50, got %v", agg.Normalized)
	}
	if agg.GoodCount != 0 || agg.BadCount != 0 || agg.NeutralCount != 0 {
		t.Errorf("expected zero counts: %+v", agg)
	}
}

func TestCompute_Clamped(t *testing.T) {
	now := time.Now().UTC()
	high := Compute([]domain.KarmaEntry{entry("u1", domain.KarmaGood, 2000, now)})
	if high.Normalized != 100 {
		t.Errorf("expected clamp to 100, got %v", high.Normalized)
	}
	low := Compute([]domain.KarmaEntry{entry("u1", domain.KarmaBad, -2000, now)})
	if low.Normalized != 0 {
		t.Errorf("expected clamp to 0, got %v", low.Normalized)
	}
}

func TestCompute_SkipsDeleted(t *testing.T) {
	now := time.Now().UTC()
	e := entry("u1", domain.KarmaGood, 20, now)
	e.Deleted = true
	agg := Compute([]domain.KarmaEntry{e})
	if agg.GoodCount != 0 || agg.Normalized != 50 {
		t.Errorf("deleted entry counted: %+v", agg)
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		hasPrev  bool
		wantDir  string
		wantPct  float64
	}{
		{"no prior", 60, 0, false, TrendStable, 0},
		{"improving", 60, 50, true, TrendImproving, 20},
		{"declining", 40, 50, true, TrendDeclining, 20},
		{"within band up", 51.5, 50, true, TrendStable, 3},
		{"within band down", 48.5, 50, true, TrendStable, 3},
		{"exactly band", 52, 50, true, TrendStable, 4},
		{"previous zero", 10, 0, true, TrendImproving, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, pct := ComputeTrend(tt.current, tt.previous, tt.hasPrev)
			if dir != tt.wantDir || pct != tt.wantPct {
				t.Errorf("got (%s, %v), want (%s, %v)", dir, pct, tt.wantDir, tt.wantPct)
			}
		})
	}
}

func TestBounds_Daily(t *testing.T) {
	at := time.Date(2024, 3, 15, 17, 42, 0, 0, time.UTC)
	start, end := Bounds(domain.PeriodDaily, at)
	if !start.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end)
	}
}

func TestBounds_WeeklySundayAnchor(t *testing.T) {
	// 2024-03-15 is a Friday; the week starts Sunday 2024-03-10.
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	start, end := Bounds(domain.PeriodWeekly, at)
	if !start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end)
	}

	// A Sunday starts its own week.
	sunday := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	start, _ = Bounds(domain.PeriodWeekly, sunday)
	if !start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday should anchor its own week, got %v", start)
	}
}

func TestBounds_Monthly(t *testing.T) {
	at := time.Date(2024, 2, 20, 6, 0, 0, 0, time.UTC)
	start, end := Bounds(domain.PeriodMonthly, at)
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end)
	}
}

func TestPreviousBounds(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	start, end := PreviousBounds(domain.PeriodDaily, at)
	if !start.Equal(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end)
	}

	mStart, _ := PreviousBounds(domain.PeriodMonthly, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if !mStart.Equal(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected previous month start %v", mStart)
	}
}

func TestService_Score_FirstWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	entries := &fakeEntryStore{entries: []domain.KarmaEntry{
		entry("u1", domain.KarmaGood, 20, now),
		entry("u1", domain.KarmaGood, 30, now.Add(time.Hour)),
		entry("u1", domain.KarmaBad, -10, now.Add(2*time.Hour)),
	}}
	summaries := &fakeSummaryStore{}
	svc := NewService(entries, summaries, discardLogger())

	rep, err := svc.Score(context.Background(), "u1", domain.PeriodDaily, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Normalized != 54 {
		t.Errorf("expected score 54, got %v", rep.Normalized)
	}
	if rep.Trend != TrendStable || rep.TrendPercentage != 0 {
		t.Errorf("first window should be stable: %+v", rep)
	}

	start, _ := Bounds(domain.PeriodDaily, now)
	saved, err := summaries.Get(context.Background(), "u1", domain.PeriodDaily, start)
	if err != nil {
		t.Fatalf("summary not persisted: %v", err)
	}
	if saved.KarmaScore != 54 || saved.GoodCount != 2 || saved.BadCount != 1 {
		t.Errorf("unexpected persisted summary: %+v", saved)
	}
}

func TestService_Score_TrendAgainstPrevious(t *testing.T) {
	day1 := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	entries := &fakeEntryStore{entries: []domain.KarmaEntry{
		entry("u1", domain.KarmaBad, -50, day1),
		entry("u1", domain.KarmaGood, 100, day2),
	}}
	summaries := &fakeSummaryStore{}
	svc := NewService(entries, summaries, discardLogger())

	if _, err := svc.Score(context.Background(), "u1", domain.PeriodDaily, day1); err != nil {
		t.Fatalf("day1: %v", err)
	}
	rep, err := svc.Score(context.Background(), "u1", domain.PeriodDaily, day2)
	if err != nil {
		t.Fatalf("day2: %v", err)
	}
	// Day 1: 45. Day 2: 60. Diff +15, pct round(15/45*100) = 33.
	if rep.Trend != TrendImproving {
		t.Errorf("expected improving, got %q", rep.Trend)
	}
	if rep.TrendPercentage != 33 {
		t.Errorf("expected 33, got %v", rep.TrendPercentage)
	}
}

func TestService_Score_Idempotent(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	entries := &fakeEntryStore{entries: []domain.KarmaEntry{
		entry("u1", domain.KarmaGood, 20, now),
	}}
	summaries := &fakeSummaryStore{}
	svc := NewService(entries, summaries, discardLogger())

	for i := 0; i < 3; i++ {
		if _, err := svc.Score(context.Background(), "u1", domain.PeriodDaily, now); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(summaries.rows) != 1 {
		t.Errorf("expected 1 summary row, got %d", len(summaries.rows))
	}
}

func TestService_Score_EmptyWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := NewService(&fakeEntryStore{}, &fakeSummaryStore{}, discardLogger())

	rep, err := svc.Score(context.Background(), "u1", domain.PeriodDaily, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Normalized != 50 {
		t.Errorf("expected 50, got %v", rep.Normalized)
	}
	if rep.GoodCount != 0 || rep.BadCount != 0 || rep.NeutralCount != 0 {
		t.Errorf("expected zero counts: %+v", rep)
	}
	if rep.Trend != TrendStable || rep.TrendPercentage != 0 {
		t.Errorf("expected stable/0: %+v", rep)
	}
}

func TestService_Overall(t *testing.T) {
	now := time.Now().UTC()
	entries := &fakeEntryStore{entries: []domain.KarmaEntry{
		entry("u1", domain.KarmaGood, 20, now.AddDate(0, 0, -40)),
		entry("u1", domain.KarmaGood, 30, now),
		entry("u1", domain.KarmaBad, -10, now),
		entry("other", domain.KarmaBad, -500, now),
	}}
	svc := NewService(entries, &fakeSummaryStore{}, discardLogger())

	agg, err := svc.Overall(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Normalized != 54 {
		t.Errorf("expected 54, got %v", agg.Normalized)
	}
}
