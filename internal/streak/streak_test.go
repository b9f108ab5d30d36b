package streak

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

func (f *fakeEntryStore) FindByUserSince(_ context.Context, userID string, _, _ time.Time) ([]domain.KarmaEntry, error) {
	return f.FindByUser(context.Background(), userID)
}

func (f *fakeEntryStore) SoftDelete(_ context.Context, _ string, _ uuid.UUID) error {
	return ledger.ErrNotFound
}

func entryOn(y int, m time.Month, d int) domain.KarmaEntry {
	return domain.KarmaEntry{
		ID:        domain.NewID(),
		UserID:    "u1",
		Type:      domain.KarmaGood,
		Score:     10,
		EntryDate: time.Date(y, m, d, 14, 30, 0, 0, time.UTC),
	}
}

func trackerAt(store *fakeEntryStore, y int, m time.Month, d int) *Tracker {
	return NewTracker(store, discardLogger(), WithClock(func() time.Time {
		return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	}))
}

func TestStatus_BrokenStreakKeepsLongest(t *testing.T) {
	store := &fakeEntryStore{}
	for d := 1; d <= 5; d++ {
		store.entries = append(store.entries, entryOn(2024, 1, d))
	}
	store.entries = append(store.entries, entryOn(2024, 1, 8))

	st, err := trackerAt(store, 2024, 1, 9).Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.CurrentStreak != 0 {
		t.Errorf("expected current 0, got %d", st.CurrentStreak)
	}
	if st.LongestStreak != 5 {
		t.Errorf("expected longest 5, got %d", st.LongestStreak)
	}
}

func TestStatus_ActiveToday(t *testing.T) {
	store := &fakeEntryStore{}
	for d := 7; d <= 9; d++ {
		store.entries = append(store.entries, entryOn(2024, 1, d))
	}

	st, err := trackerAt(store, 2024, 1, 9).Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.CurrentStreak != 3 {
		t.Errorf("expected current 3, got %d", st.CurrentStreak)
	}
	if st.LongestStreak != 3 {
		t.Errorf("expected longest 3, got %d", st.LongestStreak)
	}
}

func TestStatus_MultipleEntriesSameDay(t *testing.T) {
	store := &fakeEntryStore{entries: []domain.KarmaEntry{
		entryOn(2024, 1, 9),
		entryOn(2024, 1, 9),
		entryOn(2024, 1, 9),
	}}

	st, err := trackerAt(store, 2024, 1, 9).Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.CurrentStreak != 1 || st.LongestStreak != 1 {
		t.Errorf("same-day entries must count once: %+v", st)
	}
}

func TestStatus_NoEntries(t *testing.T) {
	st, err := trackerAt(&fakeEntryStore{}, 2024, 1, 9).Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.CurrentStreak != 0 || st.LongestStreak != 0 {
		t.Errorf("expected zero streaks: %+v", st)
	}
	if st.Level != LevelAwaken || st.LevelName != "Awaken" {
		t.Errorf("expected awaken level: %+v", st)
	}
	if st.Progress != 0 {
		t.Errorf("expected zero progress, got %v", st.Progress)
	}
}

func TestStatus_DeletedEntriesIgnored(t *testing.T) {
	e := entryOn(2024, 1, 9)
	e.Deleted = true
	store := &fakeEntryStore{entries: []domain.KarmaEntry{e}}

	st, err := trackerAt(store, 2024, 1, 9).Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.CurrentStreak != 0 {
		t.Errorf("deleted entry must not extend streak: %+v", st)
	}
}

func TestLevelFor_Tiers(t *testing.T) {
	tests := []struct {
		best      int
		level     string
		name      string
		threshold int
	}{
		{0, LevelAwaken, "Awaken", 7},
		{6, LevelAwaken, "Awaken", 7},
		{7, LevelBuilder, "Disciplined Bhakt", 30},
		{29, LevelBuilder, "Disciplined Bhakt", 30},
		{30, LevelPro, "Karma Yogi", 90},
		{89, LevelPro, "Karma Yogi", 90},
		{90, LevelMaster, "Sattvik", 999},
		{365, LevelMaster, "Sattvik", 999},
	}
	for _, tt := range tests {
		st := levelFor(tt.best)
		if st.Level != tt.level || st.LevelName != tt.name || st.NextLevelThreshold != tt.threshold {
			t.Errorf("levelFor(%d) = %+v, want %s/%s/%d", tt.best, st, tt.level, tt.name, tt.threshold)
		}
	}
}

func TestLevelFor_Progress(t *testing.T) {
	if got := levelFor(0).Progress; got != 0 {
		t.Errorf("awaken start: expected 0, got %v", got)
	}
	// 3.5 of 7 days would be 50; 3 of 7 is 42.86.
	if got := levelFor(3).Progress; got != 42.86 {
		t.Errorf("awaken mid: expected 42.86, got %v", got)
	}
	// Builder: (18-7)/23 = 47.83.
	if got := levelFor(18).Progress; got != 47.83 {
		t.Errorf("builder mid: expected 47.83, got %v", got)
	}
	// Pro: (60-30)/60 = 50.
	if got := levelFor(60).Progress; got != 50 {
		t.Errorf("pro mid: expected 50, got %v", got)
	}
	if got := levelFor(200).Progress; got != 100 {
		t.Errorf("master: expected pinned 100, got %v", got)
	}
}

func TestLongestStreak_SingleRun(t *testing.T) {
	days := map[time.Time]bool{}
	for d := 1; d <= 10; d++ {
		days[time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)] = true
	}
	if got := LongestStreak(days); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}

func TestLongestStreak_PicksMaxRun(t *testing.T) {
	days := map[time.Time]bool{}
	for _, d := range []int{1, 2, 5, 6, 7, 8, 12} {
		days[time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)] = true
	}
	if got := LongestStreak(days); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestCurrentStreak_WalksBackFromToday(t *testing.T) {
	today := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	days := map[time.Time]bool{
		today:                   true,
		today.AddDate(0, 0, -1): true,
		today.AddDate(0, 0, -2): true,
		// Gap at -3.
		today.AddDate(0, 0, -4): true,
	}
	if got := CurrentStreak(days, today); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
