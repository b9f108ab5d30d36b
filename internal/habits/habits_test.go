package habits

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/sattvalabs/karmika/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHabitStore struct {
	habits []domain.HabitSuggestion
}

func (f *fakeHabitStore) ListActiveByPattern(_ context.Context, pattern string) ([]domain.HabitSuggestion, error) {
	var out []domain.HabitSuggestion
	for _, h := range f.habits {
		if h.Pattern == pattern && h.Active {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (f *fakeHabitStore) ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error) {
	return f.ListActiveByPattern(ctx, "general")
}

func (f *fakeHabitStore) Create(_ context.Context, h *domain.HabitSuggestion) error {
	f.habits = append(f.habits, *h)
	return nil
}

func suggestion(pattern, title string, priority int, tasks ...string) domain.HabitSuggestion {
	return domain.HabitSuggestion{
		ID:         domain.NewID(),
		Pattern:    pattern,
		Title:      title,
		Priority:   priority,
		DailyTasks: tasks,
		Active:     true,
	}
}

func TestRecommend_PerWeaknessCap(t *testing.T) {
	store := &fakeHabitStore{habits: []domain.HabitSuggestion{
		suggestion("anger", "a1", 1, "t"),
		suggestion("anger", "a2", 2, "t"),
		suggestion("anger", "a3", 3, "t"),
		suggestion("anger", "a4", 4, "t"),
	}}
	r := NewRecommender(store, discardLogger())

	plan, err := r.Recommend(context.Background(), nil, []string{"anger"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(plan.Suggestions))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if plan.Suggestions[i].Title != want {
			t.Errorf("position %d: expected %q, got %q", i, want, plan.Suggestions[i].Title)
		}
	}
}

func TestRecommend_TotalCapAcrossWeaknesses(t *testing.T) {
	store := &fakeHabitStore{habits: []domain.HabitSuggestion{
		suggestion("anger", "a1", 1, "t"),
		suggestion("anger", "a2", 3, "t"),
		suggestion("anger", "a3", 5, "t"),
		suggestion("laziness", "l1", 2, "t"),
		suggestion("laziness", "l2", 4, "t"),
		suggestion("laziness", "l3", 6, "t"),
	}}
	r := NewRecommender(store, discardLogger())

	plan, err := r.Recommend(context.Background(), nil, []string{"anger", "laziness"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Suggestions) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(plan.Suggestions))
	}
	// Re-sorted globally by priority: a1, l1, a2, l2, a3.
	want := []string{"a1", "l1", "a2", "l2", "a3"}
	for i := range want {
		if plan.Suggestions[i].Title != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], plan.Suggestions[i].Title)
		}
	}
}

func TestRecommend_GeneralFallback(t *testing.T) {
	store := &fakeHabitStore{habits: []domain.HabitSuggestion{
		suggestion("general", "g1", 1, "t"),
		suggestion("general", "g2", 2, "t"),
		suggestion("general", "g3", 3, "t"),
		suggestion("general", "g4", 4, "t"),
	}}
	r := NewRecommender(store, discardLogger())

	plan, err := r.Recommend(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Suggestions) != 3 {
		t.Fatalf("expected 3 general suggestions, got %d", len(plan.Suggestions))
	}
	if plan.Suggestions[0].Title != "g1" {
		t.Errorf("expected g1 first, got %q", plan.Suggestions[0].Title)
	}
}

func TestRecommend_NoCatalogRows(t *testing.T) {
	r := NewRecommender(&fakeHabitStore{}, discardLogger())
	plan, err := r.Recommend(context.Background(), nil, []string{"anger"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Suggestions) != 0 {
		t.Errorf("expected empty plan, got %d", len(plan.Suggestions))
	}
	if plan.Quote == "" {
		t.Error("expected a quote even with an empty plan")
	}
}

func TestSchedule_CyclesTasks(t *testing.T) {
	h := suggestion("anger", "pause", 1, "breathe", "walk", "journal")
	h.DurationDays = 30

	sched := Schedule(h)
	if len(sched) != 30 {
		t.Fatalf("expected 30 days, got %d", len(sched))
	}
	if sched[0].Task != "breathe" || sched[1].Task != "walk" || sched[2].Task != "journal" {
		t.Errorf("unexpected first cycle: %+v", sched[:3])
	}
	if sched[3].Task != "breathe" {
		t.Errorf("expected cycle restart on day 4, got %q", sched[3].Task)
	}
	if sched[29].Day != 30 {
		t.Errorf("expected day numbering to reach 30, got %d", sched[29].Day)
	}
}

func TestSchedule_NoTasksUsesFallback(t *testing.T) {
	h := suggestion("anger", "pause", 1)
	sched := Schedule(h)
	if len(sched) != 30 {
		t.Fatalf("expected default 30 days, got %d", len(sched))
	}
	for _, d := range sched {
		if d.Task != fallbackTask {
			t.Fatalf("expected fallback task, got %q", d.Task)
		}
	}
}

func TestPickQuote_ThreeBranches(t *testing.T) {
	weak := pickQuote(nil, []string{"anger"})
	strong := pickQuote([]string{"helping"}, nil)
	generic := pickQuote(nil, nil)

	if weak == strong || strong == generic || weak == generic {
		t.Errorf("expected three distinct quotes: %q %q %q", weak, strong, generic)
	}
	// A weakness takes precedence over a strength.
	if got := pickQuote([]string{"helping"}, []string{"anger"}); got != weak {
		t.Errorf("weakness branch must win, got %q", got)
	}
}
