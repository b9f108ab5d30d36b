// Package habits turns detected weaknesses into a small, prioritized set of
// habit suggestions with day-by-day schedules and a motivational quote.
package habits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

const (
	// maxPerWeakness caps suggestions drawn for a single weakness.
	maxPerWeakness = 3
	// maxTotal caps the final plan size.
	maxTotal = 5
	// defaultDurationDays is used when a suggestion has no duration.
	defaultDurationDays = 30
	// fallbackTask fills schedule days when a suggestion has no task list.
	fallbackTask = "Continue practicing this habit"
)

// ScheduledTask is one day of a habit schedule.
type ScheduledTask struct {
	Day  int
	Task string
}

// Plan is the recommendation output for one user.
type Plan struct {
	Suggestions []domain.HabitSuggestion
	Schedules   map[string][]ScheduledTask // Keyed by suggestion title.
	Quote       string
}

// Recommender selects habit suggestions from the catalog.
type Recommender struct {
	habits ledger.HabitStore
	logger *slog.Logger
}

// NewRecommender creates a Recommender.
func NewRecommender(habits ledger.HabitStore, logger *slog.Logger) *Recommender {
	return &Recommender{habits: habits, logger: logger}
}

// Recommend builds a plan from the user's detected strengths and weaknesses.
// Each weakness contributes up to three suggestions by ascending priority;
// with no weaknesses the general catalog supplies three. The combined list is
// re-sorted by priority and capped at five.
func (r *Recommender) Recommend(ctx context.Context, strengths, weaknesses []string) (*Plan, error) {
	var picked []domain.HabitSuggestion

	if len(weaknesses) == 0 {
		general, err := r.habits.ListGeneral(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading general suggestions: %w", err)
		}
		if len(general) > 3 {
			general = general[:3]
		}
		picked = general
	} else {
		for _, w := range weaknesses {
			rows, err := r.habits.ListActiveByPattern(ctx, w)
			if err != nil {
				return nil, fmt.Errorf("loading suggestions for %q: %w", w, err)
			}
			if len(rows) > maxPerWeakness {
				rows = rows[:maxPerWeakness]
			}
			picked = append(picked, rows...)
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].Priority != picked[j].Priority {
			return picked[i].Priority < picked[j].Priority
		}
		if picked[i].Pattern != picked[j].Pattern {
			return picked[i].Pattern < picked[j].Pattern
		}
		return picked[i].Title < picked[j].Title
	})
	if len(picked) > maxTotal {
		picked = picked[:maxTotal]
	}

	plan := &Plan{
		Suggestions: picked,
		Schedules:   make(map[string][]ScheduledTask, len(picked)),
		Quote:       pickQuote(strengths, weaknesses),
	}
	for _, h := range picked {
		plan.Schedules[h.Title] = Schedule(h)
	}

	r.logger.DebugContext(ctx, "habit plan built",
		slog.Int("weaknesses", len(weaknesses)),
		slog.Int("suggestions", len(plan.Suggestions)),
	)
	return plan, nil
}

// Schedule expands a suggestion into a day-by-day task list, cycling through
// the daily tasks for the suggestion's duration.
func Schedule(h domain.HabitSuggestion) []ScheduledTask {
	days := h.DurationDays
	if days <= 0 {
		days = defaultDurationDays
	}
	out := make([]ScheduledTask, 0, days)
	for d := 1; d <= days; d++ {
		task := fallbackTask
		if len(h.DailyTasks) > 0 {
			task = h.DailyTasks[(d-1)%len(h.DailyTasks)]
		}
		out = append(out, ScheduledTask{Day: d, Task: task})
	}
	return out
}

// pickQuote chooses between the three quote branches: something to work on,
// something going well, or a generic encouragement.
func pickQuote(strengths, weaknesses []string) string {
	switch {
	case len(weaknesses) > 0:
		return "You have the right to work, but never to the fruit of work. Small daily corrections outweigh grand resolutions."
	case len(strengths) > 0:
		return "Steady practice has made this a part of you. Protect it the way you built it: one day at a time."
	default:
		return "Every action leaves a trace. Record honestly, act deliberately, and the score takes care of itself."
	}
}
