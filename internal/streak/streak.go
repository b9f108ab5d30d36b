// Package streak computes consecutive-day activity streaks and the level
// tiers built on top of them.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Level tiers, keyed on the best streak (max of current and longest).
const (
	LevelAwaken  = "awaken"  // 0-6 days.
	LevelBuilder = "builder" // 7-29 days.
	LevelPro     = "pro"     // 30-89 days.
	LevelMaster  = "master"  // 90+ days.
)

// masterThreshold is the sentinel "next level" value for the top tier.
const masterThreshold = 999

// Status is the streak and level report for one user.
type Status struct {
	CurrentStreak      int
	LongestStreak      int
	Level              string
	LevelName          string
	NextLevelThreshold int
	Progress           float64 // 0-100 through the current tier.
}

// Tracker computes streak status from the entry ledger.
type Tracker struct {
	entries ledger.EntryStore
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker using the real clock.
func NewTracker(entries ledger.EntryStore, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{entries: entries, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Status computes the user's streaks and level as of today (UTC).
func (t *Tracker) Status(ctx context.Context, userID string) (*Status, error) {
	rows, err := t.entries.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	days := activeDays(rows)
	today := dateOf(t.now().UTC())
	current := CurrentStreak(days, today)
	longest := LongestStreak(days)

	st := levelFor(max(current, longest))
	st.CurrentStreak = current
	st.LongestStreak = longest

	t.logger.DebugContext(ctx, "streak computed",
		slog.String("user_id", userID),
		slog.Int("current", current),
		slog.Int("longest", longest),
		slog.String("level", st.Level),
	)
	return st, nil
}

// CurrentStreak counts consecutive active days ending today. A day without
// an entry today means the streak is broken: zero.
func CurrentStreak(days map[time.Time]bool, today time.Time) int {
	n := 0
	for d := today; days[d]; d = d.AddDate(0, 0, -1) {
		n++
	}
	return n
}

// LongestStreak finds the longest consecutive run anywhere in history.
func LongestStreak(days map[time.Time]bool) int {
	if len(days) == 0 {
		return 0
	}
	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// levelFor maps the best streak onto a tier. Progress is the linear fraction
// of the way through the tier; the top tier is always complete.
func levelFor(best int) *Status {
	switch {
	case best >= 90:
		return &Status{Level: LevelMaster, LevelName: "Sattvik", NextLevelThreshold: masterThreshold, Progress: 100}
	case best >= 30:
		return &Status{Level: LevelPro, LevelName: "Karma Yogi", NextLevelThreshold: 90, Progress: tierProgress(best, 30, 90)}
	case best >= 7:
		return &Status{Level: LevelBuilder, LevelName: "Disciplined Bhakt", NextLevelThreshold: 30, Progress: tierProgress(best, 7, 30)}
	default:
		return &Status{Level: LevelAwaken, LevelName: "Awaken", NextLevelThreshold: 7, Progress: tierProgress(best, 0, 7)}
	}
}

func tierProgress(best, lo, hi int) float64 {
	p := float64(best-lo) / float64(hi-lo) * 100
	return math.Min(100, math.Round(p*100)/100)
}

// activeDays collapses entries to the set of UTC dates with activity.
func activeDays(entries []domain.KarmaEntry) map[time.Time]bool {
	days := make(map[time.Time]bool, len(entries))
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		days[dateOf(e.EntryDate.UTC())] = true
	}
	return days
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
