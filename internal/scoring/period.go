package scoring

import (
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
)

// Bounds returns the half-open [start, end) window containing the instant,
// in UTC. Daily windows are calendar days, weekly windows are anchored on
// Sunday 00:00, monthly windows are calendar months.
func Bounds(p domain.PeriodType, at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case domain.PeriodWeekly:
		start := midnight.AddDate(0, 0, -int(midnight.Weekday()))
		return start, start.AddDate(0, 0, 7)
	case domain.PeriodMonthly:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default: // daily
		return midnight, midnight.AddDate(0, 0, 1)
	}
}

// PreviousBounds returns the window immediately before the one containing
// the instant.
func PreviousBounds(p domain.PeriodType, at time.Time) (time.Time, time.Time) {
	start, _ := Bounds(p, at)
	return Bounds(p, start.Add(-time.Second))
}
