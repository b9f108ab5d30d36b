// Package scoring aggregates classified entries into normalized karma scores
// and per-period summaries. Aggregation is pure; persistence is a separate
// idempotent upsert so rollups can be replayed safely.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Trend directions.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// trendBand is the normalized-score difference treated as noise.
const trendBand = 2.0

// Aggregate is the pure rollup of a set of entries.
type Aggregate struct {
	GoodCount    int
	BadCount     int
	NeutralCount int
	GoodPoints   float64 // Sum of absolute scores of good entries.
	BadPoints    float64 // Sum of absolute scores of bad entries.
	RawScore     float64 // GoodPoints - BadPoints.
	Normalized   float64 // 0-100, centered at 50, two decimals.
}

// Report is one scored window, including the trend against the previous one.
type Report struct {
	Period      domain.PeriodType
	PeriodStart time.Time
	PeriodEnd   time.Time
	Aggregate

	Trend           string
	TrendPercentage float64
}

// Compute rolls up entries. Deleted entries are skipped; an empty input
// yields the neutral midpoint of 50.
func Compute(entries []domain.KarmaEntry) Aggregate {
	var agg Aggregate
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		switch e.Type {
		case domain.KarmaGood:
			agg.GoodCount++
			agg.GoodPoints += math.Abs(e.Score)
		case domain.KarmaBad:
			agg.BadCount++
			agg.BadPoints += math.Abs(e.Score)
		default:
			agg.NeutralCount++
		}
	}
	agg.RawScore = agg.GoodPoints - agg.BadPoints
	agg.Normalized = round2(clamp(50+agg.RawScore/10, 0, 100))
	return agg
}

// ComputeTrend compares a normalized score against the previous period's.
// Differences within the noise band are stable. The percentage is relative
// to the previous score, rounded to the nearest whole number.
func ComputeTrend(current, previous float64, hasPrevious bool) (string, float64) {
	if !hasPrevious {
		return TrendStable, 0
	}
	diff := current - previous
	pct := 0.0
	if previous != 0 {
		pct = math.Round(math.Abs(diff) / previous * 100)
	}
	switch {
	case diff > trendBand:
		return TrendImproving, pct
	case diff < -trendBand:
		return TrendDeclining, pct
	default:
		return TrendStable, pct
	}
}

// Service builds and persists period summaries.
type Service struct {
	entries   ledger.EntryStore
	summaries ledger.SummaryStore
	logger    *slog.Logger
}

// NewService creates a scoring Service.
func NewService(entries ledger.EntryStore, summaries ledger.SummaryStore, logger *slog.Logger) *Service {
	return &Service{entries: entries, summaries: summaries, logger: logger}
}

// Score computes the report for the window containing the instant, comparing
// against the stored summary of the previous window, and upserts the result.
// Re-running for the same window overwrites, never duplicates.
func (s *Service) Score(ctx context.Context, userID string, period domain.PeriodType, at time.Time) (*Report, error) {
	start, end := Bounds(period, at)
	rows, err := s.entries.FindByUserSince(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading entries for %s window: %w", period, err)
	}
	agg := Compute(rows)

	prevStart, _ := PreviousBounds(period, at)
	var prevScore float64
	hasPrev := false
	prev, err := s.summaries.Get(ctx, userID, period, prevStart)
	switch {
	case err == nil:
		prevScore = prev.KarmaScore
		hasPrev = true
	case errors.Is(err, ledger.ErrNotFound):
		// First window for this user, trend stays stable.
	default:
		return nil, fmt.Errorf("loading previous %s summary: %w", period, err)
	}

	trend, pct := ComputeTrend(agg.Normalized, prevScore, hasPrev)

	now := time.Now().UTC()
	summary := &domain.ScoreSummary{
		ID:           domain.NewID(),
		UserID:       userID,
		Period:       period,
		PeriodStart:  start,
		PeriodEnd:    end,
		KarmaScore:   agg.Normalized,
		GoodCount:    agg.GoodCount,
		BadCount:     agg.BadCount,
		NeutralCount: agg.NeutralCount,
		GoodPoints:   agg.GoodPoints,
		BadPoints:    agg.BadPoints,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("saving %s summary: %w", period, err)
	}

	s.logger.DebugContext(ctx, "period scored",
		slog.String("user_id", userID),
		slog.String("period", string(period)),
		slog.Time("period_start", start),
		slog.Float64("score", agg.Normalized),
		slog.String("trend", trend),
	)

	return &Report{
		Period:          period,
		PeriodStart:     start,
		PeriodEnd:       end,
		Aggregate:       agg,
		Trend:           trend,
		TrendPercentage: pct,
	}, nil
}

// Overall computes the all-time aggregate from every non-deleted entry.
// Nothing is persisted.
func (s *Service) Overall(ctx context.Context, userID string) (*Aggregate, error) {
	rows, err := s.entries.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	agg := Compute(rows)
	return &agg, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
