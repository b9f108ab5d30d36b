// Package scheduler implements the periodic score rollup. On a cron schedule
// it recomputes daily, weekly, and monthly summaries for every user with
// recent activity, so period scores and trends are available without an
// on-demand request having to pay for them.
//
// Rollups are idempotent: each pass upserts the same (user, period, window)
// rows, so a missed or repeated pass never corrupts history.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sattvalabs/karmika/internal/config"
	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/scoring"
)

var rollupPeriods = []domain.PeriodType{
	domain.PeriodDaily,
	domain.PeriodWeekly,
	domain.PeriodMonthly,
}

// Scheduler runs summary rollups on a cron schedule.
// It runs as a background goroutine in serve mode.
type Scheduler struct {
	scoring *scoring.Service
	users   ledger.UserStore
	metrics *Metrics
	logger  *slog.Logger
	config  *config.SchedulerConfig

	parser cron.Parser
	now    func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. Metrics may be nil.
func New(svc *scoring.Service, users ledger.UserStore, metrics *Metrics, logger *slog.Logger, cfg *config.SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		scoring: svc,
		users:   users,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler loop. Returns a cancel function.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	schedule, err := s.parser.Parse(s.config.Spec())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		s.logger.InfoContext(ctx, "rollup scheduler started",
			slog.String("cron_spec", s.config.Spec()),
			slog.String("poll_interval", s.config.PollInterval().String()),
		)

		nextRun := schedule.Next(s.now().UTC())

		ticker := time.NewTicker(s.config.PollInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("rollup scheduler stopped")
				return
			case <-ticker.C:
				now := s.now().UTC()
				if now.Before(nextRun) {
					continue
				}
				s.RunRollup(ctx)
				nextRun = schedule.Next(now)
			}
		}
	}()

	return cancel, nil
}

// RunRollup recomputes summaries for every user active within the lookback
// window. Per-user failures are logged and counted, never fatal: one user's
// bad data must not starve the rest of the pass.
func (s *Scheduler) RunRollup(ctx context.Context) {
	start := s.now().UTC()
	since := start.Add(-s.config.Lookback())

	userIDs, err := s.users.ActiveSince(ctx, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "rollup pass failed to list active users",
			slog.String("error", err.Error()),
		)
		return
	}

	var failed int
	for _, userID := range userIDs {
		for _, period := range rollupPeriods {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.scoring.Score(ctx, userID, period, start); err != nil {
				failed++
				s.logger.WarnContext(ctx, "rollup failed for user",
					slog.String("user_id", userID),
					slog.String("period", string(period)),
					slog.String("error", err.Error()),
				)
				if s.metrics != nil {
					s.metrics.RollupsFailed.Inc()
				}
				continue
			}
			if s.metrics != nil {
				s.metrics.RollupsSucceeded.Inc()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.PassDuration.Observe(time.Since(start).Seconds())
		s.metrics.LastPassUsers.Set(float64(len(userIDs)))
	}

	s.logger.InfoContext(ctx, "rollup pass finished",
		slog.Int("users", len(userIDs)),
		slog.Int("failed", failed),
		slog.String("duration", time.Since(start).String()),
	)
}
