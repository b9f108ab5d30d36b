// Package engine is the facade over classification, scoring, pattern
// analysis, habit recommendation, and streak tracking. The HTTP gateway and
// CLI talk to the engine, never to the inner services directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sattvalabs/karmika/internal/classifier"
	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/habits"
	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/patterns"
	"github.com/sattvalabs/karmika/internal/scoring"
	"github.com/sattvalabs/karmika/internal/streak"
)

// Validation errors surfaced to callers. Everything else inside the engine
// degrades to defaults rather than failing.
var (
	ErrEmptyText             = errors.New("action text must not be empty")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidPeriod         = errors.New("period must be daily, weekly, or monthly")
	ErrInvalidSelfAssessment = errors.New("self assessment must be good, bad, or neutral")
	ErrEntryNotFound         = errors.New("entry not found")
)

// Engine composes the karma services behind a single surface.
type Engine struct {
	users      ledger.UserStore
	entries    ledger.EntryStore
	classifier *classifier.Classifier
	scoring    *scoring.Service
	patterns   *patterns.Analyzer
	habits     *habits.Recommender
	streak     *streak.Tracker
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires an Engine from its collaborators.
func New(
	users ledger.UserStore,
	entries ledger.EntryStore,
	cls *classifier.Classifier,
	sc *scoring.Service,
	pa *patterns.Analyzer,
	hr *habits.Recommender,
	st *streak.Tracker,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		users:      users,
		entries:    entries,
		classifier: cls,
		scoring:    sc,
		patterns:   pa,
		habits:     hr,
		streak:     st,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordActionInput is one submitted action.
type RecordActionInput struct {
	UserID         string
	Text           string
	SelfAssessment string    // Optional: good, bad, or neutral.
	EntryDate      time.Time // Zero means now.
}

// RecordAction classifies and appends one action. Classification never fails
// once input validation passes; the tiers degrade internally.
func (e *Engine) RecordAction(ctx context.Context, in RecordActionInput) (*domain.KarmaEntry, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := e.checkUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	self := strings.ToLower(strings.TrimSpace(in.SelfAssessment))
	if self != "" && !domain.KarmaType(self).Valid() {
		return nil, ErrInvalidSelfAssessment
	}

	res, err := e.classifier.Classify(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("recording action: %w", err)
	}

	now := e.now().UTC()
	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	entry := &domain.KarmaEntry{
		ID:             domain.NewID(),
		UserID:         in.UserID,
		Text:           text,
		Type:           res.Type,
		Score:          res.Weight,
		Category:       res.Category,
		Pattern:        res.Pattern,
		Confidence:     res.Confidence,
		Emotion:        res.Emotion,
		Reasoning:      res.Reasoning,
		Source:         res.Source,
		Provider:       res.Provider,
		Suggestions:    res.Suggestions,
		SelfAssessment: self,
		EntryDate:      entryDate.UTC(),
		CreatedAt:      now,
	}
	if err := e.entries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving entry: %w", err)
	}

	e.logger.InfoContext(ctx, "action recorded",
		slog.String("user_id", in.UserID),
		slog.String("type", string(entry.Type)),
		slog.String("pattern", entry.Pattern),
		slog.String("source", string(entry.Source)),
		slog.Float64("score", entry.Score),
	)
	return entry, nil
}

// Entries returns the user's non-deleted entries, newest first.
func (e *Engine) Entries(ctx context.Context, userID string) ([]domain.KarmaEntry, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.entries.FindByUser(ctx, userID)
}

// DeleteEntry soft-deletes one entry. The row stays in the ledger but stops
// contributing to scores, patterns, and streaks.
func (e *Engine) DeleteEntry(ctx context.Context, userID string, id uuid.UUID) error {
	if err := e.checkUser(ctx, userID); err != nil {
		return err
	}
	if err := e.entries.SoftDelete(ctx, userID, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// OverallScore computes the all-time aggregate.
func (e *Engine) OverallScore(ctx context.Context, userID string) (*scoring.Aggregate, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.scoring.Overall(ctx, userID)
}

// PeriodScore computes and persists the report for the current window of the
// given period type.
func (e *Engine) PeriodScore(ctx context.Context, userID string, period domain.PeriodType) (*scoring.Report, error) {
	if !period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.scoring.Score(ctx, userID, period, e.now())
}

// Patterns runs the pattern analysis and refreshes the per-user cache.
func (e *Engine) Patterns(ctx context.Context, userID string) (*patterns.Analysis, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.patterns.Analyze(ctx, userID)
}

// Habits analyzes patterns and builds a habit plan from the weaknesses.
func (e *Engine) Habits(ctx context.Context, userID string) (*habits.Plan, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	analysis, err := e.patterns.Analyze(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.habits.Recommend(ctx, patternKeys(analysis.Strengths), patternKeys(analysis.Weaknesses))
}

// Streak computes the user's streak and level status.
func (e *Engine) Streak(ctx context.Context, userID string) (*streak.Status, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.streak.Status(ctx, userID)
}

// Dashboard is the composed read model for one user.
type Dashboard struct {
	Overall  *scoring.Aggregate
	Today    *scoring.Report
	Patterns *patterns.Analysis
	Habits   *habits.Plan
	Streak   *streak.Status
	Recent   []domain.KarmaEntry
}

// maxRecentEntries caps the dashboard's recent-entry list.
const maxRecentEntries = 10

// Dashboard composes all read models in one call.
func (e *Engine) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	if err := e.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	overall, err := e.scoring.Overall(ctx, userID)
	if err != nil {
		return nil, err
	}
	today, err := e.scoring.Score(ctx, userID, domain.PeriodDaily, e.now())
	if err != nil {
		return nil, err
	}
	analysis, err := e.patterns.Analyze(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := e.habits.Recommend(ctx, patternKeys(analysis.Strengths), patternKeys(analysis.Weaknesses))
	if err != nil {
		return nil, err
	}
	status, err := e.streak.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := e.entries.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(recent) > maxRecentEntries {
		recent = recent[:maxRecentEntries]
	}

	return &Dashboard{
		Overall:  overall,
		Today:    today,
		Patterns: analysis,
		Habits:   plan,
		Streak:   status,
		Recent:   recent,
	}, nil
}

func (e *Engine) checkUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserNotFound
	}
	ok, err := e.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func patternKeys(summaries []patterns.Summary) []string {
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.Pattern)
	}
	return out
}
