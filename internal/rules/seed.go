package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// SeedResult reports what a seeding run did.
type SeedResult struct {
	RulesSeeded   int
	RulesSkipped  int
	HabitsSeeded  int
	HabitsSkipped int
}

// DefaultWeightRules returns the built-in weight rule set. IDs and timestamps
// are left zero; the seeder fills them in.
func DefaultWeightRules() []domain.WeightRule {
	return []domain.WeightRule{
		{Category: "virtue", Pattern: "kindness", Name: "Acts of kindness", Type: domain.KarmaGood, Weight: 15,
			Keywords: []string{"kind", "kindness", "care", "compassion", "comfort"}},
		{Category: "virtue", Pattern: "helping", Name: "Helping others", Type: domain.KarmaGood, Weight: 20,
			Keywords: []string{"help", "helped", "assist", "support", "volunteer"}},
		{Category: "virtue", Pattern: "honesty", Name: "Honest conduct", Type: domain.KarmaGood, Weight: 15,
			Keywords: []string{"honest", "truth", "admitted", "confessed", "transparent"}},
		{Category: "virtue", Pattern: "discipline", Name: "Self-discipline", Type: domain.KarmaGood, Weight: 15,
			Keywords: []string{"exercise", "meditate", "woke", "early", "routine", "practice"}},
		{Category: "virtue", Pattern: "generosity", Name: "Generosity", Type: domain.KarmaGood, Weight: 20,
			Keywords: []string{"donate", "donated", "gave", "shared", "charity", "gift"}},
		{Category: "vice", Pattern: "anger", Name: "Anger and harsh words", Type: domain.KarmaBad, Weight: -15,
			Keywords: []string{"angry", "anger", "yelled", "shouted", "rage", "insulted"}},
		{Category: "vice", Pattern: "dishonesty", Name: "Dishonest conduct", Type: domain.KarmaBad, Weight: -20,
			Keywords: []string{"lied", "lie", "cheated", "deceived", "stole", "dishonest"}},
		{Category: "vice", Pattern: "laziness", Name: "Laziness and avoidance", Type: domain.KarmaBad, Weight: -10,
			Keywords: []string{"lazy", "procrastinated", "skipped", "avoided", "overslept", "wasted"}},
		{Category: "vice", Pattern: "ego", Name: "Ego and pride", Type: domain.KarmaBad, Weight: -15,
			Keywords: []string{"bragged", "boasted", "arrogant", "mocked", "belittled", "selfish"}},
	}
}

// DefaultHabitSuggestions returns the built-in remediation catalog, one or
// more suggestions per vice pattern plus general-purpose entries.
func DefaultHabitSuggestions() []domain.HabitSuggestion {
	return []domain.HabitSuggestion{
		{Pattern: "anger", Title: "Two-minute pause", Priority: 1, DurationDays: 30,
			Description: "Pause for two minutes before responding whenever irritation rises.",
			DailyTasks:  []string{"Notice one moment of irritation and name it", "Take ten slow breaths before replying", "Write down what triggered you today"},
			Motivation:  "Anger fades when it is watched instead of fed.", Active: true},
		{Pattern: "anger", Title: "Evening cool-down walk", Priority: 2, DurationDays: 30,
			Description: "A short walk at the end of the day to release accumulated tension.",
			DailyTasks:  []string{"Walk for fifteen minutes without your phone"},
			Motivation:  "Movement settles what the mind cannot.", Active: true},
		{Pattern: "laziness", Title: "One small task first", Priority: 1, DurationDays: 30,
			Description: "Start each morning by finishing one small postponed task.",
			DailyTasks:  []string{"Pick the smallest postponed task", "Finish it before checking messages", "Note how long it actually took"},
			Motivation:  "Momentum is built one finished task at a time.", Active: true},
		{Pattern: "laziness", Title: "Fixed wake-up time", Priority: 2, DurationDays: 30,
			Description: "Wake at the same time every day, including weekends.",
			DailyTasks:  []string{"Set one alarm and get up on the first ring", "Record your wake-up time"},
			Motivation:  "Discipline in the first hour shapes the rest of the day.", Active: true},
		{Pattern: "dishonesty", Title: "Daily truth check", Priority: 1, DurationDays: 30,
			Description: "Review the day each evening for moments you shaded the truth.",
			DailyTasks:  []string{"Recall one conversation and check it for exaggeration", "Correct one inaccuracy, however small"},
			Motivation:  "Truthfulness practiced in small things holds in large ones.", Active: true},
		{Pattern: "ego", Title: "Credit someone else", Priority: 1, DurationDays: 30,
			Description: "Deliberately give credit to another person once a day.",
			DailyTasks:  []string{"Thank someone specifically for something they did", "Ask one question and listen without interrupting"},
			Motivation:  "Humility grows by lifting others.", Active: true},
		{Pattern: "general", Title: "Daily reflection", Priority: 1, DurationDays: 30,
			Description: "Spend five minutes each evening reviewing the day's actions.",
			DailyTasks:  []string{"Write down one good action and one you regret", "Plan one improvement for tomorrow"},
			Motivation:  "A day reviewed is a day learned from.", Active: true},
		{Pattern: "general", Title: "Morning intention", Priority: 2, DurationDays: 30,
			Description: "Set one concrete intention before the day begins.",
			DailyTasks:  []string{"Write a single sentence stating today's intention"},
			Motivation:  "A clear intention steadies a scattered day.", Active: true},
		{Pattern: "general", Title: "One act of service", Priority: 3, DurationDays: 30,
			Description: "Do one small thing for someone else every day, unasked.",
			DailyTasks:  []string{"Find one small way to make someone's day easier"},
			Motivation:  "Service is the fastest path out of self-concern.", Active: true},
	}
}

// Seed inserts the built-in weight rules and habit suggestions, skipping any
// pattern key that already has rows. Safe to run repeatedly.
func Seed(ctx context.Context, ruleStore ledger.RuleStore, habitStore ledger.HabitStore, logger *slog.Logger) (*SeedResult, error) {
	result := &SeedResult{}
	now := time.Now().UTC()

	existing, err := ruleStore.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing existing rules: %w", err)
	}
	existingRules := make(map[string]bool, len(existing))
	for _, r := range existing {
		existingRules[r.Pattern] = true
	}

	for _, r := range DefaultWeightRules() {
		if existingRules[r.Pattern] {
			logger.Info("rule already exists, skipping", slog.String("pattern", r.Pattern))
			result.RulesSkipped++
			continue
		}
		r.ID = domain.NewID()
		r.Active = true
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := ruleStore.Create(ctx, &r); err != nil {
			return result, fmt.Errorf("seeding rule %q: %w", r.Pattern, err)
		}
		result.RulesSeeded++
	}

	for _, h := range DefaultHabitSuggestions() {
		have, err := habitStore.ListActiveByPattern(ctx, h.Pattern)
		if err != nil {
			return result, fmt.Errorf("listing habits for %q: %w", h.Pattern, err)
		}
		exists := false
		for _, existing := range have {
			if existing.Title == h.Title {
				exists = true
				break
			}
		}
		if exists {
			logger.Info("habit suggestion already exists, skipping",
				slog.String("pattern", h.Pattern), slog.String("title", h.Title))
			result.HabitsSkipped++
			continue
		}
		h.ID = domain.NewID()
		h.CreatedAt = now
		h.UpdatedAt = now
		if err := habitStore.Create(ctx, &h); err != nil {
			return result, fmt.Errorf("seeding habit %q: %w", h.Title, err)
		}
		result.HabitsSeeded++
	}

	logger.Info("seeding complete",
		slog.Int("rules_seeded", result.RulesSeeded),
		slog.Int("rules_skipped", result.RulesSkipped),
		slog.Int("habits_seeded", result.HabitsSeeded),
		slog.Int("habits_skipped", result.HabitsSkipped),
	)
	return result, nil
}
