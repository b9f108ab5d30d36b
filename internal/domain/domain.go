// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// KarmaType classifies an action as good, bad, or neutral.
type KarmaType string

const (
	KarmaGood    KarmaType = "good"
	KarmaBad     KarmaType = "bad"
	KarmaNeutral KarmaType = "neutral"
)

// Valid reports whether t is one of the three known karma types.
func (t KarmaType) Valid() bool {
	return t == KarmaGood || t == KarmaBad || t == KarmaNeutral
}

// ClassificationSource records which tier produced a classification.
type ClassificationSource string

const (
	SourceRule      ClassificationSource = "rule"
	SourceLLM       ClassificationSource = "llm"
	SourceHeuristic ClassificationSource = "heuristic"
)

// PeriodType identifies the window of a score rollup.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// KarmaEntry is one classified user action. It is the append-only source of
// truth: immutable once created except for the soft-delete flag, never
// hard-deleted.
type KarmaEntry struct {
	ID     uuid.UUID
	UserID string // Opaque identifier owned by the external identity collaborator.

	Text     string
	Type     KarmaType
	Score    float64 // Signed. Sign must agree with Type (bad entries carry negative scores).
	Category string
	Pattern  string // Pattern key, e.g. "kindness", "anger". "unknown" when unresolved.

	// Classification metadata, recorded at submission time.
	Confidence  float64 // 0–100.
	Emotion     string
	Reasoning   string
	Source      ClassificationSource
	Provider    string   // LLM provider name when Source is "llm", else empty.
	Suggestions []string // Habit suggestion titles resolved at classification time.

	// SelfAssessment is the user's optional own label ("good"/"bad"/"neutral").
	// Stored verbatim, never re-scored.
	SelfAssessment string

	Deleted   bool
	EntryDate time.Time
	CreatedAt time.Time
}

// WeightRule is an admin-authored classification rule mapping keywords to a
// pattern key, karma type, and base weight. Read-only to the engine.
type WeightRule struct {
	ID       uuid.UUID
	Category string
	Pattern  string // Unique per (Category, Pattern) among active rules.
	Name     string
	Type     KarmaType
	Weight   float64 // Sign must match Type.
	Keywords []string
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HabitSuggestion is admin-authored remediation content for one pattern key.
// Multiple suggestions may exist per pattern, selected by ascending priority.
type HabitSuggestion struct {
	ID           uuid.UUID
	Pattern      string
	Title        string
	Description  string
	Priority     int // 1 = highest.
	DurationDays int
	DailyTasks   []string
	Motivation   string
	Active       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// KarmaPattern is the per-user cached aggregate of one detected pattern.
// One row per (UserID, Pattern); upserted after every analysis run, merging
// frequency and impact rather than replacing history.
type KarmaPattern struct {
	ID      uuid.UUID
	UserID  string
	Pattern string
	Name    string
	Type    KarmaType

	Frequency   int
	TotalImpact float64 // Cumulative signed score.
	FirstSeen   time.Time
	LastSeen    time.Time
	Samples     []string // Up to 5 truncated action texts.

	UpdatedAt time.Time
}

// ScoreSummary is the per-user, per-period score rollup.
// Unique per (UserID, Period, PeriodStart); upserts are idempotent.
type ScoreSummary struct {
	ID          uuid.UUID
	UserID      string
	Period      PeriodType
	PeriodStart time.Time
	PeriodEnd   time.Time

	KarmaScore   float64 // Normalized 0–100.
	GoodCount    int
	BadCount     int
	NeutralCount int
	GoodPoints   float64
	BadPoints    float64

	Summary    string // Optional narrative text.
	Prediction string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}
