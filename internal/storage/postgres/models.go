package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StringList stores a []string as a JSON column. SQLite stores the same
// column as TEXT; both backends share these models.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported StringList source type %T", src)
	}
}

// UserModel maps to the "users" table. User IDs are opaque strings owned by
// the external identity system.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

// KarmaEntryModel maps to the "karma_entries" table. Append-only: rows are
// never updated except for the soft-delete flag.
type KarmaEntryModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID string    `gorm:"not null;index:idx_entries_user_date"`

	Text     string  `gorm:"not null"`
	Type     string  `gorm:"not null;index"`
	Score    float64 `gorm:"not null"`
	Category string
	Pattern  string `gorm:"index"`

	Confidence  float64
	Emotion     string
	Reasoning   string
	Source      string `gorm:"not null"`
	Provider    string
	Suggestions StringList `gorm:"type:jsonb"`

	SelfAssessment string

	Deleted   bool      `gorm:"not null;default:false;index"`
	EntryDate time.Time `gorm:"not null;index:idx_entries_user_date"`
	CreatedAt time.Time
}

func (KarmaEntryModel) TableName() string { return "karma_entries" }

// WeightRuleModel maps to the "weight_rules" table.
type WeightRuleModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Category string    `gorm:"not null;uniqueIndex:idx_rules_category_pattern,priority:1"`
	Pattern  string    `gorm:"not null;uniqueIndex:idx_rules_category_pattern,priority:2"`
	Name     string
	Type     string     `gorm:"not null"`
	Weight   float64    `gorm:"not null"`
	Keywords StringList `gorm:"type:jsonb"`
	Active   bool       `gorm:"not null;default:true;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WeightRuleModel) TableName() string { return "weight_rules" }

// HabitSuggestionModel maps to the "habit_suggestions" table.
type HabitSuggestionModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Pattern      string    `gorm:"not null;index"`
	Title        string    `gorm:"not null"`
	Description  string
	Priority     int `gorm:"not null;default:1"`
	DurationDays int
	DailyTasks   StringList `gorm:"type:jsonb"`
	Motivation   string
	Active       bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (HabitSuggestionModel) TableName() string { return "habit_suggestions" }

// KarmaPatternModel maps to the "karma_patterns" table.
// One row per (user, pattern).
type KarmaPatternModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  string    `gorm:"not null;uniqueIndex:idx_patterns_user_pattern,priority:1"`
	Pattern string    `gorm:"not null;uniqueIndex:idx_patterns_user_pattern,priority:2"`
	Name    string
	Type    string `gorm:"not null"`

	Frequency   int     `gorm:"not null"`
	TotalImpact float64 `gorm:"not null"`
	FirstSeen   time.Time
	LastSeen    time.Time
	Samples     StringList `gorm:"type:jsonb"`

	UpdatedAt time.Time
}

func (KarmaPatternModel) TableName() string { return "karma_patterns" }

// ScoreSummaryModel maps to the "score_summaries" table.
// One row per (user, period, period start); upserts are idempotent.
type ScoreSummaryModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_summaries_user_period,priority:1"`
	Period      string    `gorm:"not null;uniqueIndex:idx_summaries_user_period,priority:2"`
	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_summaries_user_period,priority:3"`
	PeriodEnd   time.Time `gorm:"not null"`

	KarmaScore   float64 `gorm:"not null"`
	GoodCount    int     `gorm:"not null"`
	BadCount     int     `gorm:"not null"`
	NeutralCount int     `gorm:"not null"`
	GoodPoints   float64 `gorm:"not null"`
	BadPoints    float64 `gorm:"not null"`

	Summary    string
	Prediction string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ScoreSummaryModel) TableName() string { return "score_summaries" }
