package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.SummaryStore = (*SummaryRepository)(nil)

// SummaryRepository implements ledger.SummaryStore with GORM.
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a SummaryRepository.
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert writes one rollup row, replacing the computed fields on conflict
// with the (user_id, period, period_start) unique index.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.ScoreSummary) error {
	model := toSummaryModel(s)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}, {Name: "period_start"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"period_end", "karma_score", "good_count", "bad_count", "neutral_count",
				"good_points", "bad_points", "summary", "prediction", "updated_at",
			}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("upserting score summary: %w", err)
	}
	return nil
}

// Get returns the rollup for one (user, period, window start), or
// ledger.ErrNotFound.
func (r *SummaryRepository) Get(ctx context.Context, userID string, period domain.PeriodType, periodStart time.Time) (*domain.ScoreSummary, error) {
	var model ScoreSummaryModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND period = ? AND period_start = ?", userID, string(period), periodStart).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading score summary: %w", err)
	}
	summary := toSummary(&model)
	return &summary, nil
}

func toSummaryModel(s *domain.ScoreSummary) ScoreSummaryModel {
	return ScoreSummaryModel{
		ID:           s.ID,
		UserID:       s.UserID,
		Period:       string(s.Period),
		PeriodStart:  s.PeriodStart,
		PeriodEnd:    s.PeriodEnd,
		KarmaScore:   s.KarmaScore,
		GoodCount:    s.GoodCount,
		BadCount:     s.BadCount,
		NeutralCount: s.NeutralCount,
		GoodPoints:   s.GoodPoints,
		BadPoints:    s.BadPoints,
		Summary:      s.Summary,
		Prediction:   s.Prediction,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSummary(m *ScoreSummaryModel) domain.ScoreSummary {
	return domain.ScoreSummary{
		ID:           m.ID,
		UserID:       m.UserID,
		Period:       domain.PeriodType(m.Period),
		PeriodStart:  m.PeriodStart,
		PeriodEnd:    m.PeriodEnd,
		KarmaScore:   m.KarmaScore,
		GoodCount:    m.GoodCount,
		BadCount:     m.BadCount,
		NeutralCount: m.NeutralCount,
		GoodPoints:   m.GoodPoints,
		BadPoints:    m.BadPoints,
		Summary:      m.Summary,
		Prediction:   m.Prediction,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
