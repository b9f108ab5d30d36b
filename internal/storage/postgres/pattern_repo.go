package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.PatternStore = (*PatternRepository)(nil)

// PatternRepository implements ledger.PatternStore with GORM.
type PatternRepository struct {
	db *gorm.DB
}

// NewPatternRepository creates a PatternRepository.
func NewPatternRepository(db *gorm.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// Upsert writes one pattern row, replacing the stats on conflict with the
// (user_id, pattern) unique index.
func (r *PatternRepository) Upsert(ctx context.Context, p *domain.KarmaPattern) error {
	model := toPatternModel(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "pattern"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "type", "frequency", "total_impact",
				"first_seen", "last_seen", "samples", "updated_at",
			}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("upserting karma pattern: %w", err)
	}
	return nil
}

// FindByUser returns all cached patterns for a user, most frequent first.
func (r *PatternRepository) FindByUser(ctx context.Context, userID string) ([]domain.KarmaPattern, error) {
	var models []KarmaPatternModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("frequency DESC, pattern ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing karma patterns: %w", err)
	}
	out := make([]domain.KarmaPattern, len(models))
	for i := range models {
		out[i] = toPattern(&models[i])
	}
	return out, nil
}

func toPatternModel(p *domain.KarmaPattern) KarmaPatternModel {
	return KarmaPatternModel{
		ID:          p.ID,
		UserID:      p.UserID,
		Pattern:     p.Pattern,
		Name:        p.Name,
		Type:        string(p.Type),
		Frequency:   p.Frequency,
		TotalImpact: p.TotalImpact,
		FirstSeen:   p.FirstSeen,
		LastSeen:    p.LastSeen,
		Samples:     StringList(p.Samples),
		UpdatedAt:   p.UpdatedAt,
	}
}

func toPattern(m *KarmaPatternModel) domain.KarmaPattern {
	return domain.KarmaPattern{
		ID:          m.ID,
		UserID:      m.UserID,
		Pattern:     m.Pattern,
		Name:        m.Name,
		Type:        domain.KarmaType(m.Type),
		Frequency:   m.Frequency,
		TotalImpact: m.TotalImpact,
		FirstSeen:   m.FirstSeen,
		LastSeen:    m.LastSeen,
		Samples:     []string(m.Samples),
		UpdatedAt:   m.UpdatedAt,
	}
}
