package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.RuleStore = (*RuleRepository)(nil)

// RuleRepository implements ledger.RuleStore with GORM.
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a RuleRepository.
func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListActive returns all active weight rules.
func (r *RuleRepository) ListActive(ctx context.Context) ([]domain.WeightRule, error) {
	var models []WeightRuleModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("category ASC, pattern ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing weight rules: %w", err)
	}
	out := make([]domain.WeightRule, len(models))
	for i := range models {
		out[i] = toRule(&models[i])
	}
	return out, nil
}

// Create inserts one weight rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.WeightRule) error {
	model := toRuleModel(rule)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating weight rule: %w", err)
	}
	return nil
}

func toRuleModel(rule *domain.WeightRule) WeightRuleModel {
	return WeightRuleModel{
		ID:        rule.ID,
		Category:  rule.Category,
		Pattern:   rule.Pattern,
		Name:      rule.Name,
		Type:      string(rule.Type),
		Weight:    rule.Weight,
		Keywords:  StringList(rule.Keywords),
		Active:    rule.Active,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}
}

func toRule(m *WeightRuleModel) domain.WeightRule {
	return domain.WeightRule{
		ID:        m.ID,
		Category:  m.Category,
		Pattern:   m.Pattern,
		Name:      m.Name,
		Type:      domain.KarmaType(m.Type),
		Weight:    m.Weight,
		Keywords:  []string(m.Keywords),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
