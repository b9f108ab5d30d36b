package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.HabitStore = (*HabitRepository)(nil)

// HabitRepository implements ledger.HabitStore with GORM.
type HabitRepository struct {
	db *gorm.DB
}

// NewHabitRepository creates a HabitRepository.
func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

// ListActiveByPattern returns active suggestions for a pattern, highest
// priority (lowest number) first.
func (r *HabitRepository) ListActiveByPattern(ctx context.Context, pattern string) ([]domain.HabitSuggestion, error) {
	var models []HabitSuggestionModel
	err := r.db.WithContext(ctx).
		Where("pattern = ? AND active = ?", pattern, true).
		Order("priority ASC, title ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing habit suggestions for %q: %w", pattern, err)
	}
	return toHabits(models), nil
}

// ListGeneral returns active suggestions not tied to any pattern, highest
// priority first.
func (r *HabitRepository) ListGeneral(ctx context.Context) ([]domain.HabitSuggestion, error) {
	var models []HabitSuggestionModel
	err := r.db.WithContext(ctx).
		Where("pattern = ? AND active = ?", "general", true).
		Order("priority ASC, title ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing general habit suggestions: %w", err)
	}
	return toHabits(models), nil
}

// Create inserts one habit suggestion.
func (r *HabitRepository) Create(ctx context.Context, h *domain.HabitSuggestion) error {
	model := toHabitModel(h)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating habit suggestion: %w", err)
	}
	return nil
}

func toHabitModel(h *domain.HabitSuggestion) HabitSuggestionModel {
	return HabitSuggestionModel{
		ID:           h.ID,
		Pattern:      h.Pattern,
		Title:        h.Title,
		Description:  h.Description,
		Priority:     h.Priority,
		DurationDays: h.DurationDays,
		DailyTasks:   StringList(h.DailyTasks),
		Motivation:   h.Motivation,
		Active:       h.Active,
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.UpdatedAt,
	}
}

func toHabit(m *HabitSuggestionModel) domain.HabitSuggestion {
	return domain.HabitSuggestion{
		ID:           m.ID,
		Pattern:      m.Pattern,
		Title:        m.Title,
		Description:  m.Description,
		Priority:     m.Priority,
		DurationDays: m.DurationDays,
		DailyTasks:   []string(m.DailyTasks),
		Motivation:   m.Motivation,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toHabits(models []HabitSuggestionModel) []domain.HabitSuggestion {
	out := make([]domain.HabitSuggestion, len(models))
	for i := range models {
		out[i] = toHabit(&models[i])
	}
	return out
}
