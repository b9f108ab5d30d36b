package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.EntryStore = (*EntryRepository)(nil)

// EntryRepository implements ledger.EntryStore with GORM.
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates an EntryRepository.
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create appends one classified entry.
func (r *EntryRepository) Create(ctx context.Context, e *domain.KarmaEntry) error {
	model := toEntryModel(e)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating karma entry: %w", err)
	}
	return nil
}

// FindByUser returns all non-deleted entries, newest first.
func (r *EntryRepository) FindByUser(ctx context.Context, userID string) ([]domain.KarmaEntry, error) {
	var models []KarmaEntryModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted = ?", userID, false).
		Order("entry_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing karma entries: %w", err)
	}
	return toEntries(models), nil
}

// FindByUserSince returns non-deleted entries with entry_date in [from, to),
// newest first.
func (r *EntryRepository) FindByUserSince(ctx context.Context, userID string, from, to time.Time) ([]domain.KarmaEntry, error) {
	var models []KarmaEntryModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted = ? AND entry_date >= ? AND entry_date < ?", userID, false, from, to).
		Order("entry_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing karma entries since %s: %w", from.Format(time.RFC3339), err)
	}
	return toEntries(models), nil
}

// SoftDelete marks an entry deleted. Returns ledger.ErrNotFound when no
// matching live row exists.
func (r *EntryRepository) SoftDelete(ctx context.Context, userID string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&KarmaEntryModel{}).
		Where("id = ? AND user_id = ? AND deleted = ?", id, userID, false).
		Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft-deleting karma entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func toEntryModel(e *domain.KarmaEntry) KarmaEntryModel {
	return KarmaEntryModel{
		ID:             e.ID,
		UserID:         e.UserID,
		Text:           e.Text,
		Type:           string(e.Type),
		Score:          e.Score,
		Category:       e.Category,
		Pattern:        e.Pattern,
		Confidence:     e.Confidence,
		Emotion:        e.Emotion,
		Reasoning:      e.Reasoning,
		Source:         string(e.Source),
		Provider:       e.Provider,
		Suggestions:    StringList(e.Suggestions),
		SelfAssessment: e.SelfAssessment,
		Deleted:        e.Deleted,
		EntryDate:      e.EntryDate,
		CreatedAt:      e.CreatedAt,
	}
}

func toEntry(m *KarmaEntryModel) domain.KarmaEntry {
	return domain.KarmaEntry{
		ID:             m.ID,
		UserID:         m.UserID,
		Text:           m.Text,
		Type:           domain.KarmaType(m.Type),
		Score:          m.Score,
		Category:       m.Category,
		Pattern:        m.Pattern,
		Confidence:     m.Confidence,
		Emotion:        m.Emotion,
		Reasoning:      m.Reasoning,
		Source:         domain.ClassificationSource(m.Source),
		Provider:       m.Provider,
		Suggestions:    []string(m.Suggestions),
		SelfAssessment: m.SelfAssessment,
		Deleted:        m.Deleted,
		EntryDate:      m.EntryDate,
		CreatedAt:      m.CreatedAt,
	}
}

func toEntries(models []KarmaEntryModel) []domain.KarmaEntry {
	out := make([]domain.KarmaEntry, len(models))
	for i := range models {
		out[i] = toEntry(&models[i])
	}
	return out
}
