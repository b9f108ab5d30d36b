package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sattvalabs/karmika/internal/ledger"
)

// Compile-time interface check.
var _ ledger.UserStore = (*UserRepository)(nil)

// UserRepository implements ledger.UserStore with GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Exists reports whether the user row is present.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return count > 0, nil
}

// ActiveSince returns distinct user IDs with at least one live entry on or
// after the given time.
func (r *UserRepository) ActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&KarmaEntryModel{}).
		Distinct("user_id").
		Where("deleted = ? AND entry_date >= ?", false, since).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	return ids, nil
}

// Ensure creates the user row if it does not exist.
func (r *UserRepository) Ensure(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	user := UserModel{ID: userID, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("ensuring user %q: %w", userID, err)
	}
	return nil
}
