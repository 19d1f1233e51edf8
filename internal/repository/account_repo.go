package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
)

// AccountRepository stores API token hashes.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new repository bound to the given DB connection.
func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// Get returns the account of userID or ErrNotFound.
func (r *AccountRepository) Get(ctx context.Context, userID string) (*db.Account, error) {
	var a db.Account
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// Upsert stores tokenHash for userID, replacing any previous hash.
func (r *AccountRepository) Upsert(ctx context.Context, userID, tokenHash string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_hash", "updated_at"}),
		}).
		Create(&db.Account{UserID: userID, TokenHash: tokenHash}).Error
}

// Delete removes the account of userID. Deleting a missing account is not an error.
func (r *AccountRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Account{}).Error
}
