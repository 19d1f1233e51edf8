package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
)

// ProfileRepository provides data access methods for the Profile model.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// CandidateQuery filters discovery candidates.
//
//   - Exclude drops specific user ids (the viewer and everyone they already liked).
//   - Genders, when non-empty, keeps only profiles with one of those genders.
//   - OnlyUnsetGender keeps only profiles with no declared gender.
//   - NoneMatch short-circuits to an empty result.
type CandidateQuery struct {
	Exclude         []string
	Genders         []string
	OnlyUnsetGender bool
	NoneMatch       bool
	Offset          int
	Limit           int
}

// Get returns the profile of userID or ErrNotFound.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Create inserts p unless a profile for the same user exists.
// It reports whether a row was created.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Update writes the given columns of userID's profile.
func (r *ProfileRepository) Update(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPremium updates the denormalized premium flag. Missing profiles are ignored.
func (r *ProfileRepository) SetPremium(ctx context.Context, userID string, premium bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Update("is_premium", premium).Error
}

// IsPremium reads the stored premium flag; a missing profile is not premium.
func (r *ProfileRepository) IsPremium(ctx context.Context, userID string) (bool, error) {
	var flags []bool
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("is_premium", &flags).Error
	if err != nil || len(flags) == 0 {
		return false, err
	}
	return flags[0], nil
}

// Candidates returns discovery candidates, newest profiles first.
func (r *ProfileRepository) Candidates(ctx context.Context, q CandidateQuery) ([]db.Profile, error) {
	if q.NoneMatch || q.Limit <= 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&db.Profile{})
	if len(q.Exclude) > 0 {
		query = query.Where("user_id NOT IN ?", q.Exclude)
	}
	switch {
	case q.OnlyUnsetGender:
		query = query.Where("gender IS NULL")
	case len(q.Genders) > 0:
		query = query.Where("gender IN ?", q.Genders)
	}

	var profiles []db.Profile
	err := query.
		Order("created_at DESC, user_id ASC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&profiles).Error
	return profiles, err
}
