package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries related to likes and mutual matches between users.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// Insert records liker -> liked and reports whether it completed a mutual match.
//
// Behavior:
//   - Runs in one transaction: insert, reverse lookup, status flip.
//   - If the (liker, liked) row already exists → ErrDuplicate, nothing changes.
//   - If liked -> liker exists → both rows become "reciprocated", mutual = true.
//   - Any other failure rolls everything back.
//
// Example:
//
//	mutual, err := repo.Insert(ctx, "u1", "u2") // user 1 liked user 2
func (r *LikeRepository) Insert(ctx context.Context, likerID, likedID string) (bool, error) {
	var mutual bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := db.Like{LikerID: likerID, LikedID: likedID, Status: db.LikePending}
		if err := tx.Create(&like).Error; err != nil {
			return translate(err)
		}

		var reverse int64
		if err := tx.Model(&db.Like{}).
			Where("liker_id = ? AND liked_id = ?", likedID, likerID).
			Count(&reverse).Error; err != nil {
			return err
		}
		if reverse == 0 {
			return nil
		}

		mutual = true
		return tx.Model(&db.Like{}).
			Where("(liker_id = ? AND liked_id = ?) OR (liker_id = ? AND liked_id = ?)",
				likerID, likedID, likedID, likerID).
			Update("status", db.LikeReciprocated).Error
	})
	if err != nil {
		return false, err
	}
	return mutual, nil
}

// LikedBy returns the ids of every user liker has liked.
func (r *LikeRepository) LikedBy(ctx context.Context, likerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ?", likerID).
		Pluck("liked_id", &ids).Error
	return ids, err
}

// GetLikers returns all users who liked the given recipient.
//
// Behavior:
//   - Ordered by created_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, "u42", nil, 20) // first 20 people who liked user 42
func (r *LikeRepository) GetLikers(
	ctx context.Context,
	likedID string,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	query := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ?", likedID)
	return r.page(query, paginationToken, limit)
}

// GetNewLikers returns users who liked the recipient but have not been liked back.
//
// Example:
//
//	repo.GetNewLikers(ctx, "u42", nil, 20) // first 20 one-way likes for user 42
func (r *LikeRepository) GetNewLikers(
	ctx context.Context,
	likedID string,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	// subquery to exclude mutual likes
	subQuery := r.db.
		Table("likes").
		Select("1").
		Where("liker_id = l.liked_id AND liked_id = l.liker_id")

	query := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ? AND NOT EXISTS (?)", likedID, subQuery)
	return r.page(query, paginationToken, limit)
}

func (r *LikeRepository) page(query *gorm.DB, paginationToken *string, limit int) ([]db.Like, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query = query.
		Order("l.created_at DESC, l.liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(l.created_at < ? OR (l.created_at = ? AND l.liker_id < ?))",
			ts, ts, cursor.UserID,
		)
	}

	var likes []db.Like
	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.LikerID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers returns how many users liked the given recipient.
// Used in conjunction with the Redis cache (DB is fallback).
func (r *LikeRepository) CountLikers(ctx context.Context, likedID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Matches returns the users mutually matched with userID, most recent first.
//
// A match is derived from both rows existing, not from the status tag: two
// reciprocal likes committed concurrently both see no reverse row and stay
// pending. Such pairs are found here and their tags repaired.
func (r *LikeRepository) Matches(ctx context.Context, userID string) ([]db.Like, error) {
	reverse := r.db.
		Table("likes").
		Select("1").
		Where("liker_id = l.liked_id AND liked_id = l.liker_id")

	var likes []db.Like
	if err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liker_id = ? AND EXISTS (?)", userID, reverse).
		Order("l.updated_at DESC, l.liked_id ASC").
		Find(&likes).Error; err != nil {
		return nil, err
	}

	var stale []string
	for _, l := range likes {
		if l.Status != db.LikeReciprocated {
			stale = append(stale, l.LikedID)
		}
	}
	if len(stale) == 0 {
		return likes, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("(liker_id = ? AND liked_id IN ?) OR (liked_id = ? AND liker_id IN ?)", userID, stale, userID, stale).
		Update("status", db.LikeReciprocated).Error; err != nil {
		return nil, err
	}
	for i := range likes {
		likes[i].Status = db.LikeReciprocated
	}
	return likes, nil
}
