package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
)

// StreamRepository stores live streams and their viewer sets.
type StreamRepository struct {
	db *gorm.DB
}

// NewStreamRepository creates a new repository bound to the given DB connection.
func NewStreamRepository(database *gorm.DB) *StreamRepository {
	return &StreamRepository{db: database}
}

// Create inserts s, assigning an id when unset.
func (r *StreamRepository) Create(ctx context.Context, s *db.Stream) error {
	if s.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate stream id: %w", err)
		}
		s.ID = id.String()
	}
	s.IsActive = true
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

// Get returns the stream or ErrNotFound.
func (r *StreamRepository) Get(ctx context.Context, id string) (*db.Stream, error) {
	var s db.Stream
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// ListActive returns active streams, newest first.
func (r *StreamRepository) ListActive(ctx context.Context, offset, limit int) ([]db.Stream, error) {
	var streams []db.Stream
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&streams).Error
	return streams, err
}

// End marks an active stream as ended and returns the updated row.
// Ending an already ended stream returns it unchanged.
func (r *StreamRepository) End(ctx context.Context, id string) (*db.Stream, error) {
	var out db.Stream
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
			return translate(err)
		}
		if !out.IsActive {
			return nil
		}
		now := tx.NowFunc()
		out.IsActive = false
		out.EndedAt = &now
		return tx.Model(&db.Stream{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_active": false, "ended_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetViewerCount writes the denormalized viewer count back onto the stream.
func (r *StreamRepository) SetViewerCount(ctx context.Context, id string, count int64) error {
	return r.db.WithContext(ctx).
		Model(&db.Stream{}).
		Where("id = ?", id).
		Update("viewer_count", count).Error
}

// UpsertViewer records userID as watching streamID. It reports whether a new
// row was created; re-joining is a no-op.
func (r *StreamRepository) UpsertViewer(ctx context.Context, streamID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.StreamViewer{StreamID: streamID, UserID: userID})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteViewer removes the viewer record and reports whether one existed.
func (r *StreamRepository) DeleteViewer(ctx context.Context, streamID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("stream_id = ? AND user_id = ?", streamID, userID).
		Delete(&db.StreamViewer{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountViewers counts the viewer records of streamID.
func (r *StreamRepository) CountViewers(ctx context.Context, streamID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.StreamViewer{}).
		Where("stream_id = ?", streamID).
		Count(&count).Error
	return count, err
}
