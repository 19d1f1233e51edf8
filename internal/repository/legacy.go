package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
)

// LegacyIDPrefix marks message ids that came from the legacy table so they can
// never collide with canonical ids.
const LegacyIDPrefix = "legacy:"

// fromLegacy maps a legacy row onto the canonical message shape.
func fromLegacy(l db.LegacyMessage) db.Message {
	return db.Message{
		ID:              LegacyIDPrefix + strconv.FormatUint(l.ID, 10),
		ConversationKey: db.DirectKey(l.SenderID, l.ReceiverID),
		SenderID:        l.SenderID,
		ReceiverID:      l.ReceiverID,
		Body:            l.Content,
		Read:            l.IsRead,
		CreatedAt:       l.CreatedAt.UTC(),
	}
}

func fromLegacyRows(rows []db.LegacyMessage) []db.Message {
	out := make([]db.Message, len(rows))
	for i, l := range rows {
		out[i] = fromLegacy(l)
	}
	return out
}

func (r *MessageRepository) legacyBetween(ctx context.Context, tx *gorm.DB, a, b string) ([]db.Message, error) {
	var rows []db.LegacyMessage
	if err := tx.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromLegacyRows(rows), nil
}

func (r *MessageRepository) legacyInvolving(ctx context.Context, userID string) ([]db.Message, error) {
	var rows []db.LegacyMessage
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromLegacyRows(rows), nil
}

func (r *MessageRepository) markLegacyRead(tx *gorm.DB, reader, partner string) ([]db.Message, error) {
	var rows []db.LegacyMessage
	if err := tx.
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", partner, reader, false).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
		rows[i].IsRead = true
	}
	if err := tx.Model(&db.LegacyMessage{}).Where("id IN ?", ids).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	return fromLegacyRows(rows), nil
}

func (r *MessageRepository) countLegacyUnread(ctx context.Context, reader, partner string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.LegacyMessage{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", partner, reader, false).
		Count(&count).Error
	return count, err
}
