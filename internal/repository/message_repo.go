package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
)

// MessageRepository stores direct and stream chat messages. With legacy reads
// enabled, direct-message reads also cover the legacy table through the
// adapter in legacy.go, so callers only ever see canonical db.Message values.
type MessageRepository struct {
	db     *gorm.DB
	legacy bool
}

// NewMessageRepository creates a repository; legacy toggles dual reads.
func NewMessageRepository(database *gorm.DB, legacy bool) *MessageRepository {
	return &MessageRepository{db: database, legacy: legacy}
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	PartnerID string
	Last      db.Message
	Unread    int64
}

// Insert persists m, assigning a time-ordered id and creation time when unset.
func (r *MessageRepository) Insert(ctx context.Context, m *db.Message) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message id: %w", err)
		}
		m.ID = id.String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.db.NowFunc()
	}
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

// ListConversation returns every message of a conversation, oldest first.
func (r *MessageRepository) ListConversation(ctx context.Context, key string) ([]db.Message, error) {
	var msgs []db.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_key = ?", key).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	if !r.legacy {
		return msgs, nil
	}
	lo, hi, ok := db.ParseDirectKey(key)
	if !ok {
		return msgs, nil
	}

	legacy, err := r.legacyBetween(ctx, r.db, lo, hi)
	if err != nil {
		return nil, err
	}
	return mergeByTime(msgs, legacy), nil
}

// MarkRead flags every unread message from partner to reader as read and
// returns the updated rows.
func (r *MessageRepository) MarkRead(ctx context.Context, reader, partner string) ([]db.Message, error) {
	var updated []db.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unread []db.Message
		if err := tx.
			Where("conversation_key = ? AND sender_id = ? AND receiver_id = ? AND is_read = ?",
				db.DirectKey(reader, partner), partner, reader, false).
			Order("created_at ASC, id ASC").
			Find(&unread).Error; err != nil {
			return err
		}

		if len(unread) > 0 {
			ids := make([]string, len(unread))
			for i := range unread {
				ids[i] = unread[i].ID
				unread[i].Read = true
			}
			if err := tx.Model(&db.Message{}).Where("id IN ?", ids).Update("is_read", true).Error; err != nil {
				return err
			}
		}
		updated = unread

		if !r.legacy {
			return nil
		}
		legacy, err := r.markLegacyRead(tx, reader, partner)
		if err != nil {
			return err
		}
		updated = mergeByTime(updated, legacy)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CountUnread counts unread messages sent by partner to reader.
func (r *MessageRepository) CountUnread(ctx context.Context, reader, partner string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", partner, reader, false).
		Count(&count).Error; err != nil {
		return 0, err
	}

	if !r.legacy {
		return count, nil
	}
	legacy, err := r.countLegacyUnread(ctx, reader, partner)
	if err != nil {
		return 0, err
	}
	return count + legacy, nil
}

// Conversations lists userID's direct conversations, most recently active first.
func (r *MessageRepository) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var msgs []db.Message
	if err := r.db.WithContext(ctx).
		Where("receiver_id <> '' AND (sender_id = ? OR receiver_id = ?)", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	if r.legacy {
		legacy, err := r.legacyInvolving(ctx, userID)
		if err != nil {
			return nil, err
		}
		msgs = mergeByTime(msgs, legacy)
	}

	byPartner := make(map[string]*ConversationSummary)
	for _, m := range msgs {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		s, ok := byPartner[partner]
		if !ok {
			s = &ConversationSummary{PartnerID: partner}
			byPartner[partner] = s
		}
		s.Last = m // ascending order: the last one wins
		if m.ReceiverID == userID && !m.Read {
			s.Unread++
		}
	}

	out := make([]ConversationSummary, 0, len(byPartner))
	for _, s := range byPartner {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b ConversationSummary) int {
		if c := b.Last.CreatedAt.Compare(a.Last.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.PartnerID, b.PartnerID)
	})
	return out, nil
}

// mergeByTime merges two message lists into creation-time order. The sort is
// stable, so equal timestamps keep canonical rows ahead of legacy ones.
func mergeByTime(a, b []db.Message) []db.Message {
	out := make([]db.Message, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.SortStableFunc(out, func(x, y db.Message) int {
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	return out
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
