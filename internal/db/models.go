package db

import (
	"time"

	"gorm.io/datatypes"
)

// Like statuses.
const (
	LikePending      = "pending"
	LikeReciprocated = "reciprocated"
)

// Profile is the dating profile of one user. UserID is the opaque identity
// issued by the auth collaborator.
//
// Gender is nullable: NULL means "not declared". Empty strings are never stored.
type Profile struct {
	UserID      string                      `gorm:"primaryKey;size:64"`
	DisplayName string                      `gorm:"size:128;not null;default:''"`
	Bio         string                      `gorm:"type:text"`
	Age         int                         `gorm:"not null;default:0"`
	Location    string                      `gorm:"size:128"`
	Interests   datatypes.JSONSlice[string] `gorm:"type:json"`
	AvatarURL   string                      `gorm:"size:512"`
	Gender      *string                     `gorm:"size:32;index"`
	IsPremium   bool                        `gorm:"not null;default:false"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime"`
}

// Like is a one-directional like from LikerID to LikedID.
//
// Composite PK: (LikerID, LikedID)
//   - at most one row per ordered pair; a second insert is a duplicate-key error.
//
// Indexes:
//   - idx_liked_created(liked_id, created_at DESC, liker_id)
//     Optimizes "who liked me" listings with cursor pagination.
type Like struct {
	LikerID   string    `gorm:"primaryKey;size:64;index:idx_liked_created,priority:3"`
	LikedID   string    `gorm:"primaryKey;size:64;index:idx_liked_created,priority:1"`
	Status    string    `gorm:"size:16;not null;default:pending"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_liked_created,priority:2,sort:desc"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Message is the canonical chat message for both direct and stream conversations.
//
// ConversationKey is "dm:<lo>:<hi>" for direct messages and "stream:<id>" for
// stream chat. ReceiverID is empty for stream chat, StreamID is empty for DMs.
type Message struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	ConversationKey string    `gorm:"size:160;not null;index:idx_conv_created,priority:1" json:"conversation_key"`
	SenderID        string    `gorm:"size:64;not null;index:idx_unread,priority:2" json:"sender_id"`
	ReceiverID      string    `gorm:"size:64;index:idx_unread,priority:1" json:"receiver_id,omitempty"`
	StreamID        string    `gorm:"size:64" json:"stream_id,omitempty"`
	Body            string    `gorm:"type:text;not null" json:"body"`
	Read            bool      `gorm:"column:is_read;not null;default:false;index:idx_unread,priority:3" json:"read"`
	CreatedAt       time.Time `gorm:"index:idx_conv_created,priority:2" json:"created_at"`
}

// LegacyMessage is a row of the pre-migration direct message table. It is only
// read (and marked read); new messages always go to Message.
type LegacyMessage struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SenderID   string    `gorm:"size:64;not null;index"`
	ReceiverID string    `gorm:"size:64;not null;index"`
	Content    string    `gorm:"type:text;not null"`
	IsRead     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (LegacyMessage) TableName() string { return "legacy_messages" }

// Stream is a live stream. ViewerCount is a denormalized copy of the number of
// StreamViewer rows, rewritten on every recount.
type Stream struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	StreamerID  string     `gorm:"size:64;not null;index" json:"streamer_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	IsActive    bool       `gorm:"not null;default:true;index" json:"is_active"`
	PremiumOnly bool       `gorm:"not null;default:false" json:"premium_only"`
	ViewerCount int64      `gorm:"not null;default:0" json:"viewer_count"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// StreamViewer exists while UserID is watching StreamID.
type StreamViewer struct {
	StreamID string    `gorm:"primaryKey;size:64" json:"stream_id"`
	UserID   string    `gorm:"primaryKey;size:64" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Account holds the bcrypt hash of a user's API token.
type Account struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	TokenHash string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Profile{}, &Like{}, &Message{}, &LegacyMessage{},
		&Stream{}, &StreamViewer{}, &Account{},
	}
}
