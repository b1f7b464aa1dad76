package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/parleychat/parley/internal/domains/chat"
	"gorm.io/gorm"
)

// ConversationEntity represents the database entity for a Conversation
type ConversationEntity struct {
	ID            string    `gorm:"primaryKey;type:char(36);not null"`
	Title         string    `gorm:"type:varchar(255);not null"`
	LastMessageAt time.Time `gorm:"column:last_message_at;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime(3)"`
}

func (ConversationEntity) TableName() string {
	return "conversations"
}

func (c *ConversationEntity) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// ToDomain converts ConversationEntity to domain Conversation
func (c *ConversationEntity) ToDomain() *chat.Conversation {
	return &chat.Conversation{
		ID:            c.ID,
		Title:         c.Title,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

// MembershipEntity links one user to one conversation
type MembershipEntity struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"type:char(36);not null;uniqueIndex:idx_member,priority:1"`
	UserID         string    `gorm:"type:char(36);not null;uniqueIndex:idx_member,priority:2;index"`
	LastReadAt     time.Time `gorm:"column:last_read_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime(3)"`
}

func (MembershipEntity) TableName() string {
	return "conversation_members"
}

// ChatEventEntity represents one persisted chat event
type ChatEventEntity struct {
	ID             string    `gorm:"primaryKey;type:char(36);not null"`
	ConversationID string    `gorm:"type:char(36);not null;index:idx_conv_created,priority:1"`
	AuthorID       string    `gorm:"type:char(36);not null"`
	Body           string    `gorm:"type:text;not null"`
	Kind           string    `gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime(3);index:idx_conv_created,priority:2"`
}

func (ChatEventEntity) TableName() string {
	return "chat_events"
}

func (e *ChatEventEntity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// ToDomain converts ChatEventEntity to a domain ChatEvent. The author
// display name is resolved separately.
func (e *ChatEventEntity) ToDomain(authorName string) *chat.ChatEvent {
	return &chat.ChatEvent{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		AuthorID:       e.AuthorID,
		AuthorName:     authorName,
		Body:           e.Body,
		Kind:           chat.EventKind(e.Kind),
		CreatedAt:      e.CreatedAt,
	}
}
