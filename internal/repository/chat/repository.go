package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/parleychat/parley/internal/domains/chat"
	"gorm.io/gorm"
)

const contextCachePrefix = "parley:ctx:"

type GormChatRepo struct {
	db       *gorm.DB
	rc       *redis.Client
	cacheTTL time.Duration
}

// NewGormChatRepo creates a GORM-backed chat repository. rc may be nil to
// disable the recent-context cache.
func NewGormChatRepo(db *gorm.DB, rc *redis.Client, cacheTTL time.Duration) chat.Repository {
	return &GormChatRepo{db: db, rc: rc, cacheTTL: cacheTTL}
}

// FindMembershipsForUser implements chat.Repository
func (g *GormChatRepo) FindMembershipsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := g.db.WithContext(ctx).
		Model(&MembershipEntity{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find memberships: %w", err)
	}
	return ids, nil
}

// IsMember implements chat.Repository
func (g *GormChatRepo) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&MembershipEntity{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// CreateChatEvent implements chat.Repository
func (g *GormChatRepo) CreateChatEvent(ctx context.Context, conversationID, authorID, body string, kind chat.EventKind) (*chat.ChatEvent, error) {
	entity := &ChatEventEntity{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Body:           body,
		Kind:           string(kind),
	}
	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat event: %w", err)
	}

	var authorName string
	g.db.WithContext(ctx).
		Table("users").
		Where("id = ?", authorID).
		Pluck("display_name", &authorName)

	g.invalidateContextCache(conversationID)
	return entity.ToDomain(authorName), nil
}

// TouchConversation implements chat.Repository
func (g *GormChatRepo) TouchConversation(ctx context.Context, conversationID string) error {
	result := g.db.WithContext(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", conversationID).
		Update("last_message_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

// UpdateReadMarker implements chat.Repository
func (g *GormChatRepo) UpdateReadMarker(ctx context.Context, userID, conversationID string) error {
	err := g.db.WithContext(ctx).
		Model(&MembershipEntity{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Update("last_read_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to update read marker: %w", err)
	}
	return nil
}

type contextRow struct {
	DisplayName string
	Body        string
	CreatedAt   time.Time
}

// RecentTextEvents implements chat.Repository. Results are newest first.
func (g *GormChatRepo) RecentTextEvents(ctx context.Context, conversationID string, limit int) ([]chat.ContextLine, error) {
	if cached, ok := g.contextCacheGet(conversationID, limit); ok {
		return cached, nil
	}

	var rows []contextRow
	err := g.db.WithContext(ctx).
		Table("chat_events").
		Select("users.display_name, chat_events.body, chat_events.created_at").
		Joins("JOIN users ON users.id = chat_events.author_id").
		Where("chat_events.conversation_id = ? AND chat_events.kind = ?", conversationID, string(chat.KindText)).
		Order("chat_events.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent text events: %w", err)
	}

	lines := make([]chat.ContextLine, len(rows))
	for i, row := range rows {
		lines[i] = chat.ContextLine{
			SenderName: row.DisplayName,
			Body:       row.Body,
			SentAt:     row.CreatedAt,
		}
	}

	g.contextCacheSet(conversationID, limit, lines)
	return lines, nil
}

// CreateConversation implements chat.Repository
func (g *GormChatRepo) CreateConversation(ctx context.Context, title string, memberIDs []string) (*chat.Conversation, error) {
	entity := &ConversationEntity{
		Title:         title,
		LastMessageAt: time.Now(),
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		for _, memberID := range memberIDs {
			member := &MembershipEntity{
				ConversationID: entity.ID,
				UserID:         memberID,
			}
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return entity.ToDomain(), nil
}

func (g *GormChatRepo) contextCacheKey(conversationID string, limit int) string {
	return fmt.Sprintf("%s%s:%d", contextCachePrefix, conversationID, limit)
}

func (g *GormChatRepo) contextCacheGet(conversationID string, limit int) ([]chat.ContextLine, bool) {
	if g.rc == nil {
		return nil, false
	}
	raw, err := g.rc.Get(g.contextCacheKey(conversationID, limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var lines []chat.ContextLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, false
	}
	return lines, true
}

func (g *GormChatRepo) contextCacheSet(conversationID string, limit int, lines []chat.ContextLine) {
	if g.rc == nil {
		return
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return
	}
	g.rc.Set(g.contextCacheKey(conversationID, limit), raw, g.cacheTTL)
}

func (g *GormChatRepo) invalidateContextCache(conversationID string) {
	if g.rc == nil {
		return
	}
	keys, err := g.rc.Keys(contextCachePrefix + conversationID + ":*").Result()
	if err != nil {
		return
	}
	if len(keys) > 0 {
		g.rc.Del(keys...)
	}
}
