package chat

import (
	"context"
	"errors"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
)

// Repository is the persistence contract for conversations, memberships and
// chat events.
type Repository interface {
	// FindMembershipsForUser returns every conversation id the user is a
	// member of.
	FindMembershipsForUser(ctx context.Context, userID string) ([]string, error)

	// IsMember checks the persisted membership relation.
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)

	// CreateChatEvent durably persists one event and returns it with its
	// id, author display name and timestamp filled in.
	CreateChatEvent(ctx context.Context, conversationID, authorID, body string, kind EventKind) (*ChatEvent, error)

	// TouchConversation bumps the conversation recency marker.
	TouchConversation(ctx context.Context, conversationID string) error

	// UpdateReadMarker sets the user's read marker for the conversation to
	// the current time.
	UpdateReadMarker(ctx context.Context, userID, conversationID string) error

	// RecentTextEvents returns up to limit text-kind events, newest first,
	// reduced to context lines.
	RecentTextEvents(ctx context.Context, conversationID string, limit int) ([]ContextLine, error)

	// CreateConversation creates a conversation with the given members.
	CreateConversation(ctx context.Context, title string, memberIDs []string) (*Conversation, error)
}
