package chat

import (
	"time"
)

// EventKind classifies a persisted chat event.
type EventKind string

const (
	KindText    EventKind = "text"
	KindSystem  EventKind = "system"
	KindAIReply EventKind = "ai_reply"
)

// Valid reports whether the kind is one of the persisted kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindText, KindSystem, KindAIReply:
		return true
	}
	return false
}

// ChatEvent is one persisted unit of conversation content.
type ChatEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	AuthorID       string    `json:"authorId"`
	AuthorName     string    `json:"authorName"`
	Body           string    `json:"body"`
	Kind           EventKind `json:"kind"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation is one broadcast group.
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ContextLine is one prior message reduced to what the assistant sees.
type ContextLine struct {
	SenderName string
	Body       string
	SentAt     time.Time
}

// Outbound realtime event names. Shared by the websocket layer and the
// assistant workflow so both publish through the same vocabulary.
const (
	EventAuthenticated  = "authenticated"
	EventError          = "error"
	EventNewMessage     = "new_message"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventTyping         = "typing"
	EventTypingStop     = "typing_stop"
	EventMessageRead    = "message_read"
	EventAIThinking     = "ai_thinking"
	EventAIThinkingDone = "ai_thinking_done"
)

// NewMessagePayload wraps a persisted event for broadcast.
type NewMessagePayload struct {
	Event ChatEvent `json:"event"`
}

// PresencePayload carries online/offline signals.
type PresencePayload struct {
	Identity string `json:"identity"`
}

// TypingPayload carries typing and read-receipt signals.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	Identity       string `json:"identity"`
}

// ThinkingPayload carries the assistant thinking-indicator lifecycle.
type ThinkingPayload struct {
	ConversationID string `json:"conversationId"`
}

// ErrorPayload carries error events back to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AuthenticatedPayload acknowledges a successful authenticate event.
type AuthenticatedPayload struct {
	Identity string `json:"identity"`
}
