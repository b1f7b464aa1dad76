package websocket

import (
	"encoding/json"
	"time"
)

// Envelope is the inbound wire frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutEnvelope is the outbound wire frame.
type OutEnvelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "send_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventMarkRead     = "mark_read"
)

// AuthenticatePayload carries the credential token.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// SendMessagePayload carries one outgoing message.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Body           string `json:"body"`
	Kind           string `json:"kind,omitempty"`
}

// ConversationPayload addresses a single conversation (typing, mark_read).
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}
