package handlers

import (
	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/internal/domains/user"
	"github.com/parleychat/parley/pkg/providers"
)

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RegisterResponse represents the response for user registration
type RegisterResponse struct {
	Message string            `json:"message"`
	User    user.UserResponse `json:"user"`
}

// LoginResponse represents the response for user login
type LoginResponse struct {
	Message string            `json:"message"`
	User    user.UserResponse `json:"user"`
	Tokens  user.AuthTokens   `json:"tokens"`
}

// ProfileResponse represents the response for getting user profile
type ProfileResponse struct {
	User user.UserResponse `json:"user"`
}

// ProvidersResponse lists the provider catalog
type ProvidersResponse struct {
	Providers []providers.Provider `json:"providers"`
}

// AssistantConfigResponse wraps a masked assistant config
type AssistantConfigResponse struct {
	Config assistant.ConfigResponse `json:"config"`
}

// ConversationResponse wraps a created conversation
type ConversationResponse struct {
	Conversation chat.Conversation `json:"conversation"`
}
