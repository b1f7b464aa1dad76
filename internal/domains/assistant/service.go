package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/pkg/Logger"
	"github.com/parleychat/parley/pkg/completion"
	"github.com/parleychat/parley/pkg/providers"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownModel    = errors.New("unknown model for provider")
)

const (
	personaInstruction = "You are a helpful assistant embedded in a group chat. " +
		"Answer concisely in the language the conversation uses. " +
		"When a conversation transcript is provided, use it as context for the request."

	configureNotice = "I can't answer yet: no AI provider is configured for your account. " +
		"Open assistant settings, pick a provider and model, save your API key, and mention me again."

	maskedKeyPlaceholder = "********"
)

// Completer issues one completion call. Satisfied by *completion.Client.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// SaveConfigRequest is the REST body for writing a user's assistant config.
type SaveConfigRequest struct {
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model" binding:"required"`
	APIKey   string `json:"apiKey" binding:"required"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ConfigResponse is a config with the credential masked.
type ConfigResponse struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	APIKey    string    `json:"apiKey"`
	Endpoint  string    `json:"endpoint,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssistantService owns the wake-triggered orchestration workflow plus the
// configuration surface around it.
type AssistantService interface {
	// HandleWake runs the full orchestration for one detected wake
	// phrase. It never returns an error: every failure is converted into
	// a user-visible reply, and the thinking-indicator pair always emits.
	// Callers schedule it on its own goroutine, detached from the
	// triggering send.
	HandleWake(ctx context.Context, conversationID, userID, command string)

	// GetConfig returns the user's config with the credential masked, or
	// ErrConfigNotFound.
	GetConfig(ctx context.Context, userID string) (*ConfigResponse, error)

	// SaveConfig validates the request against the provider catalog and
	// upserts it.
	SaveConfig(ctx context.Context, userID string, req SaveConfigRequest) (*ConfigResponse, error)
}

type assistantService struct {
	repository   Repository
	chats        chat.ChatService
	rooms        chat.RoomPublisher
	completer    Completer
	logger       *Logger.Logger
	contextLimit int
	callTimeout  time.Duration
}

// NewAssistantService wires the orchestration workflow.
func NewAssistantService(
	repository Repository,
	chats chat.ChatService,
	rooms chat.RoomPublisher,
	completer Completer,
	logger *Logger.Logger,
	contextLimit int,
	callTimeout time.Duration,
) AssistantService {
	if contextLimit <= 0 {
		contextLimit = 30
	}
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &assistantService{
		repository:   repository,
		chats:        chats,
		rooms:        rooms,
		completer:    completer,
		logger:       logger,
		contextLimit: contextLimit,
		callTimeout:  callTimeout,
	}
}

// HandleWake implements AssistantService.
func (s *assistantService) HandleWake(ctx context.Context, conversationID, userID, command string) {
	s.rooms.Publish(conversationID, chat.EventAIThinking, chat.ThinkingPayload{ConversationID: conversationID})
	defer func() {
		// thinking_done must fire no matter which branch ran
		if r := recover(); r != nil {
			s.logger.Errorf("assistant workflow panicked for conversation %s: %v", conversationID, r)
		}
		s.rooms.Publish(conversationID, chat.EventAIThinkingDone, chat.ThinkingPayload{ConversationID: conversationID})
	}()

	cfg, err := s.repository.GetConfig(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			s.logger.Errorf("failed to load assistant config for user %s: %v", userID, err)
		}
		s.postReply(ctx, conversationID, userID, configureNotice)
		return
	}

	provider, ok := providers.Lookup(cfg.Provider)
	if !ok {
		// config predates a catalog change; treat like a failed call
		s.postReply(ctx, conversationID, userID, fmt.Sprintf("AI request failed: provider %q is no longer available", cfg.Provider))
		return
	}

	lines, err := s.chats.RecentContext(ctx, conversationID, s.contextLimit)
	if err != nil {
		// context is best-effort; answer without it
		s.logger.Warnf("failed to load context for conversation %s: %v", conversationID, err)
		lines = nil
	}

	endpoint := provider.DefaultEndpoint
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	reply, err := s.completer.Complete(callCtx, completion.Request{
		WireFormat: provider.WireFormat,
		Endpoint:   endpoint,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		System:     personaInstruction,
		Transcript: toTranscript(lines),
		Command:    command,
	})
	if err != nil {
		s.logger.Errorf("completion call failed for conversation %s: %v", conversationID, err)
		s.postReply(ctx, conversationID, userID, fmt.Sprintf("AI request failed: %v", err))
		return
	}

	if s.postReply(ctx, conversationID, userID, reply) {
		s.appendRunRecord(ctx, conversationID, userID, len(lines), command, reply)
	}
}

// postReply persists and broadcasts an AI-reply event through the ordered
// delivery path. Reports whether the event was persisted.
func (s *assistantService) postReply(ctx context.Context, conversationID, userID, body string) bool {
	if _, err := s.chats.PostAssistantReply(ctx, conversationID, userID, body); err != nil {
		s.logger.Errorf("failed to post assistant reply to conversation %s: %v", conversationID, err)
		return false
	}
	return true
}

func (s *assistantService) appendRunRecord(ctx context.Context, conversationID, userID string, messageCount int, command, reply string) {
	payload, err := json.Marshal(map[string]string{
		"command": command,
		"reply":   reply,
	})
	if err != nil {
		s.logger.Errorf("failed to encode run record payload: %v", err)
		return
	}
	rec := &RunRecord{
		ConversationID: conversationID,
		UserID:         userID,
		MessageCount:   messageCount,
		Payload:        payload,
		CreatedAt:      time.Now(),
	}
	if err := s.repository.AppendRunRecord(ctx, rec); err != nil {
		s.logger.Errorf("failed to append run record for conversation %s: %v", conversationID, err)
	}
}

func toTranscript(lines []chat.ContextLine) []completion.Line {
	out := make([]completion.Line, len(lines))
	for i, line := range lines {
		out[i] = completion.Line{
			Sender: line.SenderName,
			Body:   line.Body,
			SentAt: line.SentAt.Format("2006-01-02 15:04"),
		}
	}
	return out
}

// GetConfig implements AssistantService.
func (s *assistantService) GetConfig(ctx context.Context, userID string) (*ConfigResponse, error) {
	cfg, err := s.repository.GetConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	return maskConfig(cfg), nil
}

// SaveConfig implements AssistantService.
func (s *assistantService) SaveConfig(ctx context.Context, userID string, req SaveConfigRequest) (*ConfigResponse, error) {
	provider, ok := providers.Lookup(req.Provider)
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !provider.HasModel(req.Model) {
		return nil, ErrUnknownModel
	}

	cfg := &Config{
		UserID:    userID,
		Provider:  req.Provider,
		Model:     req.Model,
		APIKey:    req.APIKey,
		Endpoint:  req.Endpoint,
		UpdatedAt: time.Now(),
	}
	if err := s.repository.UpsertConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save assistant config: %w", err)
	}

	s.logger.Infof("assistant config saved for user %s: %s/%s", userID, cfg.Provider, cfg.Model)
	return maskConfig(cfg), nil
}

func maskConfig(cfg *Config) *ConfigResponse {
	return &ConfigResponse{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKey:    maskedKeyPlaceholder,
		Endpoint:  cfg.Endpoint,
		UpdatedAt: cfg.UpdatedAt,
	}
}
