package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parleychat/parley/pkg/Logger"
)

var (
	ErrNotMember = errors.New("not a member of conversation")
)

// RoomPublisher fans an event out to every connection joined to a room.
type RoomPublisher interface {
	Publish(conversationID, event string, payload any)
}

// ChatService routes persisted chat events into rooms with the
// persistence-before-broadcast ordering guarantee.
type ChatService interface {
	// Memberships returns the conversation ids the user belongs to.
	Memberships(ctx context.Context, userID string) ([]string, error)

	// SendMessage persists and broadcasts one event authored by userID.
	// Membership is checked against the store on every call.
	SendMessage(ctx context.Context, userID, conversationID, body string, kind EventKind) (*ChatEvent, error)

	// PostAssistantReply persists and broadcasts an AI-reply event. The
	// author is the identity that triggered the assistant.
	PostAssistantReply(ctx context.Context, conversationID, userID, body string) (*ChatEvent, error)

	// MarkRead updates the caller's read marker.
	MarkRead(ctx context.Context, userID, conversationID string) error

	// RecentContext returns up to limit prior text messages, oldest first.
	RecentContext(ctx context.Context, conversationID string, limit int) ([]ContextLine, error)

	// CreateConversation creates a conversation including the given members.
	CreateConversation(ctx context.Context, title string, memberIDs []string) (*Conversation, error)
}

type chatService struct {
	repository Repository
	rooms      RoomPublisher
	logger     *Logger.Logger

	// per-conversation locks serialize persist+broadcast so room
	// broadcast order matches persistence completion order
	locks sync.Map
}

func NewChatService(repository Repository, rooms RoomPublisher, logger *Logger.Logger) ChatService {
	return &chatService{
		repository: repository,
		rooms:      rooms,
		logger:     logger,
	}
}

// Memberships implements ChatService.
func (s *chatService) Memberships(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repository.FindMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	return ids, nil
}

// SendMessage implements ChatService.
func (s *chatService) SendMessage(ctx context.Context, userID, conversationID, body string, kind EventKind) (*ChatEvent, error) {
	member, err := s.repository.IsMember(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrNotMember
	}
	if !kind.Valid() {
		kind = KindText
	}
	return s.persistAndBroadcast(ctx, conversationID, userID, body, kind)
}

// PostAssistantReply implements ChatService.
func (s *chatService) PostAssistantReply(ctx context.Context, conversationID, userID, body string) (*ChatEvent, error) {
	return s.persistAndBroadcast(ctx, conversationID, userID, body, KindAIReply)
}

func (s *chatService) persistAndBroadcast(ctx context.Context, conversationID, userID, body string, kind EventKind) (*ChatEvent, error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	event, err := s.repository.CreateChatEvent(ctx, conversationID, userID, body, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to persist chat event: %w", err)
	}
	if err := s.repository.TouchConversation(ctx, conversationID); err != nil {
		s.logger.Warnf("failed to touch conversation %s: %v", conversationID, err)
	}
	s.rooms.Publish(conversationID, EventNewMessage, NewMessagePayload{Event: *event})
	return event, nil
}

// MarkRead implements ChatService.
func (s *chatService) MarkRead(ctx context.Context, userID, conversationID string) error {
	if err := s.repository.UpdateReadMarker(ctx, userID, conversationID); err != nil {
		return fmt.Errorf("failed to update read marker: %w", err)
	}
	return nil
}

// RecentContext implements ChatService.
func (s *chatService) RecentContext(ctx context.Context, conversationID string, limit int) ([]ContextLine, error) {
	lines, err := s.repository.RecentTextEvents(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	// repository returns newest first; callers want chronological order
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// CreateConversation implements ChatService.
func (s *chatService) CreateConversation(ctx context.Context, title string, memberIDs []string) (*Conversation, error) {
	conv, err := s.repository.CreateConversation(ctx, title, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Infof("conversation created: %s (%d members)", conv.ID, len(memberIDs))
	return conv, nil
}

func (s *chatService) conversationLock(conversationID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
