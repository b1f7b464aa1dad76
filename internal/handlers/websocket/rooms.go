package websocket

import (
	"sync"

	"github.com/parleychat/parley/pkg/Logger"
)

// Hub tracks which sessions are joined to which room and fans events out.
// Implements chat.RoomPublisher.
type Hub struct {
	logger *Logger.Logger
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
}

// NewHub creates an empty room hub.
func NewHub(logger *Logger.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Session]struct{}),
	}
}

// Join adds the session to the room, creating the room lazily.
func (h *Hub) Join(conversationID string, s *Session) {
	h.mu.Lock()
	room, exists := h.rooms[conversationID]
	if !exists {
		room = make(map[*Session]struct{})
		h.rooms[conversationID] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()

	s.joinRoom(conversationID)
}

// Leave removes the session from the room, dropping the room when empty.
func (h *Hub) Leave(conversationID string, s *Session) {
	h.mu.Lock()
	if room, exists := h.rooms[conversationID]; exists {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()

	s.leaveRoom(conversationID)
}

// LeaveAll removes the session from every room it joined.
func (h *Hub) LeaveAll(s *Session) {
	for _, conversationID := range s.joinedRooms() {
		h.Leave(conversationID, s)
	}
}

// Members returns the number of sessions joined to the room.
func (h *Hub) Members(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Publish sends an event to every session in the room, the sender's own
// connection included.
func (h *Hub) Publish(conversationID, event string, payload any) {
	h.publish(conversationID, event, payload, nil)
}

// PublishExcept sends an event to every session in the room except one.
// Used for typing and read-receipt signals.
func (h *Hub) PublishExcept(conversationID string, except *Session, event string, payload any) {
	h.publish(conversationID, event, payload, except)
}

func (h *Hub) publish(conversationID, event string, payload any, except *Session) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[conversationID]))
	for s := range h.rooms[conversationID] {
		if s != except {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.SendEvent(event, payload); err != nil {
			h.logger.Debugf("failed to publish %s to session %s in room %s: %v", event, s.SessionID, conversationID, err)
		}
	}
}
