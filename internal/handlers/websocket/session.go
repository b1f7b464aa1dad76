package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/parleychat/parley/internal/domains/chat"
)

// Session states. A connection starts unauthenticated, is promoted exactly
// once, and ends closed on transport disconnect.
const (
	StateConnected     = "connected"
	StateAuthenticated = "authenticated"
	StateClosed        = "closed"
)

const (
	transitionAuthenticate = "authenticate"
	transitionDisconnect   = "disconnect"
)

// wireConn is the outbound half of a websocket connection. Satisfied by
// *websocket.Conn; tests substitute a fake.
type wireConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session represents one live transport connection.
type Session struct {
	SessionID   uuid.UUID
	ConnectedAt time.Time

	conn    wireConn
	machine *fsm.FSM

	mu       sync.Mutex
	identity string
	rooms    map[string]struct{}
}

// NewSession wraps a freshly upgraded connection.
func NewSession(conn wireConn) *Session {
	return &Session{
		SessionID:   uuid.New(),
		ConnectedAt: time.Now(),
		conn:        conn,
		rooms:       make(map[string]struct{}),
		machine: fsm.NewFSM(
			StateConnected,
			fsm.Events{
				{Name: transitionAuthenticate, Src: []string{StateConnected}, Dst: StateAuthenticated},
				{Name: transitionDisconnect, Src: []string{StateConnected, StateAuthenticated}, Dst: StateClosed},
			},
			fsm.Callbacks{},
		),
	}
}

// Authenticate promotes the session. It fails if the session is already
// authenticated or closed.
func (s *Session) Authenticate(identity string) error {
	if err := s.machine.Event(context.Background(), transitionAuthenticate); err != nil {
		return err
	}
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return nil
}

// MarkClosed records the transport disconnect. Idempotent enough for the
// single disconnect path; a second call returns the fsm error.
func (s *Session) MarkClosed() {
	_ = s.machine.Event(context.Background(), transitionDisconnect)
}

// IsAuthenticated reports whether the session has been promoted.
func (s *Session) IsAuthenticated() bool {
	return s.machine.Is(StateAuthenticated)
}

// Identity returns the authenticated identity, or "" before promotion.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SendEvent writes one event to the client. Writes are serialized; gorilla
// connections allow only one concurrent writer.
func (s *Session) SendEvent(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(OutEnvelope{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now(),
	})
}

// SendError emits an error event to this connection only.
func (s *Session) SendError(message string) {
	_ = s.SendEvent(chat.EventError, chat.ErrorPayload{Message: message})
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) joinRoom(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[conversationID] = struct{}{}
}

func (s *Session) leaveRoom(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, conversationID)
}

func (s *Session) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}
