package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/internal/domains/user"
	"github.com/parleychat/parley/pkg/Logger"
)

type fakeUsers struct {
	tokens map[string]string // token -> user id
}

func (f *fakeUsers) Register(ctx context.Context, req user.CreateUserRequest) (*user.UserResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeUsers) Login(ctx context.Context, req user.LoginRequest) (*user.UserResponse, *user.AuthTokens, error) {
	return nil, nil, errors.New("not used")
}

func (f *fakeUsers) GetProfile(ctx context.Context, userID string) (*user.UserResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeUsers) ValidateToken(ctx context.Context, tokenString string) (*user.Claims, error) {
	id, ok := f.tokens[tokenString]
	if !ok {
		return nil, user.ErrInvalidToken
	}
	return &user.Claims{UserID: id}, nil
}

func (f *fakeUsers) TouchLastSeen(ctx context.Context, userID string) error {
	return nil
}

type fakeChats struct {
	memberships map[string][]string
	sendErr     error

	mu   sync.Mutex
	sent []string
}

func (f *fakeChats) Memberships(ctx context.Context, userID string) ([]string, error) {
	return f.memberships[userID], nil
}

func (f *fakeChats) SendMessage(ctx context.Context, userID, conversationID, body string, kind chat.EventKind) (*chat.ChatEvent, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, body)
	f.mu.Unlock()
	return &chat.ChatEvent{ID: "evt-1", ConversationID: conversationID, AuthorID: userID, Body: body}, nil
}

func (f *fakeChats) PostAssistantReply(ctx context.Context, conversationID, userID, body string) (*chat.ChatEvent, error) {
	return nil, errors.New("not used")
}

func (f *fakeChats) MarkRead(ctx context.Context, userID, conversationID string) error {
	return nil
}

func (f *fakeChats) RecentContext(ctx context.Context, conversationID string, limit int) ([]chat.ContextLine, error) {
	return nil, nil
}

func (f *fakeChats) CreateConversation(ctx context.Context, title string, memberIDs []string) (*chat.Conversation, error) {
	return nil, errors.New("not used")
}

type fakeAssistants struct {
	woken chan string // receives the detected command
}

func (f *fakeAssistants) HandleWake(ctx context.Context, conversationID, userID, command string) {
	f.woken <- command
}

func (f *fakeAssistants) GetConfig(ctx context.Context, userID string) (*assistant.ConfigResponse, error) {
	return nil, assistant.ErrConfigNotFound
}

func (f *fakeAssistants) SaveConfig(ctx context.Context, userID string, req assistant.SaveConfigRequest) (*assistant.ConfigResponse, error) {
	return nil, errors.New("not used")
}

func newTestHandler(chats *fakeChats, assistants assistant.AssistantService) (*WebSocketHandler, *Registry, *Hub) {
	logger := Logger.New(true)
	registry := NewRegistry(logger)
	hub := NewHub(logger)
	users := &fakeUsers{tokens: map[string]string{"good-token": "alice"}}
	h := NewWebSocketHandler(logger, registry, hub, users, chats, assistants, assistant.NewDetector(""))
	return h, registry, hub
}

func TestDispatchRequiresAuthentication(t *testing.T) {
	h, _, _ := newTestHandler(&fakeChats{}, &fakeAssistants{})
	conn := &fakeConn{}
	session := NewSession(conn)

	h.dispatch(session, []byte(`{"event":"send_message","data":{"conversationId":"conv-1","body":"hi"}}`))

	events := conn.events()
	if len(events) != 1 || events[0] != "error" {
		t.Fatalf("events = %v, want [error]", events)
	}
}

func TestDispatchAuthenticate(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": {"conv-1", "conv-2"}}}
	h, registry, hub := newTestHandler(chats, &fakeAssistants{})
	conn := &fakeConn{}
	session := NewSession(conn)

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))

	if !session.IsAuthenticated() || session.Identity() != "alice" {
		t.Fatal("session not authenticated as alice")
	}
	if got, ok := registry.Get("alice"); !ok || got != session {
		t.Error("session not registered under its identity")
	}
	if hub.Members("conv-1") != 1 || hub.Members("conv-2") != 1 {
		t.Error("session not joined to its membership rooms")
	}
	events := conn.events()
	if len(events) != 1 || events[0] != chat.EventAuthenticated {
		t.Errorf("events = %v, want [authenticated]", events)
	}
}

func TestDispatchAuthenticateBadToken(t *testing.T) {
	h, registry, _ := newTestHandler(&fakeChats{}, &fakeAssistants{})
	conn := &fakeConn{}
	session := NewSession(conn)

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"forged"}}`))

	if session.IsAuthenticated() {
		t.Error("forged token authenticated the session")
	}
	if registry.Count() != 0 {
		t.Error("forged token registered a session")
	}
	events := conn.events()
	if len(events) != 1 || events[0] != "error" {
		t.Errorf("events = %v, want [error]", events)
	}
}

func TestSendMessageTriggersWake(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": {"conv-1"}}}
	assistants := &fakeAssistants{woken: make(chan string, 1)}
	h, _, _ := newTestHandler(chats, assistants)
	session := NewSession(&fakeConn{})

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	h.dispatch(session, []byte(`{"event":"send_message","data":{"conversationId":"conv-1","body":"@ai translate: hi"}}`))

	select {
	case command := <-assistants.woken:
		if command != "translate: hi" {
			t.Errorf("wake command = %q, want %q", command, "translate: hi")
		}
	case <-time.After(time.Second):
		t.Fatal("wake workflow was not scheduled")
	}

	if len(chats.sent) != 1 || chats.sent[0] != "@ai translate: hi" {
		t.Errorf("sent = %v, want the raw body persisted first", chats.sent)
	}
}

func TestSendMessagePlainBodyDoesNotWake(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": {"conv-1"}}}
	assistants := &fakeAssistants{woken: make(chan string, 1)}
	h, _, _ := newTestHandler(chats, assistants)
	session := NewSession(&fakeConn{})

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	h.dispatch(session, []byte(`{"event":"send_message","data":{"conversationId":"conv-1","body":"hi @ai"}}`))

	select {
	case <-assistants.woken:
		t.Fatal("mid-message mention scheduled the wake workflow")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendMessageNotMember(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": nil}, sendErr: chat.ErrNotMember}
	h, _, _ := newTestHandler(chats, &fakeAssistants{})
	conn := &fakeConn{}
	session := NewSession(conn)

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	h.dispatch(session, []byte(`{"event":"send_message","data":{"conversationId":"conv-9","body":"hi"}}`))

	writes := conn.writes
	last := writes[len(writes)-1]
	if last.Event != "error" {
		t.Fatalf("last event = %q, want error", last.Event)
	}
	payload, ok := last.Data.(chat.ErrorPayload)
	if !ok {
		t.Fatalf("error payload type = %T", last.Data)
	}
	if payload.Message != "not a member of conversation" {
		t.Errorf("error message = %q", payload.Message)
	}
}

func TestTypingFansOutToRoomPeers(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": {"conv-1"}}}
	h, _, hub := newTestHandler(chats, &fakeAssistants{})

	aliceConn := &fakeConn{}
	alice := NewSession(aliceConn)
	h.dispatch(alice, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))

	bobConn := &fakeConn{}
	bob := NewSession(bobConn)
	hub.Join("conv-1", bob)

	h.dispatch(alice, []byte(`{"event":"typing_start","data":{"conversationId":"conv-1"}}`))

	bobEvents := bobConn.events()
	if len(bobEvents) != 1 || bobEvents[0] != chat.EventTyping {
		t.Errorf("bob events = %v, want [typing]", bobEvents)
	}
	// typing never echoes to the sender; alice only has her auth ack
	if n := len(aliceConn.events()); n != 1 {
		t.Errorf("alice events = %d, want 1", n)
	}
}

func TestDisconnectKeepsReplacementRegistered(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": {"conv-1"}}}
	h, registry, hub := newTestHandler(chats, &fakeAssistants{})

	first := NewSession(&fakeConn{})
	h.dispatch(first, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))

	second := NewSession(&fakeConn{})
	h.dispatch(second, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))

	// the replaced connection's read loop ends after the replacement took over
	h.disconnect(first)

	if got, ok := registry.Get("alice"); !ok || got != second {
		t.Error("replacement session evicted by the stale disconnect")
	}
	if hub.Members("conv-1") != 1 {
		t.Errorf("room members = %d, want the replacement only", hub.Members("conv-1"))
	}

	h.disconnect(second)
	if registry.Count() != 0 {
		t.Error("registry not empty after final disconnect")
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	chats := &fakeChats{memberships: map[string][]string{"alice": nil}}
	h, _, _ := newTestHandler(chats, &fakeAssistants{})
	conn := &fakeConn{}
	session := NewSession(conn)

	h.dispatch(session, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	h.dispatch(session, []byte(`{"event":"self_destruct"}`))

	writes := conn.writes
	if writes[len(writes)-1].Event != "error" {
		t.Error("unknown event should produce an error frame")
	}
}
