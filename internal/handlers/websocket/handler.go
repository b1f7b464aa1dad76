package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/internal/domains/user"
	"github.com/parleychat/parley/pkg/Logger"
)

// WebSocketHandler owns the realtime endpoint: it upgrades connections and
// drives the per-connection session state machine.
type WebSocketHandler struct {
	logger     *Logger.Logger
	registry   *Registry
	hub        *Hub
	users      user.UserService
	chats      chat.ChatService
	assistants assistant.AssistantService
	detector   assistant.Detector
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler creates the realtime handler.
func NewWebSocketHandler(
	logger *Logger.Logger,
	registry *Registry,
	hub *Hub,
	users user.UserService,
	chats chat.ChatService,
	assistants assistant.AssistantService,
	detector assistant.Detector,
) *WebSocketHandler {
	return &WebSocketHandler{
		logger:     logger,
		registry:   registry,
		hub:        hub,
		users:      users,
		chats:      chats,
		assistants: assistants,
		detector:   detector,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the web client's deploy domain is fixed
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", h.HandleChat)
}

// HandleChat upgrades the connection and runs its read loop until the
// transport disconnects.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := NewSession(conn)
	h.logger.Infof("websocket connected: session %s", session.SessionID)
	defer h.disconnect(session)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Errorf("websocket read error for session %s: %v", session.SessionID, err)
			} else {
				h.logger.Infof("websocket closed: session %s", session.SessionID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(session, data)
	}
}

// dispatch routes one inbound frame. Everything except authenticate
// requires an authenticated identity.
func (h *WebSocketHandler) dispatch(session *Session, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		session.SendError("invalid message format")
		return
	}

	ctx := context.Background()

	if env.Event == EventAuthenticate {
		h.handleAuthenticate(ctx, session, env.Data)
		return
	}

	if !session.IsAuthenticated() {
		session.SendError("authentication required")
		return
	}

	switch env.Event {
	case EventSendMessage:
		h.handleSendMessage(ctx, session, env.Data)
	case EventTypingStart:
		h.handleTyping(session, env.Data, chat.EventTyping)
	case EventTypingStop:
		h.handleTyping(session, env.Data, chat.EventTypingStop)
	case EventMarkRead:
		h.handleMarkRead(ctx, session, env.Data)
	default:
		session.SendError("unknown event: " + env.Event)
	}
}

func (h *WebSocketHandler) handleAuthenticate(ctx context.Context, session *Session, data json.RawMessage) {
	if session.IsAuthenticated() {
		session.SendError("already authenticated")
		return
	}

	var payload AuthenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		session.SendError("invalid credentials")
		return
	}

	claims, err := h.users.ValidateToken(ctx, payload.Token)
	if err != nil {
		h.logger.Debugf("token validation failed for session %s: %v", session.SessionID, err)
		session.SendError("invalid credentials")
		return
	}
	identity := claims.UserID

	// membership set is loaded once here; grants made mid-session take
	// effect for routing on the next connection
	memberships, err := h.chats.Memberships(ctx, identity)
	if err != nil {
		h.logger.Errorf("failed to load memberships for %s: %v", identity, err)
		session.SendError("failed to load conversations")
		return
	}

	if err := session.Authenticate(identity); err != nil {
		session.SendError("already authenticated")
		return
	}

	h.registry.Put(identity, session)
	for _, conversationID := range memberships {
		h.hub.Join(conversationID, session)
	}

	if err := session.SendEvent(chat.EventAuthenticated, chat.AuthenticatedPayload{Identity: identity}); err != nil {
		h.logger.Debugf("failed to ack authentication for %s: %v", identity, err)
	}
	h.registry.Broadcast(chat.EventUserOnline, chat.PresencePayload{Identity: identity}, session)

	h.logger.Infof("session %s authenticated as %s (%d rooms)", session.SessionID, identity, len(memberships))
}

func (h *WebSocketHandler) handleSendMessage(ctx context.Context, session *Session, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" || payload.Body == "" {
		session.SendError("invalid message payload")
		return
	}

	identity := session.Identity()
	_, err := h.chats.SendMessage(ctx, identity, payload.ConversationID, payload.Body, chat.EventKind(payload.Kind))
	if err != nil {
		if errors.Is(err, chat.ErrNotMember) {
			session.SendError("not a member of conversation")
		} else {
			h.logger.Errorf("failed to send message from %s to %s: %v", identity, payload.ConversationID, err)
			session.SendError("failed to send message")
		}
		return
	}

	// wake detection runs after the message is already persisted and
	// broadcast; the workflow is detached so its latency and failures
	// never touch the send path
	if command, triggered := h.detector.Detect(payload.Body); triggered {
		go h.assistants.HandleWake(context.Background(), payload.ConversationID, identity, command)
	}
}

func (h *WebSocketHandler) handleTyping(session *Session, data json.RawMessage, event string) {
	var payload ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		return
	}
	h.hub.PublishExcept(payload.ConversationID, session, event, chat.TypingPayload{
		ConversationID: payload.ConversationID,
		Identity:       session.Identity(),
	})
}

func (h *WebSocketHandler) handleMarkRead(ctx context.Context, session *Session, data json.RawMessage) {
	var payload ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		return
	}

	identity := session.Identity()
	if err := h.chats.MarkRead(ctx, identity, payload.ConversationID); err != nil {
		// read receipts must never disrupt the connection
		h.logger.Warnf("failed to mark %s read for %s: %v", payload.ConversationID, identity, err)
		return
	}
	h.hub.PublishExcept(payload.ConversationID, session, chat.EventMessageRead, chat.TypingPayload{
		ConversationID: payload.ConversationID,
		Identity:       identity,
	})
}

// disconnect tears the session down after the read loop exits.
func (h *WebSocketHandler) disconnect(session *Session) {
	session.MarkClosed()
	h.hub.LeaveAll(session)

	identity := session.Identity()
	if identity == "" {
		return
	}

	h.registry.RemoveIfCurrent(identity, session)

	if err := h.users.TouchLastSeen(context.Background(), identity); err != nil {
		h.logger.Warnf("failed to stamp last seen for %s: %v", identity, err)
	}
	h.registry.Broadcast(chat.EventUserOffline, chat.PresencePayload{Identity: identity}, session)
}
