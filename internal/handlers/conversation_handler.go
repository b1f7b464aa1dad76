package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/pkg/Logger"
)

// ConversationHandler bootstraps conversations for the realtime core.
type ConversationHandler struct {
	chatService chat.ChatService
	logger      *Logger.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(chatService chat.ChatService, logger *Logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// CreateConversationRequest is the request body for creating a conversation
type CreateConversationRequest struct {
	Title     string   `json:"title" binding:"required,min=1,max=255"`
	MemberIDs []string `json:"memberIds"`
}

// Create creates a conversation whose members include the caller
func (h *ConversationHandler) Create(c *gin.Context) {
	userID := c.GetString("userID")

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request data",
			Details: err.Error(),
		})
		return
	}

	memberIDs := []string{userID}
	for _, id := range req.MemberIDs {
		if id != userID {
			memberIDs = append(memberIDs, id)
		}
	}

	conv, err := h.chatService.CreateConversation(c.Request.Context(), req.Title, memberIDs)
	if err != nil {
		h.logger.Errorf("conversation create error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, ConversationResponse{Conversation: *conv})
}

// ListMine returns the caller's conversation ids
func (h *ConversationHandler) ListMine(c *gin.Context) {
	userID := c.GetString("userID")

	ids, err := h.chatService.Memberships(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("membership list error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationIds": ids})
}
