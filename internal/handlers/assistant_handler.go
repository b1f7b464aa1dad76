package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/pkg/Logger"
	"github.com/parleychat/parley/pkg/providers"
)

// AssistantHandler exposes the provider catalog and per-user assistant
// configuration.
type AssistantHandler struct {
	assistantService assistant.AssistantService
	logger           *Logger.Logger
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistantService assistant.AssistantService, logger *Logger.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		logger:           logger,
	}
}

// ListProviders returns the static provider catalog
func (h *AssistantHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, ProvidersResponse{Providers: providers.List()})
}

// GetConfig returns the caller's assistant config with the credential masked
func (h *AssistantHandler) GetConfig(c *gin.Context) {
	userID := c.GetString("userID")

	cfg, err := h.assistantService.GetConfig(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrConfigNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Assistant not configured"})
		default:
			h.logger.Errorf("assistant config read error: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, AssistantConfigResponse{Config: *cfg})
}

// SaveConfig upserts the caller's assistant config
func (h *AssistantHandler) SaveConfig(c *gin.Context) {
	userID := c.GetString("userID")

	var req assistant.SaveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request data",
			Details: err.Error(),
		})
		return
	}

	cfg, err := h.assistantService.SaveConfig(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrUnknownProvider), errors.Is(err, assistant.ErrUnknownModel):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.logger.Errorf("assistant config write error: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, AssistantConfigResponse{Config: *cfg})
}
