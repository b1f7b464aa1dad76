package server

import (
	"github.com/gin-gonic/gin"
	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/internal/domains/user"
	"github.com/parleychat/parley/internal/handlers"
	ws "github.com/parleychat/parley/internal/handlers/websocket"
	"github.com/parleychat/parley/pkg/Logger"
)

// Dependencies carries everything the route tree needs.
type Dependencies struct {
	Logger           *Logger.Logger
	UserService      user.UserService
	ChatService      chat.ChatService
	AssistantService assistant.AssistantService
	WSHandler        *ws.WebSocketHandler
}

// NewServerDependencies bundles the wired services for route registration.
func NewServerDependencies(
	logger *Logger.Logger,
	userService user.UserService,
	chatService chat.ChatService,
	assistantService assistant.AssistantService,
	wsHandler *ws.WebSocketHandler,
) Dependencies {
	return Dependencies{
		Logger:           logger,
		UserService:      userService,
		ChatService:      chatService,
		AssistantService: assistantService,
		WSHandler:        wsHandler,
	}
}

// InitializeRoutes registers every route on the engine.
func InitializeRoutes(router *gin.Engine, dep Dependencies) {
	router.Use(handlers.CORSMiddleware())
	router.Use(handlers.RequestLoggerMiddleware(dep.Logger))
	router.Use(handlers.ErrorHandlerMiddleware(dep.Logger))

	router.GET("/", func(c *gin.Context) { c.JSON(200, gin.H{"message": "Server healthy"}) })
	router.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	userHandler := handlers.NewUserHandler(dep.UserService, dep.Logger)
	assistantHandler := handlers.NewAssistantHandler(dep.AssistantService, dep.Logger)
	conversationHandler := handlers.NewConversationHandler(dep.ChatService, dep.Logger)

	auth := router.Group("/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
	}

	api := router.Group("/api")
	api.Use(handlers.AuthMiddleware(dep.UserService, dep.Logger))
	{
		api.GET("/profile", userHandler.GetProfile)

		api.GET("/providers", assistantHandler.ListProviders)
		api.GET("/assistant/config", assistantHandler.GetConfig)
		api.PUT("/assistant/config", assistantHandler.SaveConfig)

		api.POST("/conversations", conversationHandler.Create)
		api.GET("/conversations", conversationHandler.ListMine)
	}

	// the websocket endpoint authenticates in-band via the authenticate
	// event, so it sits outside the REST auth middleware
	dep.WSHandler.RegisterRoutes(router)
}
