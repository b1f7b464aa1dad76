package app

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/domains/assistant"
	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/internal/domains/user"
	ws "github.com/parleychat/parley/internal/handlers/websocket"
	assistantRepo "github.com/parleychat/parley/internal/repository/assistant"
	chatRepo "github.com/parleychat/parley/internal/repository/chat"
	userRepo "github.com/parleychat/parley/internal/repository/user"
	"github.com/parleychat/parley/internal/server"
	"github.com/parleychat/parley/pkg/Logger"
	"github.com/parleychat/parley/pkg/completion"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	RC     *redis.Client

	Registry *ws.Registry
	Hub      *ws.Hub

	UserService      user.UserService
	ChatService      chat.ChatService
	AssistantService assistant.AssistantService

	ServerDeps server.Dependencies
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) setupDependencies() error {
	// shared realtime structures
	a.Registry = ws.NewRegistry(a.Logger)
	a.Hub = ws.NewHub(a.Logger)

	// repositories
	cacheTTL := time.Duration(a.Config.Redis.CacheTTLMins) * time.Minute
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	userRepository := userRepo.NewGormUserRepo(a.DB)
	chatRepository := chatRepo.NewGormChatRepo(a.DB, a.RC, cacheTTL)
	assistantRepository := assistantRepo.NewGormAssistantRepo(a.DB)

	// JWT settings from config
	jwtSecret := a.Config.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		a.Logger.Warn("JWT secret not configured, using default (not secure for production)")
	}
	tokenTTL := time.Duration(a.Config.Auth.TokenTTLHours) * time.Hour

	// services
	a.UserService = user.NewUserService(userRepository, a.Logger, jwtSecret, tokenTTL)
	a.ChatService = chat.NewChatService(chatRepository, a.Hub, a.Logger)

	callTimeout := time.Duration(a.Config.Assistant.RequestTimeoutSecs) * time.Second
	completer := completion.New(callTimeout)
	a.AssistantService = assistant.NewAssistantService(
		assistantRepository,
		a.ChatService,
		a.Hub,
		completer,
		a.Logger,
		a.Config.Assistant.ContextLimit,
		callTimeout,
	)

	detector := assistant.NewDetector(a.Config.Assistant.WakeWord)
	wsHandler := ws.NewWebSocketHandler(
		a.Logger,
		a.Registry,
		a.Hub,
		a.UserService,
		a.ChatService,
		a.AssistantService,
		detector,
	)

	a.ServerDeps = server.NewServerDependencies(
		a.Logger,
		a.UserService,
		a.ChatService,
		a.AssistantService,
		wsHandler,
	)

	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}
