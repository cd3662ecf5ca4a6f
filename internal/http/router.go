package http

import (
	"log/slog"

	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/http/handlers"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ChatService is everything the HTTP surface needs from the chat core.
type ChatService interface {
	handlers.UsersService
	handlers.ConversationsService
	handlers.MessagesService
}

type Deps struct {
	Chat     ChatService
	Verifier middlewares.TokenVerifier
	Prom     *observability.Prom

	// LimitStore backs the per-caller rate limiter. Nil disables it.
	LimitStore middlewares.LimitStore
	// Hub serves /ws. Nil leaves the route unregistered.
	Hub handlers.RealtimeHub

	Checks map[string]handlers.PingFunc
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("chathub"))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if deps.Prom != nil {
		r.GET("/metrics", gin.WrapH(deps.Prom.Handler()))
	}

	authm := middlewares.NewAuthMiddleware(deps.Verifier)

	// the limiter runs after auth so it can key by caller
	limited := func(c *gin.Context) { c.Next() }
	if deps.LimitStore != nil {
		limited = middlewares.NewRateLimiter(deps.LimitStore, cfg.RateLimitRequests, cfg.RateLimitWindow).
			RateLimiterMiddleware(middlewares.KeyByUserOrIP)
	}

	api := r.Group("/")
	api.Use(authm.RequireAuth(), limited)

	writes := api.Group("/")
	writes.Use(middlewares.RequireJSON())

	admin := api.Group("/")
	admin.Use(authm.RequireRole(user.RoleAdmin))

	usersHandler := handlers.NewUsersHandler(deps.Chat)
	conversationsHandler := handlers.NewConversationsHandler(deps.Chat)
	messagesHandler := handlers.NewMessagesHandler(deps.Chat)

	// users
	api.GET("/users", usersHandler.ListUsers)
	api.GET("/users/me", usersHandler.Me)
	writes.PATCH("/users/me", usersHandler.UpdateMe)
	api.GET("/users/:id", usersHandler.GetUser)
	writes.PATCH("/users/:id", usersHandler.UpdateUser)
	admin.POST("/users", middlewares.RequireJSON(), usersHandler.CreateUser)
	admin.DELETE("/users/:id", usersHandler.DeleteUser)

	// conversations
	writes.POST("/conversations", conversationsHandler.Create)
	api.GET("/conversations", conversationsHandler.List)
	api.GET("/conversations/:id", conversationsHandler.Get)
	api.GET("/conversations/:id/participants", conversationsHandler.Participants)
	writes.POST("/conversations/:id/send_message", conversationsHandler.SendMessage)
	writes.POST("/conversations/:id/add_participant", conversationsHandler.AddParticipant)
	api.GET("/conversations/:id/conversation_messages", conversationsHandler.Messages)

	// messages
	api.GET("/messages", messagesHandler.List)
	writes.POST("/messages", messagesHandler.Create)
	api.GET("/messages/:id", messagesHandler.Get)

	// realtime
	if deps.Hub != nil {
		ws := handlers.NewRealtimeHandler(deps.Hub, cfg.CORSAllowedOrigins)
		r.GET("/ws", authm.RequireAuthOrQuery(), limited, ws.Connect)
	}

	return r
}
