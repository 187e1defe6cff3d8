package routes

import (
	"time"

	"social-chat/internal/api/handlers"
	"social-chat/internal/api/middleware"
	"social-chat/internal/gateway"
	"social-chat/internal/services"
	"social-chat/internal/websocket"

	_ "social-chat/docs"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Hub            *websocket.Hub
	Upgrader       *gorillaws.Upgrader
	Gateway        *gateway.Gateway
	Users          *services.UserService
	Friends        *services.FriendService
	Chat           *services.ChatService
	Calls          *services.CallService
	RateLimiter    middleware.RateLimiter // nil disables limiting
	Backends       map[string]handlers.Pinger
	AllowedOrigins []string
	RatePerMinute  int
}

type Router struct {
	engine        *gin.Engine
	wsHandler     *handlers.WSHandler
	chatHandler   *handlers.ChatHandler
	friendHandler *handlers.FriendHandler
	callHandler   *handlers.CallHandler
	authHandler   *handlers.AuthHandler
	healthHandler *handlers.HealthHandler
	rateLimitMW   *middleware.RateLimitMiddleware
	authMW        *middleware.AuthMiddleware
	ratePerMinute int
}

func NewRouter(deps Deps) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(deps.AllowedOrigins))
	engine.Use(middleware.LogApi())

	return &Router{
		engine:        engine,
		wsHandler:     handlers.NewWSHandler(deps.Hub, deps.Upgrader),
		chatHandler:   handlers.NewChatHandler(deps.Gateway, deps.Chat),
		friendHandler: handlers.NewFriendHandler(deps.Gateway, deps.Friends, deps.Users),
		callHandler:   handlers.NewCallHandler(deps.Calls),
		authHandler:   handlers.NewAuthHandler(deps.Users),
		healthHandler: handlers.NewHealthHandler(deps.Gateway, deps.Backends),
		rateLimitMW:   middleware.NewRateLimitMiddleware(deps.RateLimiter),
		authMW:        middleware.NewAuthMiddleware(deps.Users),
		ratePerMinute: deps.RatePerMinute,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.healthHandler.Health)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.engine.GET("/ws",
		r.authMW.RequireAuth(),
		r.rateLimitMW.RateLimit(10, time.Minute),
		r.wsHandler.HandleWebSocket,
	)

	api := r.engine.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Use(r.rateLimitMW.RateLimitIP(50, time.Minute))
	{
		authRoutes.POST("/register", r.authHandler.Register)
		authRoutes.POST("/login", r.authHandler.Login)
	}

	chat := api.Group("/chat")
	chat.Use(r.authMW.RequireAuth(), r.rateLimitMW.RateLimit(r.ratePerMinute, time.Minute))
	{
		chat.GET("/conversations", r.chatHandler.GetConversations)
		chat.GET("/messages/:friendId", r.chatHandler.GetMessages)
		chat.POST("/send", r.chatHandler.SendMessage)
		chat.POST("/mark-read", r.chatHandler.MarkRead)
		chat.GET("/online-friends", r.chatHandler.GetOnlineFriends)
		chat.POST("/update-status", r.chatHandler.UpdateStatus)
		chat.POST("/clear-chat", r.chatHandler.ClearChat)
		chat.GET("/export/:friendId", r.chatHandler.ExportChat)

		chat.GET("/friends", r.friendHandler.GetFriends)
		chat.POST("/send-friend-request", r.friendHandler.SendFriendRequest)
		chat.GET("/friend-requests", r.friendHandler.GetFriendRequests)
		chat.POST("/friend-requests/:id/accept", r.friendHandler.AcceptFriendRequest)
		chat.POST("/friend-requests/:id/reject", r.friendHandler.RejectFriendRequest)
		chat.GET("/search-users", r.friendHandler.SearchUsers)
		chat.POST("/remove-friend", r.friendHandler.RemoveFriend)
		chat.POST("/block-friend", r.friendHandler.BlockFriend)

		chat.POST("/video-call", r.callHandler.VideoCall)
		chat.POST("/audio-call", r.callHandler.AudioCall)
		chat.GET("/calls/:callId", r.callHandler.GetCall)
		chat.POST("/calls/:callId/accept", r.callHandler.AcceptCall)
		chat.POST("/calls/:callId/reject", r.callHandler.RejectCall)
		chat.POST("/calls/:callId/end", r.callHandler.EndCall)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
