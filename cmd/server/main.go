package main

// @title           Social Chat API
// @version         1.0
// @description     Direct messaging, friends, presence and call signaling.
// @host            localhost:8080
// @BasePath        /api
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-chat/internal/adapters/kafka"
	"social-chat/internal/adapters/storage"
	"social-chat/internal/api/handlers"
	"social-chat/internal/api/middleware"
	"social-chat/internal/api/routes"
	"social-chat/internal/cache"
	"social-chat/internal/config"
	"social-chat/internal/database"
	"social-chat/internal/gateway"
	"social-chat/internal/presence"
	"social-chat/internal/repositories/postgres"
	"social-chat/internal/services"
	"social-chat/internal/websocket"
	"social-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)
	slog.Info("Starting chat server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	backends := map[string]handlers.Pinger{"database": sqlPinger{db: db}}

	// Redis is optional; presence and caches fall back to process memory.
	var (
		userCache   cache.Cache
		statusStore presence.StatusStore
		limiter     middleware.RateLimiter
	)
	mem := cache.NewMemoryCache(time.Minute)
	defer mem.Close()
	userCache = mem
	callCache := cache.Cache(mem)

	if cfg.Redis.URI != "" {
		redisClient, err := database.NewRedisConnection(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		redisService := services.NewRedisService(redisClient)
		userCache = cache.NewRedisCache(redisClient.GetClient(), "chat:")
		callCache = userCache
		statusStore = redisService
		limiter = redisService
		backends["redis"] = redisClient
	} else {
		slog.Warn("REDIS_URL not set, running without Redis")
	}

	var notifiers services.Notifiers
	publisher, err := kafka.NewEventPublisherFromConfig(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	var exports services.ExportStore
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOClient(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		exports = store
		backends["minio"] = store
	}

	userRepo := postgres.NewUserRepository(db)
	friendRepo := postgres.NewFriendRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	userService := services.NewUserService(userRepo, userCache, cfg.Chat.UserCacheTTL, cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	friendService := services.NewFriendService(friendRepo, userService)
	chatService := services.NewChatService(messageRepo, friendService, userService, exports, cfg.Chat.DefaultPageSize, cfg.Chat.MaxPageSize)
	callService := services.NewCallService(friendService, userService, callCache, cfg.Chat.CallInviteTimeout, cfg.Chat.FinishedCallTTL)

	registry := presence.NewRegistry(friendService, statusStore)
	gw := gateway.New(registry, chatService, friendService, callService, userService, notifiers)
	friendService.SetNotifier(gw)
	callService.SetNotifier(gw)

	hub := websocket.NewHub(gw)
	go hub.Run()
	go callService.RunSweeper(ctx, cfg.Chat.CallSweepInterval)
	go registry.RunRefresher(ctx, cfg.Chat.PresenceRefresh)

	router := routes.NewRouter(routes.Deps{
		Hub:            hub,
		Upgrader:       websocket.NewUpgrader(cfg.Server.AllowedOrigins),
		Gateway:        gw,
		Users:          userService,
		Friends:        friendService,
		Chat:           chatService,
		Calls:          callService,
		RateLimiter:    limiter,
		Backends:       backends,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerMinute:  cfg.Chat.RateLimitPerMinute,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server stopped")
	return nil
}
