package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"social-chat/internal/cache"
	"social-chat/internal/config"
	"social-chat/internal/database"
	"social-chat/internal/models"
	"social-chat/internal/repositories/postgres"
	"social-chat/internal/services"
	apperrors "social-chat/pkg/errors"
	"social-chat/pkg/logger"
)

const seedPassword = "123456"

var seedUsers = []models.RegisterRequest{
	{Username: "coach", Email: "coach@fitchat.dev"},
	{Username: "alice", Email: "alice@fitchat.dev"},
	{Username: "bob", Email: "bob@fitchat.dev"},
	{Username: "charlie", Email: "charlie@fitchat.dev"},
}

// Everyone is friends with the coach; alice and bob know each other too.
var seedFriendships = [][2]string{
	{"coach", "alice"},
	{"coach", "bob"},
	{"coach", "charlie"},
	{"alice", "bob"},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	users := services.NewUserService(postgres.NewUserRepository(db), mem, time.Minute, cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	friends := services.NewFriendService(postgres.NewFriendRepository(db), users)
	chat := services.NewChatService(postgres.NewMessageRepository(db), friends, users, nil, cfg.Chat.DefaultPageSize, cfg.Chat.MaxPageSize)

	ctx := context.Background()
	ids := make(map[string]uint, len(seedUsers))
	for _, req := range seedUsers {
		req.Password = seedPassword
		id, err := ensureUser(ctx, users, req)
		if err != nil {
			slog.Error("Failed to seed user", "username", req.Username, "error", err)
			os.Exit(1)
		}
		ids[req.Username] = id
	}

	for _, pair := range seedFriendships {
		if err := befriend(ctx, users, friends, ids[pair[0]], ids[pair[1]]); err != nil {
			slog.Error("Failed to seed friendship", "a", pair[0], "b", pair[1], "error", err)
			os.Exit(1)
		}
	}

	if _, err := chat.AppendMessage(ctx, ids["coach"], ids["alice"], "Welcome! Ready for Monday's session?", models.MessageTypeText); err != nil {
		slog.Warn("Failed to seed welcome message", "error", err)
	}

	slog.Info("Seeding completed", "users", len(ids), "friendships", len(seedFriendships))
}

func ensureUser(ctx context.Context, users *services.UserService, req models.RegisterRequest) (uint, error) {
	created, err := users.Register(ctx, &req)
	if err == nil {
		slog.Info("Created user", "username", req.Username, "id", created.ID)
		return created.ID, nil
	}
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		return 0, err
	}
	existing, err := users.FindByEmail(ctx, req.Email)
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func befriend(ctx context.Context, users *services.UserService, friends *services.FriendService, a, b uint) error {
	ok, err := friends.AreFriends(ctx, a, b)
	if err != nil || ok {
		return err
	}
	recipient, err := users.FindByID(ctx, b)
	if err != nil {
		return err
	}
	req, err := friends.SendFriendRequest(ctx, a, recipient.Email, "")
	if err != nil {
		return err
	}
	_, err = friends.AcceptFriendRequest(ctx, req.ID, b)
	return err
}
