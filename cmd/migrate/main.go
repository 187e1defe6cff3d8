package main

import (
	"log/slog"
	"os"

	"social-chat/internal/config"
	"social-chat/internal/database"
	"social-chat/pkg/logger"
)

// migrate applies the schema and exits.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	slog.Info("Starting database migration...", "driver", cfg.Database.Driver)
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database instance", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	slog.Info("Database migration completed successfully")
}
