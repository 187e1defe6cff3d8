package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"social-chat/internal/config"
	"social-chat/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the configured SQL database and migrates the chat schema.
func NewConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := openWithRetry(dialector, connectAttempts, connectRetryDelay)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("Database connection established", "driver", cfg.Driver)
	return db, nil
}

const (
	connectAttempts   = 5
	connectRetryDelay = 5 * time.Second
)

// openWithRetry keeps dialing while the database container is still starting.
func openWithRetry(dialector gorm.Dialector, attempts int, delay time.Duration) (*gorm.DB, error) {
	var err error
	for i := 1; i <= attempts; i++ {
		var db *gorm.DB
		if db, err = Open(dialector); err == nil {
			return db, nil
		}
		slog.Warn("Failed to connect to database", "attempt", i, "maxAttempts", attempts, "error", err)
		if i < attempts {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

// Open wraps gorm.Open with the settings shared by every dialect.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              false,
		AllowGlobalUpdate:                        false,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.Message{},
	)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			slog.Warn("Tables already exist, continuing with existing schema", "error", err)
			return nil
		}
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
