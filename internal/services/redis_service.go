package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"social-chat/internal/database"
	"social-chat/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey   = "online_users"
	onlineStatusTTL  = 5 * time.Minute
	offlineStatusTTL = 30 * 24 * time.Hour
)

// RedisService mirrors presence and backs the request rate limiter.
type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
	}
}

func statusKey(userID uint) string {
	return fmt.Sprintf("user:%d:status", userID)
}

// =============================================================================
// User Status Management
// =============================================================================

func (r *RedisService) SetUserStatus(ctx context.Context, userID uint, status models.PresenceStatus, lastSeen time.Time) error {
	id := strconv.FormatUint(uint64(userID), 10)
	pipe := r.client.GetClient().Pipeline()

	ttl := onlineStatusTTL
	if status == models.PresenceOffline {
		pipe.SRem(ctx, onlineUsersKey, id)
		ttl = offlineStatusTTL
	} else {
		pipe.SAdd(ctx, onlineUsersKey, id)
	}

	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     string(status),
		"last_seen":  lastSeen.Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, statusKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to set user status", "userID", userID, "status", status, "error", err)
		return err
	}

	slog.Debug("User status mirrored", "userID", userID, "status", status)
	return nil
}

func (r *RedisService) GetLastSeen(ctx context.Context, userID uint) (*time.Time, error) {
	raw, err := r.client.GetClient().HGet(ctx, statusKey(userID), "last_seen").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid last_seen for user %d: %w", userID, err)
	}
	t := time.Unix(sec, 0)
	return &t, nil
}

func (r *RedisService) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlineUsersKey, strconv.FormatUint(uint64(userID), 10)).Result()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit keeps a sliding window of request timestamps in a sorted set.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
