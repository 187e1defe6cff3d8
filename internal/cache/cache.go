// Package cache provides a small key/value store with per-entry expiry,
// backed either by process memory or by Redis.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encoded values. A zero ttl means no expiry.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get decodes the value into dest and reports whether the key was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}
