package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "social-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// RateLimiter reports whether one more request fits in the window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
}

// NewRateLimitMiddleware returns a middleware that lets everything through
// when limiter is nil.
func NewRateLimitMiddleware(limiter RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// RateLimit limits an authenticated user per route.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return rm.limit(requests, window, func(c *gin.Context) string {
		return fmt.Sprintf("rate_limit:%d:%s", UserID(c), c.FullPath())
	})
}

// RateLimitIP limits public routes by client address.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return rm.limit(requests, window, func(c *gin.Context) string {
		return fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath())
	})
}

func (rm *RateLimitMiddleware) limit(requests int, window time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.limiter == nil || requests <= 0 {
			c.Next()
			return
		}

		allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key(c), requests, window)
		if err != nil {
			// fail open
			slog.Warn("Rate limit check failed", "path", c.FullPath(), "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   fmt.Sprintf("too many requests, limit is %d per %v", requests, window),
				"code":    apperrors.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
