package middleware

import (
	"strings"

	"social-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	ParseToken(token string) (uint, error)
}

type AuthMiddleware struct {
	tokens TokenParser
}

func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth accepts "Authorization: Bearer <jwt>", or a token query
// parameter for browsers that cannot set headers on a WebSocket upgrade.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, "authorization header is required")
			return
		}

		userID, err := am.tokens.ParseToken(token)
		if err != nil {
			c.Set("error", err.Error())
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// UserID returns the authenticated user, or 0 outside RequireAuth.
func UserID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

// SetUserID is used by tests to stand in for RequireAuth.
func SetUserID(c *gin.Context, userID uint) {
	c.Set(userIDKey, userID)
}
