package response

import (
	"log/slog"
	"net/http"

	apperrors "social-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeAlreadyFriends,
		apperrors.CodeRequestAlreadyPending,
		apperrors.CodeInvalidState,
		apperrors.CodeAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// OK writes {success: true, ...fields}.
func OK(c *gin.Context, fields gin.H) {
	Status(c, http.StatusOK, fields)
}

// Status writes a success envelope with a custom status code.
func Status(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// Fail writes {success: false, error, code} with the status derived from err.
func Fail(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := StatusFor(code)
	message := apperrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		code = apperrors.CodeInternal
		message = "internal server error"
	}
	c.Set("error", err.Error())
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// BadRequest answers a binding failure.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"code":    apperrors.CodeInvalidArgument,
	})
}

// Unauthorized aborts the request with 401.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    apperrors.CodeUnauthenticated,
	})
}
