package handlers

import (
	"strconv"

	"social-chat/internal/api/middleware"
	apperrors "social-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// uintParam reads a positive numeric path parameter.
func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperrors.InvalidArg("invalid " + name)
	}
	return uint(v), nil
}

// intQuery reads an optional non-negative integer query value.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.InvalidArg("invalid " + name)
	}
	return v, nil
}

func currentUser(c *gin.Context) uint {
	return middleware.UserID(c)
}
