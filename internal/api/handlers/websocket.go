package handlers

import (
	"log/slog"

	"social-chat/internal/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
}

func NewWSHandler(hub *websocket.Hub, upgrader *gorillaws.Upgrader) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Upgrade to the real-time channel. Browsers pass the JWT as the token query parameter.
// @Tags websocket
// @Param token query string false "JWT when no Authorization header can be sent"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID := currentUser(c)
	slog.Debug("WebSocket connection requested", "userID", userID, "remote", c.ClientIP())
	websocket.ServeWS(h.hub, h.upgrader, c.Writer, c.Request, userID)
}
