package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any backing service the health check should probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports live WebSocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	conns    ConnectionCounter
	backends map[string]Pinger
}

func NewHealthHandler(conns ConnectionCounter, backends map[string]Pinger) *HealthHandler {
	return &HealthHandler{conns: conns, backends: backends}
}

// Health godoc
// @Summary Liveness and dependency status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(gin.H, len(h.backends))
	for name, p := range h.backends {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"connections": h.conns.ConnectionCount(),
		"checks":      checks,
	})
}
