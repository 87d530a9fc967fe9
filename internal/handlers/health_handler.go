package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a HealthHandler. db may be nil, in which case only
// the process itself is reported.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports service status.
// @Summary     Health check
// @Tags        health
// @Produce     json
// @Success     200 {object} map[string]string "Service healthy"
// @Failure     503 {object} map[string]string "Database unreachable"
// @Router      /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			requestLogger(c).Warnw("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
