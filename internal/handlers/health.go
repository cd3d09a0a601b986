package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Health reports database and redis reachability. Only a database failure
// makes the service unhealthy; redis is an optional accelerator.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if h.dbHealth != nil {
		if err := h.dbHealth(); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			checks["database"] = gin.H{"status": "up"}
		}
	}

	if h.redis == nil {
		checks["redis"] = gin.H{"status": "disabled"}
	} else if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = gin.H{"status": "down", "error": err.Error()}
	} else {
		checks["redis"] = gin.H{"status": "up"}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"service":   "prefetch-api",
		"version":   Version,
		"checks":    checks,
	})
}
