package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/alerts"
)

// GetAlerts lists active prefetch health alerts
// GET /api/v1/prefetch/alerts
func (h *Handlers) GetAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
			"alerts":  []alerts.Alert{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"alerts":  h.alerts.GetActiveAlerts(),
		"rules":   h.alerts.GetAllRules(),
		"stats":   h.alerts.GetStats(),
	})
}
