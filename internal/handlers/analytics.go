package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/analytics"
	"github.com/nostrvine/backend/internal/util"
)

const (
	defaultAnalyticsHours = 24
	maxAnalyticsHours     = 7 * 24
)

// GetAnalytics aggregates stored prefetch outcomes for a session and window
// GET /api/v1/prefetch/analytics?sessionId=&hours=
func (h *Handlers) GetAnalytics(c *gin.Context) {
	hours := util.ClampInt(util.ParseInt(c.Query("hours"), defaultAnalyticsHours), 1, maxAnalyticsHours)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	filter := analytics.Filter{
		SessionID: strings.TrimSpace(c.Query("sessionId")),
		Since:     since,
	}

	summary, err := h.store.Summarize(c.Request.Context(), filter)
	if err != nil {
		util.RespondInternalError(c, "failed to aggregate prefetch analytics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analytics": summary,
		"window": gin.H{
			"hours": hours,
			"since": since.Format(time.RFC3339),
		},
	})
}
