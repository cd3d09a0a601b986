package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/middleware"
	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/util"
	"go.uber.org/zap"
)

const (
	// maxViewedVideos caps how many viewed ids one feedback report may carry
	maxViewedVideos = 64
	viewSyncTimeout = 5 * time.Second
)

type feedbackRequest struct {
	SessionID        string   `json:"sessionId"`
	RecommendationID string   `json:"recommendationId"`
	ViewedVideoIDs   []string `json:"viewedVideoIds"`
}

// SubmitFeedback records which prefetched videos the client went on to watch
// POST /api/v1/prefetch/feedback
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordFeedback("invalid")
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	req.RecommendationID = strings.TrimSpace(req.RecommendationID)
	if req.RecommendationID == "" {
		metrics.RecordFeedback("invalid")
		util.RespondValidationError(c, "recommendationId", "recommendationId is required")
		return
	}
	if len(req.ViewedVideoIDs) > maxViewedVideos {
		metrics.RecordFeedback("invalid")
		util.RespondValidationError(c, "viewedVideoIds", "too many viewed videos")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = prefetch.DefaultSessionID
	}

	feedback := &models.PrefetchFeedback{
		ID:               uuid.New().String(),
		RecommendationID: req.RecommendationID,
		SessionID:        sessionID,
		ViewedVideoIDs:   uniqueIDs(req.ViewedVideoIDs),
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.store.SaveFeedback(c.Request.Context(), feedback); err != nil {
		metrics.RecordFeedback("error")
		util.RespondInternalError(c, "failed to save feedback", err)
		return
	}
	metrics.RecordFeedback("stored")

	if h.views != nil && len(feedback.ViewedVideoIDs) > 0 {
		go h.syncViews(sessionID, feedback.ViewedVideoIDs, feedback.CreatedAt)
	}

	c.Set(middleware.RecommendationIDKey, feedback.RecommendationID)
	logger.Log.Debug("Prefetch feedback stored",
		logger.WithRecommendationID(feedback.RecommendationID),
		logger.WithSessionID(sessionID),
		zap.Int("viewed", len(feedback.ViewedVideoIDs)),
	)

	c.JSON(http.StatusCreated, gin.H{
		"id":               feedback.ID,
		"recommendationId": feedback.RecommendationID,
		"viewed":           len(feedback.ViewedVideoIDs),
	})
}

// uniqueIDs drops blanks and duplicates, keeping first-seen order
func uniqueIDs(ids []string) models.StringArray {
	out := make(models.StringArray, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// syncViews runs detached from the request; failures are only logged
func (h *Handlers) syncViews(sessionID string, videoIDs []string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), viewSyncTimeout)
	defer cancel()
	if err := h.views.SyncViews(ctx, sessionID, videoIDs, at); err != nil {
		logger.Log.Warn("Failed to forward prefetch feedback to recommender",
			logger.WithSessionID(sessionID),
			zap.Error(err),
		)
	}
}
