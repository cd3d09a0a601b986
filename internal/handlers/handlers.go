package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/alerts"
	"github.com/nostrvine/backend/internal/analytics"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
)

// Version is reported in every prefetch response
const Version = "1.0.0"

// Pinger is anything whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// ViewSyncer forwards viewed videos to a recommender
type ViewSyncer interface {
	SyncViews(ctx context.Context, sessionID string, videoIDs []string, at time.Time) error
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	engine   *prefetch.Engine
	store    analytics.Store
	events   *telemetry.PrefetchEvents
	dbHealth func() error
	redis    Pinger
	views    ViewSyncer
	alerts   *alerts.AlertManager
}

// NewHandlers creates a new handlers instance
func NewHandlers(engine *prefetch.Engine, store analytics.Store) *Handlers {
	return &Handlers{
		engine: engine,
		store:  store,
		events: telemetry.NewPrefetchEvents(),
	}
}

// SetHealthChecks sets the dependency probes reported by /health.
// A nil redis means redis is not configured.
func (h *Handlers) SetHealthChecks(db func() error, redis Pinger) {
	h.dbHealth = db
	h.redis = redis
}

// SetViewSyncer forwards feedback to the recommender feeding the candidate source
func (h *Handlers) SetViewSyncer(v ViewSyncer) {
	h.views = v
}

// SetAlertManager exposes prefetch health alerts
func (h *Handlers) SetAlertManager(am *alerts.AlertManager) {
	h.alerts = am
}

// RegisterRoutes mounts the prefetch API under r. analyticsMiddleware wraps
// only the read-only analytics endpoint.
func (h *Handlers) RegisterRoutes(r gin.IRouter, analyticsMiddleware ...gin.HandlerFunc) {
	group := r.Group("/prefetch")
	{
		group.GET("", h.GetPrefetch)
		group.POST("", h.GetPrefetch)
		group.POST("/feedback", h.SubmitFeedback)
		group.GET("/analytics", append(analyticsMiddleware, h.GetAnalytics)...)
		group.GET("/alerts", h.GetAlerts)
	}
}
