package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/middleware"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
	"github.com/nostrvine/backend/internal/util"
	"go.uber.org/zap"
)

// maxPrefetchBody bounds the JSON body of a prefetch request
const maxPrefetchBody = 16 << 10

// looseNumber accepts a JSON number or a numeric string. Anything else,
// including null, leaves it unset.
type looseNumber struct {
	value float64
	set   bool
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		n.value, n.set = v, true
	case string:
		n.parse(v)
	}
	return nil
}

func (n *looseNumber) parse(s string) {
	f := util.ParseFloat(s, math.NaN())
	if math.IsNaN(f) {
		return
	}
	n.value, n.set = f, true
}

// looseString accepts a JSON string or number and ignores other types.
type looseString struct {
	value string
	set   bool
}

func (s *looseString) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		s.value, s.set = v, true
	case float64:
		s.value, s.set = string(bytes.TrimSpace(data)), true
	}
	return nil
}

// prefetchParams is the transport form of a prefetch request. Every field is
// optional; the query string is read first and a JSON body overrides the
// fields it sets.
type prefetchParams struct {
	SessionID      looseString `json:"sessionId"`
	CurrentVideoID looseString `json:"currentVideoId"`
	Cursor         looseString `json:"cursor"`
	Bandwidth      looseNumber `json:"bandwidth"`
	Latency        looseNumber `json:"latency"`
	ConnectionType looseString `json:"connectionType"`
	AvgViewTime    looseNumber `json:"avgViewTime"`
	ScrollVelocity looseNumber `json:"scrollVelocity"`
	Quality        looseString `json:"quality"`
	PrefetchCount  looseNumber `json:"prefetchCount"`
}

type prefetchBody struct {
	VideoIDs      []string                    `json:"videoIds"`
	QualityMap    map[string]prefetch.Quality `json:"qualityMap"`
	PriorityOrder []string                    `json:"priorityOrder"`
	EstimatedSize float64                     `json:"estimatedSize"`
	Reasoning     reasoningBody               `json:"reasoning"`
}

type reasoningBody struct {
	NetworkCondition string `json:"networkCondition"`
	ScrollPattern    string `json:"scrollPattern"`
	Strategy         string `json:"strategy"`
}

type strategyBody struct {
	NetworkCondition string             `json:"networkCondition"`
	Bandwidth        float64            `json:"bandwidth"`
	BaseCount        int                `json:"baseCount"`
	QualityPriority  []prefetch.Quality `json:"qualityPriority"`
}

type metaBody struct {
	ResponseTime     float64 `json:"responseTime"`
	Timestamp        string  `json:"timestamp"`
	Version          string  `json:"version"`
	RecommendationID string  `json:"recommendationId"`
}

// PrefetchResponse is the JSON shape returned by the prefetch endpoint
type PrefetchResponse struct {
	Prefetch prefetchBody `json:"prefetch"`
	Strategy strategyBody `json:"strategy"`
	Meta     metaBody     `json:"meta"`
}

// GetPrefetch recommends which upcoming videos the client should preload
// GET|POST /api/v1/prefetch
func (h *Handlers) GetPrefetch(c *gin.Context) {
	start := time.Now()

	req, ok := bindPrefetchRequest(c)
	if !ok {
		return
	}
	if req.SessionID == "" {
		req.SessionID = prefetch.DefaultSessionID
	}

	ctx, span := h.events.TraceRecommend(c.Request.Context(), req.SessionID)
	result := h.engine.Recommend(ctx, req)
	rec := result.Recommendation
	h.events.EndRecommend(span, telemetry.RecommendationAttrs{
		RecommendationID: result.ID,
		NetworkType:      result.Condition.Type.String(),
		ScrollProfile:    string(result.Pattern.Profile),
		BaseCount:        result.Strategy.BaseCount,
		VideoCount:       len(rec.VideoIDs),
		EstimatedSizeMB:  rec.EstimatedSizeMB,
		Fallback:         string(rec.Fallback),
	})

	c.Set(middleware.RecommendationIDKey, result.ID)

	if rec.Fallback != prefetch.FallbackNone {
		logger.Log.Info("Prefetch degraded to empty recommendation",
			logger.WithRequestID(middleware.GetRequestID(c)),
			logger.WithRecommendationID(result.ID),
			logger.WithSessionID(req.SessionID),
			logger.WithNetworkType(result.Condition.Type.String()),
			zap.String("fallback", string(rec.Fallback)),
		)
	}

	c.JSON(http.StatusOK, newPrefetchResponse(result, time.Since(start)))
}

// bindPrefetchRequest merges query parameters with an optional JSON body.
// It aborts with 400 only when a body is present and is not valid JSON.
func bindPrefetchRequest(c *gin.Context) (prefetch.Request, bool) {
	params := prefetchParamsFromQuery(c)

	if c.Request.Method == http.MethodPost && c.Request.Body != nil {
		body, err := readLimited(c, maxPrefetchBody)
		if err != nil {
			util.RespondBadRequest(c, "request body too large")
			return prefetch.Request{}, false
		}
		if len(bytes.TrimSpace(body)) > 0 {
			var fromBody prefetchParams
			if err := json.Unmarshal(body, &fromBody); err != nil {
				metrics.RecordError("invalid_body", c.FullPath())
				util.RespondBadRequest(c, "invalid JSON body")
				return prefetch.Request{}, false
			}
			params.merge(fromBody)
		}
	}

	return params.toRequest(), true
}

func prefetchParamsFromQuery(c *gin.Context) prefetchParams {
	var p prefetchParams
	for key, dst := range map[string]*looseString{
		"sessionId":      &p.SessionID,
		"currentVideoId": &p.CurrentVideoID,
		"cursor":         &p.Cursor,
		"connectionType": &p.ConnectionType,
		"quality":        &p.Quality,
	} {
		if v, ok := c.GetQuery(key); ok {
			*dst = looseString{value: v, set: true}
		}
	}
	for key, dst := range map[string]*looseNumber{
		"bandwidth":      &p.Bandwidth,
		"latency":        &p.Latency,
		"avgViewTime":    &p.AvgViewTime,
		"scrollVelocity": &p.ScrollVelocity,
		"prefetchCount":  &p.PrefetchCount,
	} {
		if v, ok := c.GetQuery(key); ok {
			dst.parse(v)
		}
	}
	return p
}

func (p *prefetchParams) merge(o prefetchParams) {
	for _, pair := range [][2]*looseString{
		{&p.SessionID, &o.SessionID},
		{&p.CurrentVideoID, &o.CurrentVideoID},
		{&p.Cursor, &o.Cursor},
		{&p.ConnectionType, &o.ConnectionType},
		{&p.Quality, &o.Quality},
	} {
		if pair[1].set {
			*pair[0] = *pair[1]
		}
	}
	for _, pair := range [][2]*looseNumber{
		{&p.Bandwidth, &o.Bandwidth},
		{&p.Latency, &o.Latency},
		{&p.AvgViewTime, &o.AvgViewTime},
		{&p.ScrollVelocity, &o.ScrollVelocity},
		{&p.PrefetchCount, &o.PrefetchCount},
	} {
		if pair[1].set {
			*pair[0] = *pair[1]
		}
	}
}

func (p prefetchParams) toRequest() prefetch.Request {
	velocity := prefetch.DefaultScrollVelocity
	if p.ScrollVelocity.set {
		velocity = p.ScrollVelocity.value
	}
	viewTime := prefetch.DefaultAverageViewTimeMs
	if p.AvgViewTime.set {
		viewTime = toInt(p.AvgViewTime.value, prefetch.DefaultAverageViewTimeMs)
	}
	count := 5
	if p.PrefetchCount.set {
		count = toInt(p.PrefetchCount.value, count)
	}

	return prefetch.Request{
		SessionID:      strings.TrimSpace(p.SessionID.value),
		CurrentVideoID: strings.TrimSpace(p.CurrentVideoID.value),
		Cursor:         p.Cursor.value,
		Network: prefetch.NetworkHint{
			BandwidthMbps:  p.Bandwidth.value,
			LatencyMs:      toInt(p.Latency.value, 0),
			ConnectionType: prefetch.ParseConnectionType(p.ConnectionType.value),
		},
		Scroll: prefetch.ScrollHint{
			AverageViewTimeMs: viewTime,
			ScrollVelocity:    velocity,
			QualityPreference: prefetch.ParseQualityPreference(p.Quality.value),
		},
		PrefetchCount: count,
	}
}

func newPrefetchResponse(result prefetch.Result, elapsed time.Duration) PrefetchResponse {
	rec := result.Recommendation

	ids := make([]string, len(rec.VideoIDs))
	copy(ids, rec.VideoIDs)
	order := make([]string, len(rec.VideoIDs))
	copy(order, rec.VideoIDs)
	qualityMap := make(map[string]prefetch.Quality, len(rec.QualityMap))
	for id, q := range rec.QualityMap {
		qualityMap[id] = q
	}
	priority := make([]prefetch.Quality, len(result.Strategy.QualityPriority))
	copy(priority, result.Strategy.QualityPriority)

	return PrefetchResponse{
		Prefetch: prefetchBody{
			VideoIDs:      ids,
			QualityMap:    qualityMap,
			PriorityOrder: order,
			EstimatedSize: rec.EstimatedSizeMB,
			Reasoning: reasoningBody{
				NetworkCondition: rec.Reasoning.NetworkCondition,
				ScrollPattern:    rec.Reasoning.ScrollPattern,
				Strategy:         rec.Reasoning.Strategy,
			},
		},
		Strategy: strategyBody{
			NetworkCondition: result.Condition.Type.String(),
			Bandwidth:        result.Condition.BandwidthMbps,
			BaseCount:        result.Strategy.BaseCount,
			QualityPriority:  priority,
		},
		Meta: metaBody{
			ResponseTime:     float64(elapsed.Microseconds()) / 1000,
			Timestamp:        result.GeneratedAt.Format(time.RFC3339Nano),
			Version:          Version,
			RecommendationID: result.ID,
		},
	}
}

func readLimited(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return io.ReadAll(c.Request.Body)
}

// toInt truncates f, falling back to def outside the int32 range
func toInt(f float64, def int) int {
	if f < math.MinInt32 || f > math.MaxInt32 {
		return def
	}
	return int(f)
}
