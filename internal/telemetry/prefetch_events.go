package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PrefetchEvents traces prefetch decisions beyond the HTTP/DB layer
type PrefetchEvents struct {
	tracer trace.Tracer
}

// NewPrefetchEvents creates a prefetch events tracer
func NewPrefetchEvents() *PrefetchEvents {
	return &PrefetchEvents{
		tracer: otel.Tracer("prefetch-events"),
	}
}

// RecommendationAttrs describes a finished recommendation
type RecommendationAttrs struct {
	RecommendationID string
	NetworkType      string
	ScrollProfile    string
	BaseCount        int
	VideoCount       int
	EstimatedSizeMB  float64
	Fallback         string
}

// TraceRecommend starts the span covering one recommendation
func (pe *PrefetchEvents) TraceRecommend(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return pe.tracer.Start(ctx, "prefetch.recommend",
		trace.WithAttributes(attribute.String("prefetch.session_id", sessionID)),
	)
}

// EndRecommend annotates and ends a span started by TraceRecommend
func (pe *PrefetchEvents) EndRecommend(span trace.Span, attrs RecommendationAttrs) {
	defer span.End()

	span.SetAttributes(
		attribute.String("prefetch.recommendation_id", attrs.RecommendationID),
		attribute.String("prefetch.network_type", attrs.NetworkType),
		attribute.String("prefetch.scroll_profile", attrs.ScrollProfile),
		attribute.Int("prefetch.base_count", attrs.BaseCount),
		attribute.Int("prefetch.video_count", attrs.VideoCount),
		attribute.Float64("prefetch.estimated_size_mb", attrs.EstimatedSizeMB),
	)
	if attrs.Fallback != "" {
		span.SetAttributes(attribute.String("prefetch.fallback", attrs.Fallback))
	}
}

// TraceCandidateFetch starts a span around a candidate source call
func (pe *PrefetchEvents) TraceCandidateFetch(ctx context.Context, source string, limit int) (context.Context, trace.Span) {
	return pe.tracer.Start(ctx, "prefetch.candidates",
		trace.WithAttributes(
			attribute.String("candidates.source", source),
			attribute.Int("candidates.limit", limit),
		),
	)
}

// EndCandidateFetch records the result of a candidate source call and ends the span
func (pe *PrefetchEvents) EndCandidateFetch(span trace.Span, count int, cacheHit bool, err error) {
	defer span.End()

	span.SetAttributes(
		attribute.Int("candidates.count", count),
		attribute.Bool("candidates.cache_hit", cacheHit),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

// TraceOutcomeBatch starts a span around persisting a batch of outcome records
func (pe *PrefetchEvents) TraceOutcomeBatch(ctx context.Context, size int) (context.Context, trace.Span) {
	return pe.tracer.Start(ctx, "prefetch.outcomes.persist",
		trace.WithAttributes(attribute.Int("outcomes.batch_size", size)),
	)
}

// RecordError marks a span as failed
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
