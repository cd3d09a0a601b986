package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// Context keys set by RequestIDMiddleware
const (
	RequestIDKey     = "request_id"
	CorrelationIDKey = "correlation_id"
)

// RequestIDMiddleware adds a unique request ID to each request.
// X-Request-ID is reused when the client sends one; X-Correlation-ID falls
// back to the request ID and is carried in trace baggage so background work
// (the outcome recorder) can be tied to the request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = requestID
		}

		c.Set(RequestIDKey, requestID)
		c.Set(CorrelationIDKey, correlationID)
		c.Header("X-Request-ID", requestID)
		c.Header("X-Correlation-ID", correlationID)

		ctx := c.Request.Context()
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("http.request_id", requestID),
				attribute.String("trace.correlation_id", correlationID),
			)
		}
		if member, err := baggage.NewMember("correlation_id", correlationID); err == nil {
			if bag, err := baggage.FromContext(ctx).SetMember(member); err == nil {
				ctx = baggage.ContextWithBaggage(ctx, bag)
			}
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestIDMiddleware
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// GetCorrelationIDFromContext extracts the correlation ID from trace baggage
func GetCorrelationIDFromContext(ctx context.Context) string {
	return baggage.FromContext(ctx).Member("correlation_id").Value()
}
