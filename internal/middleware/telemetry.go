package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware returns otelgin followed by a handler that tags the
// request span with prefetch attributes. Install with router.Use(chain...).
func TracingMiddleware(serviceName string) gin.HandlersChain {
	return gin.HandlersChain{
		otelgin.Middleware(serviceName),
		spanEnrichment(),
	}
}

// spanEnrichment runs inside the otelgin span, so the span is still open
// when the handler chain returns
func spanEnrichment() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if sessionID := c.Query("sessionId"); sessionID != "" {
			span.SetAttributes(attribute.String("prefetch.session_id", sessionID))
		}
		if recID := c.GetString(RecommendationIDKey); recID != "" {
			span.SetAttributes(attribute.String("prefetch.recommendation_id", recID))
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err)
			}
		}
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
