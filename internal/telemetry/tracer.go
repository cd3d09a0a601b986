package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const (
	// DefaultServiceName is used when no OTEL_SERVICE_NAME is configured
	DefaultServiceName = "nostrvine-prefetch"
	serviceNamespace   = "nostrvine"

	attrCandidateSource = attribute.Key("prefetch.candidate_source")
)

// Config describes where prefetch spans are exported and how the service
// identifies itself to the collector.
type Config struct {
	ServiceName     string
	ServiceVersion  string
	Environment     string
	CandidateSource string // "database" or "gorse"
	OTLPEndpoint    string
	Insecure        bool
	Enabled         bool
	SamplingRate    float64 // 1.0 = 100%, 0.1 = 10%
}

// InitTracer installs the global tracer provider for the prefetch API.
// It returns a nil provider when tracing is disabled; spans then go to the
// global no-op tracer.
func InitTracer(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	// Clients send traceparent on recommendation requests; honour it
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// newResource describes this prefetch instance. The candidate source is
// included so traces from database and gorse backed deployments can be
// told apart in the collector.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceNamespace(serviceNamespace),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.CandidateSource != "" {
		attrs = append(attrs, attrCandidateSource.String(cfg.CandidateSource))
	}

	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// newSampler respects the caller's sampling decision and samples root
// spans at rate. Rates outside (0, 1) are clamped.
func newSampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}
