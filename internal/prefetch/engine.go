package prefetch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"go.uber.org/zap"
)

// DefaultSessionID is used when the client does not identify its session.
const DefaultSessionID = "anonymous"

// OutcomeRecord is what the engine reports about each decision for offline
// hit-rate analysis.
type OutcomeRecord struct {
	RecommendationID string
	SessionID        string
	CurrentVideoID   string
	Condition        NetworkCondition
	Pattern          ScrollPattern
	Strategy         Strategy
	VideoIDs         []string
	EstimatedSizeMB  float64
	Fallback         FallbackReason
	ResponseTime     time.Duration
	CreatedAt        time.Time
}

// OutcomeSink receives outcome records. Emit has no result on purpose:
// implementations must return immediately and swallow their own failures.
type OutcomeSink interface {
	Emit(record OutcomeRecord)
}

// NopSink discards every record.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(OutcomeRecord) {}

// Result is one complete prefetch decision.
type Result struct {
	ID             string
	Recommendation Recommendation
	Strategy       Strategy
	Condition      NetworkCondition
	Pattern        ScrollPattern
	GeneratedAt    time.Time
	Duration       time.Duration
}

// Engine runs classify, analyze, calculate, build and emit for each request.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg        Config
	classifier *Classifier
	analyzer   *Analyzer
	calculator *Calculator
	builder    *Builder
	sink       OutcomeSink
	now        func() time.Time
}

// NewEngine wires the components around one shared Config.
func NewEngine(cfg Config, source CandidateSource, sink OutcomeSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Network),
		analyzer:   NewAnalyzer(cfg.Scroll),
		calculator: NewCalculator(cfg),
		builder:    NewBuilder(cfg, source),
		sink:       sink,
		now:        time.Now,
	}
}

// Config returns the policy the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Plan classifies the hints and calculates a strategy without touching the
// candidate source.
func (e *Engine) Plan(network NetworkHint, scroll ScrollHint) (NetworkCondition, ScrollPattern, Strategy) {
	condition := e.classifier.Classify(network)
	pattern := e.analyzer.Analyze(scroll)
	return condition, pattern, e.calculator.Calculate(condition, pattern)
}

// Recommend never fails; the worst case is an empty recommendation.
// Cancelling ctx cancels the in-flight candidate fetch.
func (e *Engine) Recommend(ctx context.Context, req Request) Result {
	start := e.now()
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}

	condition, pattern, strategy := e.Plan(req.Network, req.Scroll)
	rec := e.builder.Build(ctx, req, strategy, condition, pattern)

	result := Result{
		ID:             uuid.New().String(),
		Recommendation: rec,
		Strategy:       strategy,
		Condition:      condition,
		Pattern:        pattern,
		GeneratedAt:    start.UTC(),
		Duration:       e.now().Sub(start),
	}

	metrics.RecordPrefetch(strategy.NetworkType.String(), strategy.BaseCount,
		rec.EstimatedSizeMB, string(rec.Fallback), result.Duration)
	e.emit(req, result)
	return result
}

func (e *Engine) emit(req Request, result Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Outcome sink panicked, record dropped",
				logger.WithRecommendationID(result.ID),
				zap.Any("panic", r),
			)
		}
	}()

	ids := make([]string, len(result.Recommendation.VideoIDs))
	copy(ids, result.Recommendation.VideoIDs)

	e.sink.Emit(OutcomeRecord{
		RecommendationID: result.ID,
		SessionID:        req.SessionID,
		CurrentVideoID:   req.CurrentVideoID,
		Condition:        result.Condition,
		Pattern:          result.Pattern,
		Strategy:         result.Strategy,
		VideoIDs:         ids,
		EstimatedSizeMB:  result.Recommendation.EstimatedSizeMB,
		Fallback:         result.Recommendation.Fallback,
		ResponseTime:     result.Duration,
		CreatedAt:        result.GeneratedAt,
	})
}
