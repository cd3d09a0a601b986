package prefetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"go.uber.org/zap"
)

// CandidateQuery asks the feed for the next videos after Cursor.
type CandidateQuery struct {
	SessionID      string
	CurrentVideoID string
	// Cursor is opaque to this package and passed through untouched.
	Cursor string
	Limit  int
}

// CandidateSource supplies upcoming video IDs in relevance order.
type CandidateSource interface {
	NextVideoIDs(ctx context.Context, q CandidateQuery) ([]string, error)
}

// CandidateSourceFunc adapts a function to CandidateSource.
type CandidateSourceFunc func(ctx context.Context, q CandidateQuery) ([]string, error)

// NextVideoIDs calls f.
func (f CandidateSourceFunc) NextVideoIDs(ctx context.Context, q CandidateQuery) ([]string, error) {
	return f(ctx, q)
}

// Request is the transport-independent input of one prefetch decision.
type Request struct {
	SessionID      string
	CurrentVideoID string
	Cursor         string
	Network        NetworkHint
	Scroll         ScrollHint
	// PrefetchCount is what the client asked for; the calculated strategy supersedes it.
	PrefetchCount int
}

// Builder applies a Strategy to a page of candidates.
type Builder struct {
	cfg    Config
	source CandidateSource
}

// NewBuilder creates a builder. A nil source behaves like an empty feed.
func NewBuilder(cfg Config, source CandidateSource) *Builder {
	return &Builder{cfg: cfg, source: source}
}

// Build never fails. If the candidate source errors, panics or exceeds the
// configured timeout, the recommendation is empty.
func (b *Builder) Build(ctx context.Context, req Request, strategy Strategy, condition NetworkCondition, pattern ScrollPattern) Recommendation {
	rec := Recommendation{
		VideoIDs:   []string{},
		QualityMap: map[string]Quality{},
		Reasoning: Reasoning{
			NetworkCondition: describeCondition(condition),
			ScrollPattern:    describePattern(pattern),
			Strategy:         describeStrategy(strategy),
		},
	}

	ids, fallback := b.fetchCandidates(ctx, CandidateQuery{
		SessionID:      req.SessionID,
		CurrentVideoID: req.CurrentVideoID,
		Cursor:         req.Cursor,
		Limit:          strategy.BaseCount + b.cfg.CandidateHeadroom,
	})
	if fallback != FallbackNone {
		rec.Fallback = fallback
		rec.Reasoning.Strategy += fmt.Sprintf(" (no prefetch: %s)", fallback)
		return rec
	}

	for _, id := range ids {
		if len(rec.VideoIDs) >= strategy.BaseCount {
			break
		}
		if id == "" {
			continue
		}
		if _, seen := rec.QualityMap[id]; seen {
			continue
		}

		quality := b.qualityAt(len(rec.VideoIDs), condition.Type)
		rec.VideoIDs = append(rec.VideoIDs, id)
		rec.QualityMap[id] = quality
		rec.EstimatedSizeMB += b.cfg.Sizes.For(quality)
	}

	if rec.Empty() {
		rec.Fallback = FallbackNoCandidates
	}
	return rec
}

// qualityAt assigns a tier by position. The most urgent videos get both
// renditions unless the network is slow; the tail depends on network type.
func (b *Builder) qualityAt(position int, network NetworkType) Quality {
	if position < b.cfg.UrgentCount {
		if network == NetworkSlow {
			return Quality480p
		}
		return QualityBoth
	}
	if network == NetworkFast {
		return QualityBoth
	}
	return Quality480p
}

type candidateResult struct {
	ids []string
	err error
}

var errCandidatePanic = errors.New("candidate source panicked")

func (b *Builder) fetchCandidates(ctx context.Context, q CandidateQuery) ([]string, FallbackReason) {
	if b.source == nil {
		return nil, FallbackNoCandidates
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CandidateTimeout)
	defer cancel()

	done := make(chan candidateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- candidateResult{err: fmt.Errorf("%w: %v", errCandidatePanic, r)}
			}
		}()
		ids, err := b.source.NextVideoIDs(ctx, q)
		done <- candidateResult{ids: ids, err: err}
	}()

	var res candidateResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = candidateResult{err: ctx.Err()}
	}

	if res.err == nil {
		return res.ids, FallbackNone
	}

	reason := FallbackCandidateError
	if errors.Is(res.err, context.DeadlineExceeded) {
		reason = FallbackCandidateTimeout
	}
	metrics.RecordCandidateFailure(string(reason))
	logger.Log.Warn("Candidate source unavailable, skipping prefetch",
		logger.WithSessionID(q.SessionID),
		zap.String("cursor", q.Cursor),
		zap.Int("limit", q.Limit),
		zap.String("reason", string(reason)),
		zap.Error(res.err),
	)
	return nil, reason
}

func describeCondition(c NetworkCondition) string {
	from := "reported bandwidth"
	if c.Source == SourceConnectionType {
		from = fmt.Sprintf("inferred from %s connection", c.ConnectionType)
	}
	return fmt.Sprintf("%s network: %.2f Mbps (%s, confidence %.1f)", c.Type, c.BandwidthMbps, from, c.Confidence)
}

func describePattern(p ScrollPattern) string {
	return fmt.Sprintf("%s scrolling: %.2f videos/s, %dms average view time", p.Profile, p.ScrollVelocity, p.AverageViewTimeMs)
}

func describeStrategy(s Strategy) string {
	order := make([]string, len(s.QualityPriority))
	for i, q := range s.QualityPriority {
		order[i] = string(q)
	}
	text := fmt.Sprintf("prefetch %d videos, quality order %s, budget %.0f MB",
		s.BaseCount, strings.Join(order, " > "), s.MaxPrefetchSizeMB)
	switch s.Adjustment {
	case AdjustDeepen:
		text += ", deepened for fast scrolling"
	case AdjustShallow:
		text += ", reduced for slow browsing"
	}
	return text
}
