package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/nostrvine/backend/internal/analytics"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/prefetch"
	"go.uber.org/zap"
)

// SummaryProvider aggregates prefetch analytics
type SummaryProvider interface {
	Summarize(ctx context.Context, filter analytics.Filter) (*analytics.Summary, error)
}

// Evaluator evaluates alert rules against a rolling analytics window
type Evaluator struct {
	manager *AlertManager
	source  SummaryProvider
	window  time.Duration
	now     func() time.Time
}

// NewEvaluator creates an evaluator over the last window of outcomes
func NewEvaluator(manager *AlertManager, source SummaryProvider, window time.Duration) *Evaluator {
	if window <= 0 {
		window = time.Hour
	}
	return &Evaluator{
		manager: manager,
		source:  source,
		window:  window,
		now:     time.Now,
	}
}

// EvaluateRules checks all enabled rules against the current window. Rules
// whose condition no longer holds have their active alerts resolved.
func (e *Evaluator) EvaluateRules(ctx context.Context) ([]*Alert, error) {
	now := e.now()
	summary, err := e.source.Summarize(ctx, analytics.Filter{Since: now.Add(-e.window)})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize prefetch outcomes: %w", err)
	}

	var triggered []*Alert
	for _, rule := range e.manager.GetAllRules() {
		if !rule.Enabled {
			continue
		}

		fired, details := evaluateRule(rule, summary)
		if !fired {
			if n := e.manager.ResolveRule(rule.ID); n > 0 {
				logger.Log.Info("Alert resolved", zap.String("rule", rule.Name), zap.Int("alerts", n))
			}
			continue
		}

		// Check if rule is in cooldown period
		if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < time.Duration(rule.CooldownSec)*time.Second {
			continue
		}

		rule := rule
		alert := e.manager.TriggerAlert(&rule, fmt.Sprintf("[%s] %s", rule.Name, rule.Condition), details)
		metrics.RecordAlert(string(rule.Type), string(rule.Level))
		logger.Log.Warn("Prefetch alert triggered",
			zap.String("rule", rule.Name),
			zap.String("type", string(rule.Type)),
			zap.String("level", string(rule.Level)),
			zap.Any("details", details),
		)
		triggered = append(triggered, alert)
	}
	return triggered, nil
}

// evaluateRule checks a specific rule against the summary
func evaluateRule(rule AlertRule, s *analytics.Summary) (bool, map[string]interface{}) {
	details := map[string]interface{}{
		"threshold":             rule.Threshold,
		"total_recommendations": s.TotalRecommendations,
	}

	switch rule.Type {
	case AlertTypeHighEmptyRate:
		if s.TotalRecommendations < max(rule.MinSamples, 1) {
			return false, details
		}
		rate := float64(s.EmptyRecommendations) / float64(s.TotalRecommendations)
		details["empty_rate"] = rate
		details["empty_recommendations"] = s.EmptyRecommendations
		return rate >= rule.Threshold, details

	case AlertTypeLowHitRate:
		if s.FeedbackReports < max(rule.MinSamples, 1) {
			return false, details
		}
		details["hit_rate"] = s.HitRate
		details["feedback_reports"] = s.FeedbackReports
		return s.HitRate <= rule.Threshold, details

	case AlertTypeSlowNetworkShare:
		if s.TotalRecommendations < max(rule.MinSamples, 1) {
			return false, details
		}
		share := float64(s.ByNetworkType[prefetch.NetworkSlow.String()]) / float64(s.TotalRecommendations)
		details["slow_share"] = share
		return share >= rule.Threshold, details

	case AlertTypeOversizedPrefetch:
		if s.TotalRecommendations < max(rule.MinSamples, 1) {
			return false, details
		}
		details["average_estimated_size_mb"] = s.AverageEstimatedSizeMB
		return s.AverageEstimatedSizeMB >= rule.Threshold, details
	}

	return false, details
}

// InitializeDefaultRules sets up default alert rules
func (e *Evaluator) InitializeDefaultRules() {
	rules := []*AlertRule{
		{
			Name:        "High Empty Recommendation Rate",
			Type:        AlertTypeHighEmptyRate,
			Enabled:     true,
			Level:       AlertLevelCritical,
			Condition:   "Empty recommendations >= 20%",
			Threshold:   0.2,
			MinSamples:  50,
			CooldownSec: 300,
		},
		{
			Name:        "Low Prefetch Hit Rate",
			Type:        AlertTypeLowHitRate,
			Enabled:     true,
			Level:       AlertLevelWarning,
			Condition:   "Hit rate <= 30%",
			Threshold:   0.3,
			MinSamples:  20,
			CooldownSec: 900,
		},
		{
			Name:        "Slow Network Share",
			Type:        AlertTypeSlowNetworkShare,
			Enabled:     true,
			Level:       AlertLevelInfo,
			Condition:   "Slow network requests >= 50%",
			Threshold:   0.5,
			MinSamples:  100,
			CooldownSec: 1800,
		},
		{
			Name:        "Oversized Prefetch",
			Type:        AlertTypeOversizedPrefetch,
			Enabled:     true,
			Level:       AlertLevelWarning,
			Condition:   "Average estimated size >= 20 MB",
			Threshold:   20,
			MinSamples:  50,
			CooldownSec: 900,
		},
	}

	for _, rule := range rules {
		e.manager.AddRule(rule)
	}
}

// StartEvaluationLoop evaluates rules every interval until the returned
// channel is closed
func (e *Evaluator) StartEvaluationLoop(interval time.Duration) chan struct{} {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := e.EvaluateRules(ctx); err != nil {
					logger.WarnWithFields("Alert evaluation failed", err)
				}
				cancel()
			case <-stop:
				return
			}
		}
	}()

	return stop
}
