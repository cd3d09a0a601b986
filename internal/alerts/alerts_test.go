package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nostrvine/backend/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummaries struct {
	summary *analytics.Summary
	err     error
	filters []analytics.Filter
}

func (s *stubSummaries) Summarize(_ context.Context, filter analytics.Filter) (*analytics.Summary, error) {
	s.filters = append(s.filters, filter)
	return s.summary, s.err
}

func healthySummary() *analytics.Summary {
	return &analytics.Summary{
		TotalRecommendations:   200,
		TotalPrefetchedVideos:  1000,
		AverageEstimatedSizeMB: 12,
		ByNetworkType:          map[string]int64{"slow": 20, "medium": 80, "fast": 100},
		EmptyRecommendations:   2,
		FeedbackReports:        40,
		HitRate:                0.7,
	}
}

func newTestEvaluator(summary *analytics.Summary) (*Evaluator, *AlertManager, *stubSummaries) {
	manager := NewAlertManager()
	source := &stubSummaries{summary: summary}
	evaluator := NewEvaluator(manager, source, time.Hour)
	evaluator.InitializeDefaultRules()
	return evaluator, manager, source
}

func TestEvaluateRulesHealthyWindow(t *testing.T) {
	evaluator, manager, source := newTestEvaluator(healthySummary())
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	evaluator.now = func() time.Time { return fixed }

	triggered, err := evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)

	assert.Empty(t, triggered)
	assert.Empty(t, manager.GetActiveAlerts())
	require.Len(t, source.filters, 1)
	assert.Equal(t, fixed.Add(-time.Hour), source.filters[0].Since)
	assert.Empty(t, source.filters[0].SessionID)
}

func TestEvaluateRulesTriggersDegradedMetrics(t *testing.T) {
	summary := healthySummary()
	summary.EmptyRecommendations = 60
	summary.HitRate = 0.1
	summary.ByNetworkType["slow"] = 150
	summary.AverageEstimatedSizeMB = 25
	evaluator, manager, _ := newTestEvaluator(summary)

	triggered, err := evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	require.Len(t, triggered, 4)

	byType := map[AlertType]*Alert{}
	for _, alert := range triggered {
		byType[alert.Type] = alert
	}
	require.Contains(t, byType, AlertTypeHighEmptyRate)
	assert.Equal(t, AlertLevelCritical, byType[AlertTypeHighEmptyRate].Level)
	assert.InDelta(t, 0.3, byType[AlertTypeHighEmptyRate].Details["empty_rate"], 1e-9)
	assert.Contains(t, byType, AlertTypeLowHitRate)
	assert.Contains(t, byType, AlertTypeSlowNetworkShare)
	assert.Contains(t, byType, AlertTypeOversizedPrefetch)

	stats := manager.GetStats()
	assert.Equal(t, 4, stats.ActiveAlerts)
	assert.Equal(t, 1, stats.CriticalCount)
	assert.Equal(t, 2, stats.WarningCount)
	assert.Equal(t, 1, stats.InfoCount)
}

func TestEvaluateRulesNeedsMinimumSamples(t *testing.T) {
	summary := &analytics.Summary{
		TotalRecommendations: 3,
		EmptyRecommendations: 3,
		ByNetworkType:        map[string]int64{"slow": 3},
		FeedbackReports:      1,
		HitRate:              0,
	}
	evaluator, _, _ := newTestEvaluator(summary)

	triggered, err := evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestEvaluateRulesCooldownAndResolve(t *testing.T) {
	summary := healthySummary()
	summary.HitRate = 0.05
	evaluator, manager, source := newTestEvaluator(summary)

	triggered, err := evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	require.Len(t, triggered, 1)

	// Still failing, but inside the cooldown
	triggered, err = evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, triggered)
	assert.Len(t, manager.GetActiveAlerts(), 1)

	// Recovery resolves the open alert
	source.summary = healthySummary()
	_, err = evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, manager.GetActiveAlerts())
	assert.Equal(t, 1, manager.GetStats().TotalAlerts)
}

func TestEvaluateRulesSkipsDisabledRules(t *testing.T) {
	summary := healthySummary()
	summary.HitRate = 0.05
	evaluator, manager, _ := newTestEvaluator(summary)
	for _, rule := range manager.GetAllRules() {
		require.NoError(t, manager.SetRuleEnabled(rule.ID, false))
	}

	triggered, err := evaluator.EvaluateRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestEvaluateRulesSummaryError(t *testing.T) {
	evaluator, _, source := newTestEvaluator(nil)
	source.err = errors.New("db down")

	_, err := evaluator.EvaluateRules(context.Background())
	assert.Error(t, err)
}

func TestAlertManagerResolveAndPrune(t *testing.T) {
	manager := NewAlertManager()
	manager.maxAlerts = 2
	rule := &AlertRule{Name: "r", Type: AlertTypeLowHitRate, Level: AlertLevelWarning}
	manager.AddRule(rule)

	first := manager.TriggerAlert(rule, "first", nil)
	require.NoError(t, manager.ResolveAlert(first.ID))
	assert.Error(t, manager.ResolveAlert("missing"))

	second := manager.TriggerAlert(rule, "second", nil)
	third := manager.TriggerAlert(rule, "third", nil)

	// The resolved alert is pruned before any active one
	assert.Equal(t, 2, manager.GetStats().TotalAlerts)
	active := manager.GetActiveAlerts()
	require.Len(t, active, 2)
	ids := []string{active[0].ID, active[1].ID}
	assert.ElementsMatch(t, []string{second.ID, third.ID}, ids)

	assert.Error(t, manager.SetRuleEnabled("missing", true))
	require.NotNil(t, manager.GetAllRules()[0].LastTriggered)
}
