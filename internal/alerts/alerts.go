// Package alerts raises alerts when prefetch analytics drift outside healthy
// bounds, such as many empty recommendations or a collapsing hit rate.
package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertLevel represents the severity of an alert
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	// Recommendations that fell back to empty
	AlertTypeHighEmptyRate AlertType = "high_empty_rate"
	// Prefetched videos that were never watched
	AlertTypeLowHitRate AlertType = "low_hit_rate"
	// Share of requests classified as slow
	AlertTypeSlowNetworkShare AlertType = "slow_network_share"
	// Average estimated download size per recommendation
	AlertTypeOversizedPrefetch AlertType = "oversized_prefetch"
)

// Alert represents a triggered alert
type Alert struct {
	ID         string                 `json:"id"`
	Type       AlertType              `json:"type"`
	Level      AlertLevel             `json:"level"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Timestamp  time.Time              `json:"timestamp"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	IsResolved bool                   `json:"is_resolved"`
	RuleID     string                 `json:"rule_id"`
}

// AlertRule defines conditions that trigger an alert
type AlertRule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      AlertType  `json:"type"`
	Enabled   bool       `json:"enabled"`
	Level     AlertLevel `json:"level"`
	Condition string     `json:"condition"` // Human-readable condition
	Threshold float64    `json:"threshold"`
	// MinSamples is the number of recommendations (or feedback reports for
	// hit rate) needed before the rule is evaluated
	MinSamples    int64      `json:"min_samples"`
	CooldownSec   int        `json:"cooldown_sec"` // Prevent alert spamming
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AlertManager manages alerts and rules
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert
	rules     map[string]*AlertRule
	maxAlerts int
}

// NewAlertManager creates a new alert manager
func NewAlertManager() *AlertManager {
	return &AlertManager{
		alerts:    make(map[string]*Alert),
		rules:     make(map[string]*AlertRule),
		maxAlerts: 1000,
	}
}

// TriggerAlert creates and stores a new alert
func (am *AlertManager) TriggerAlert(rule *AlertRule, message string, details map[string]interface{}) *Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	alert := &Alert{
		ID:        uuid.New().String(),
		Type:      rule.Type,
		Level:     rule.Level,
		Message:   message,
		Details:   details,
		Timestamp: now,
		RuleID:    rule.ID,
	}
	am.alerts[alert.ID] = alert

	if stored, ok := am.rules[rule.ID]; ok {
		stored.LastTriggered = &now
	}

	// Keep only recent alerts to avoid unbounded memory growth
	if len(am.alerts) > am.maxAlerts {
		am.pruneOldAlerts()
	}

	return alert
}

// ResolveAlert marks an alert as resolved
func (am *AlertManager) ResolveAlert(alertID string) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, exists := am.alerts[alertID]
	if !exists {
		return fmt.Errorf("alert not found: %s", alertID)
	}
	if !alert.IsResolved {
		now := time.Now()
		alert.ResolvedAt = &now
		alert.IsResolved = true
	}
	return nil
}

// ResolveRule resolves every active alert raised by ruleID and returns how many
func (am *AlertManager) ResolveRule(ruleID string) int {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	resolved := 0
	for _, alert := range am.alerts {
		if alert.RuleID == ruleID && !alert.IsResolved {
			alert.ResolvedAt = &now
			alert.IsResolved = true
			resolved++
		}
	}
	return resolved
}

// GetActiveAlerts returns unresolved alerts, newest first
func (am *AlertManager) GetActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	active := make([]Alert, 0)
	for _, alert := range am.alerts {
		if !alert.IsResolved {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.After(active[j].Timestamp)
	})
	return active
}

// AddRule registers a rule and returns its id
func (am *AlertManager) AddRule(rule *AlertRule) string {
	am.mu.Lock()
	defer am.mu.Unlock()

	rule.ID = uuid.New().String()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	am.rules[rule.ID] = rule
	return rule.ID
}

// GetAllRules returns copies of all alert rules ordered by name
func (am *AlertManager) GetAllRules() []AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	rules := make([]AlertRule, 0, len(am.rules))
	for _, rule := range am.rules {
		rules = append(rules, *rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// SetRuleEnabled turns a rule on or off
func (am *AlertManager) SetRuleEnabled(ruleID string, enabled bool) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	rule, exists := am.rules[ruleID]
	if !exists {
		return fmt.Errorf("rule not found: %s", ruleID)
	}
	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	return nil
}

// pruneOldAlerts drops the oldest resolved alerts first, then the oldest
// active ones, until the map is back under maxAlerts
func (am *AlertManager) pruneOldAlerts() {
	alerts := make([]*Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].IsResolved != alerts[j].IsResolved {
			return alerts[i].IsResolved
		}
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})

	toRemove := len(am.alerts) - am.maxAlerts
	for _, alert := range alerts[:toRemove] {
		delete(am.alerts, alert.ID)
	}
}

// Stats summarizes the alert state
type Stats struct {
	TotalAlerts   int   `json:"total_alerts"`
	ActiveAlerts  int   `json:"active_alerts"`
	CriticalCount int   `json:"critical_count"`
	WarningCount  int   `json:"warning_count"`
	InfoCount     int   `json:"info_count"`
	TotalRules    int   `json:"total_rules"`
	Timestamp     int64 `json:"timestamp"`
}

// GetStats returns alert statistics
func (am *AlertManager) GetStats() Stats {
	am.mu.RLock()
	defer am.mu.RUnlock()

	stats := Stats{
		TotalAlerts: len(am.alerts),
		TotalRules:  len(am.rules),
		Timestamp:   time.Now().Unix(),
	}
	for _, alert := range am.alerts {
		if alert.IsResolved {
			continue
		}
		stats.ActiveAlerts++
		switch alert.Level {
		case AlertLevelCritical:
			stats.CriticalCount++
		case AlertLevelWarning:
			stats.WarningCount++
		case AlertLevelInfo:
			stats.InfoCount++
		}
	}
	return stats
}
