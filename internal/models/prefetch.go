package models

import (
	"time"
)

// PrefetchOutcome is one persisted prefetch recommendation together with the
// inputs and strategy that produced it. Used for strategy tuning analytics.
type PrefetchOutcome struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"` // recommendation id
	SessionID      string `gorm:"size:128;not null;index:idx_outcomes_session_created,priority:1" json:"session_id"`
	CurrentVideoID string `gorm:"size:64" json:"current_video_id,omitempty"`

	// Network condition
	NetworkType        string  `gorm:"size:16;not null;index" json:"network_type"` // "slow", "medium", "fast"
	ConnectionType     string  `gorm:"size:16" json:"connection_type"`
	BandwidthMbps      float64 `json:"bandwidth_mbps"`
	LatencyMs          int     `json:"latency_ms"`
	EstimatedLatencyMs int     `json:"estimated_latency_ms,omitempty"`
	Confidence         float64 `json:"confidence"`
	ConditionSource    string  `gorm:"size:16" json:"condition_source"`

	// Scroll pattern
	ScrollProfile     string  `gorm:"size:16" json:"scroll_profile"`
	AverageViewTimeMs int     `json:"average_view_time_ms"`
	ScrollVelocity    float64 `json:"scroll_velocity"`
	QualityPreference string  `gorm:"size:8" json:"quality_preference"`

	// Strategy
	BaseCount         int         `gorm:"not null" json:"base_count"`
	QualityPriority   StringArray `json:"quality_priority"`
	MaxPrefetchSizeMB float64     `json:"max_prefetch_size_mb"`
	Adjustment        string      `gorm:"size:16" json:"adjustment"`

	// Recommendation
	VideoIDs        StringArray `json:"video_ids"`
	VideoCount      int         `gorm:"not null;default:0" json:"video_count"`
	EstimatedSizeMB float64     `json:"estimated_size_mb"`
	Fallback        string      `gorm:"size:32;index" json:"fallback,omitempty"`
	ResponseTimeMs  float64     `json:"response_time_ms"`

	CreatedAt time.Time `gorm:"index:idx_outcomes_session_created,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (PrefetchOutcome) TableName() string {
	return "prefetch_outcomes"
}

// PrefetchFeedback records which prefetched videos a client actually watched
type PrefetchFeedback struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`
	RecommendationID string      `gorm:"size:36;not null;index" json:"recommendation_id"`
	SessionID        string      `gorm:"size:128;not null;index" json:"session_id"`
	ViewedVideoIDs   StringArray `json:"viewed_video_ids"`
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`
}

// TableName specifies the table name
func (PrefetchFeedback) TableName() string {
	return "prefetch_feedback"
}
