// Package analytics persists prefetch outcomes and viewer feedback and
// aggregates them for strategy tuning.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows an aggregation to one session and a time window
type Filter struct {
	SessionID string
	Since     time.Time
}

// Store persists outcome and feedback rows
type Store interface {
	SaveOutcomes(ctx context.Context, outcomes []models.PrefetchOutcome) error
	SaveFeedback(ctx context.Context, feedback *models.PrefetchFeedback) error
	Summarize(ctx context.Context, filter Filter) (*Summary, error)
}

// GormStore is the database-backed Store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveOutcomes inserts a batch of outcomes. Duplicate ids are ignored so a
// retried batch cannot fail on rows that already landed.
func (s *GormStore) SaveOutcomes(ctx context.Context, outcomes []models.PrefetchOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&outcomes, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save prefetch outcomes: %w", err)
	}
	return nil
}

// SaveFeedback inserts one feedback report
func (s *GormStore) SaveFeedback(ctx context.Context, feedback *models.PrefetchFeedback) error {
	if err := s.db.WithContext(ctx).Create(feedback).Error; err != nil {
		return fmt.Errorf("failed to save prefetch feedback: %w", err)
	}
	return nil
}

// ToModel flattens an outcome record into its database row
func ToModel(record prefetch.OutcomeRecord) models.PrefetchOutcome {
	quality := make(models.StringArray, 0, len(record.Strategy.QualityPriority))
	for _, q := range record.Strategy.QualityPriority {
		quality = append(quality, string(q))
	}
	ids := make(models.StringArray, len(record.VideoIDs))
	copy(ids, record.VideoIDs)

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return models.PrefetchOutcome{
		ID:             record.RecommendationID,
		SessionID:      record.SessionID,
		CurrentVideoID: record.CurrentVideoID,

		NetworkType:        record.Condition.Type.String(),
		ConnectionType:     string(record.Condition.ConnectionType),
		BandwidthMbps:      record.Condition.BandwidthMbps,
		LatencyMs:          record.Condition.LatencyMs,
		EstimatedLatencyMs: record.Condition.EstimatedLatencyMs,
		Confidence:         record.Condition.Confidence,
		ConditionSource:    string(record.Condition.Source),

		ScrollProfile:     string(record.Pattern.Profile),
		AverageViewTimeMs: record.Pattern.AverageViewTimeMs,
		ScrollVelocity:    record.Pattern.ScrollVelocity,
		QualityPreference: string(record.Pattern.QualityPreference),

		BaseCount:         record.Strategy.BaseCount,
		QualityPriority:   quality,
		MaxPrefetchSizeMB: record.Strategy.MaxPrefetchSizeMB,
		Adjustment:        string(record.Strategy.Adjustment),

		VideoIDs:        ids,
		VideoCount:      len(ids),
		EstimatedSizeMB: record.EstimatedSizeMB,
		Fallback:        string(record.Fallback),
		ResponseTimeMs:  float64(record.ResponseTime.Microseconds()) / 1000,

		CreatedAt: createdAt.UTC(),
	}
}
