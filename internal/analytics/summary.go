package analytics

import (
	"context"
	"fmt"

	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"gorm.io/gorm"
)

// Summary aggregates prefetch outcomes over a window
type Summary struct {
	SessionID              string           `json:"sessionId,omitempty"`
	TotalRecommendations   int64            `json:"totalRecommendations"`
	TotalPrefetchedVideos  int64            `json:"totalPrefetchedVideos"`
	AverageBaseCount       float64          `json:"averageBaseCount"`
	AverageEstimatedSizeMB float64          `json:"averageEstimatedSizeMB"`
	ByNetworkType          map[string]int64 `json:"byNetworkType"`
	EmptyRecommendations   int64            `json:"emptyRecommendations"`
	FeedbackReports        int64            `json:"feedbackReports"`
	// Hits counts prefetched videos later reported as viewed. HitRate divides
	// it by the videos prefetched in recommendations that got feedback.
	Hits    int64   `json:"hits"`
	HitRate float64 `json:"hitRate"`
}

type totalsRow struct {
	Total   int64
	Videos  int64
	AvgBase float64
	AvgSize float64
	Empty   int64
}

type networkRow struct {
	NetworkType string
	Count       int64
}

// Summarize aggregates outcomes and feedback matching filter
func (s *GormStore) Summarize(ctx context.Context, filter Filter) (*Summary, error) {
	db := s.db.WithContext(ctx)
	summary := &Summary{
		SessionID:     filter.SessionID,
		ByNetworkType: map[string]int64{},
	}
	for _, t := range prefetch.NetworkTypes() {
		summary.ByNetworkType[t.String()] = 0
	}

	var totals totalsRow
	err := s.outcomes(db, filter).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(video_count), 0) AS videos, " +
			"COALESCE(AVG(base_count), 0) AS avg_base, " +
			"COALESCE(AVG(estimated_size_mb), 0) AS avg_size, " +
			"COALESCE(SUM(CASE WHEN video_count = 0 THEN 1 ELSE 0 END), 0) AS empty").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate prefetch outcomes: %w", err)
	}
	summary.TotalRecommendations = totals.Total
	summary.TotalPrefetchedVideos = totals.Videos
	summary.AverageBaseCount = totals.AvgBase
	summary.AverageEstimatedSizeMB = totals.AvgSize
	summary.EmptyRecommendations = totals.Empty

	var byNetwork []networkRow
	err = s.outcomes(db, filter).
		Select("network_type, COUNT(*) AS count").
		Group("network_type").
		Scan(&byNetwork).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group prefetch outcomes: %w", err)
	}
	for _, row := range byNetwork {
		summary.ByNetworkType[row.NetworkType] = row.Count
	}

	if err := s.summarizeFeedback(db, filter, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *GormStore) summarizeFeedback(db *gorm.DB, filter Filter, summary *Summary) error {
	var feedback []models.PrefetchFeedback
	err := db.
		Where("recommendation_id IN (?)", s.outcomes(db, filter).Select("id")).
		Find(&feedback).Error
	if err != nil {
		return fmt.Errorf("failed to load prefetch feedback: %w", err)
	}
	summary.FeedbackReports = int64(len(feedback))
	if len(feedback) == 0 {
		return nil
	}

	viewed := map[string]map[string]struct{}{}
	for _, fb := range feedback {
		set, ok := viewed[fb.RecommendationID]
		if !ok {
			set = map[string]struct{}{}
			viewed[fb.RecommendationID] = set
		}
		for _, id := range fb.ViewedVideoIDs {
			set[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(viewed))
	for id := range viewed {
		ids = append(ids, id)
	}

	var outcomes []models.PrefetchOutcome
	if err := db.Select("id", "video_ids").Where("id IN ?", ids).Find(&outcomes).Error; err != nil {
		return fmt.Errorf("failed to load prefetched videos: %w", err)
	}

	var prefetched int64
	for _, o := range outcomes {
		set := viewed[o.ID]
		prefetched += int64(len(o.VideoIDs))
		for _, id := range o.VideoIDs {
			if _, ok := set[id]; ok {
				summary.Hits++
			}
		}
	}
	if prefetched > 0 {
		summary.HitRate = float64(summary.Hits) / float64(prefetched)
	}
	return nil
}

// outcomes scopes a query to the outcome rows matching filter
func (s *GormStore) outcomes(db *gorm.DB, filter Filter) *gorm.DB {
	q := db.Model(&models.PrefetchOutcome{})
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since.UTC())
	}
	return q
}
