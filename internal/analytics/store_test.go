package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/nostrvine/backend/internal/database"
	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return NewGormStore(db)
}

func outcomeRecord(id, session string, network prefetch.NetworkType, ids []string, at time.Time) prefetch.OutcomeRecord {
	return prefetch.OutcomeRecord{
		RecommendationID: id,
		SessionID:        session,
		Condition:        prefetch.NetworkCondition{Type: network, BandwidthMbps: 12, LatencyMs: 40, Confidence: 0.9},
		Pattern:          prefetch.ScrollPattern{AverageViewTimeMs: 6000, ScrollVelocity: 1, Profile: prefetch.ScrollSteady},
		Strategy: prefetch.Strategy{
			NetworkType:       network,
			BaseCount:         len(ids),
			QualityPriority:   []prefetch.Quality{prefetch.Quality720p, prefetch.Quality480p},
			MaxPrefetchSizeMB: 100,
		},
		VideoIDs:        ids,
		EstimatedSizeMB: 2.5 * float64(len(ids)),
		ResponseTime:    1500 * time.Microsecond,
		CreatedAt:       at,
	}
}

func TestToModelFlattensRecord(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := outcomeRecord("rec-1", "s1", prefetch.NetworkFast, []string{"v1", "v2"}, at)
	record.Fallback = prefetch.FallbackNone
	record.Condition.EstimatedLatencyMs = 50

	row := ToModel(record)

	assert.Equal(t, "rec-1", row.ID)
	assert.Equal(t, "fast", row.NetworkType)
	assert.Equal(t, 40, row.LatencyMs)
	assert.Equal(t, 50, row.EstimatedLatencyMs)
	assert.Equal(t, models.StringArray{"720p", "480p"}, row.QualityPriority)
	assert.Equal(t, models.StringArray{"v1", "v2"}, row.VideoIDs)
	assert.Equal(t, 2, row.VideoCount)
	assert.Equal(t, 1.5, row.ResponseTimeMs)
	assert.Equal(t, at, row.CreatedAt)
	assert.Empty(t, row.Fallback)

	// The row must not alias the record's slice
	record.VideoIDs[0] = "changed"
	assert.Equal(t, "v1", row.VideoIDs[0])
}

func TestSaveOutcomesIgnoresDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	row := ToModel(outcomeRecord("rec-1", "s1", prefetch.NetworkSlow, []string{"v1"}, time.Now()))

	require.NoError(t, store.SaveOutcomes(ctx, []models.PrefetchOutcome{row}))
	require.NoError(t, store.SaveOutcomes(ctx, []models.PrefetchOutcome{row}))
	require.NoError(t, store.SaveOutcomes(ctx, nil))

	var count int64
	require.NoError(t, store.db.Model(&models.PrefetchOutcome{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSummarizeAggregatesWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []models.PrefetchOutcome{
		ToModel(outcomeRecord("r1", "s1", prefetch.NetworkFast, []string{"a", "b", "c", "d"}, now.Add(-time.Hour))),
		ToModel(outcomeRecord("r2", "s1", prefetch.NetworkSlow, []string{"e", "f"}, now.Add(-2*time.Hour))),
		ToModel(outcomeRecord("r3", "s1", prefetch.NetworkFast, []string{}, now.Add(-3*time.Hour))),
		// outside the window
		ToModel(outcomeRecord("old", "s1", prefetch.NetworkFast, []string{"z"}, now.Add(-48*time.Hour))),
		// other session
		ToModel(outcomeRecord("other", "s2", prefetch.NetworkMedium, []string{"y"}, now)),
	}
	require.NoError(t, store.SaveOutcomes(ctx, rows))

	require.NoError(t, store.SaveFeedback(ctx, &models.PrefetchFeedback{
		ID: "f1", RecommendationID: "r1", SessionID: "s1",
		ViewedVideoIDs: models.StringArray{"a", "b", "not-prefetched"}, CreatedAt: now,
	}))
	require.NoError(t, store.SaveFeedback(ctx, &models.PrefetchFeedback{
		ID: "f2", RecommendationID: "r1", SessionID: "s1",
		ViewedVideoIDs: models.StringArray{"b", "c"}, CreatedAt: now,
	}))
	require.NoError(t, store.SaveFeedback(ctx, &models.PrefetchFeedback{
		ID: "f3", RecommendationID: "other", SessionID: "s2",
		ViewedVideoIDs: models.StringArray{"y"}, CreatedAt: now,
	}))

	summary, err := store.Summarize(ctx, Filter{SessionID: "s1", Since: now.Add(-24 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalRecommendations)
	assert.Equal(t, int64(6), summary.TotalPrefetchedVideos)
	assert.InDelta(t, 2.0, summary.AverageBaseCount, 1e-9)
	assert.InDelta(t, 5.0, summary.AverageEstimatedSizeMB, 1e-9)
	assert.Equal(t, map[string]int64{"slow": 1, "medium": 0, "fast": 2}, summary.ByNetworkType)
	assert.Equal(t, int64(1), summary.EmptyRecommendations)
	assert.Equal(t, int64(2), summary.FeedbackReports)
	assert.Equal(t, int64(3), summary.Hits)
	assert.InDelta(t, 0.75, summary.HitRate, 1e-9)
}

func TestSummarizeEmptyStore(t *testing.T) {
	store := newTestStore(t)

	summary, err := store.Summarize(context.Background(), Filter{SessionID: "nobody"})
	require.NoError(t, err)

	assert.Zero(t, summary.TotalRecommendations)
	assert.Zero(t, summary.HitRate)
	assert.Len(t, summary.ByNetworkType, 3)
}
