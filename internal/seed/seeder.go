package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nostrvine/backend/internal/candidates"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestVideoCount is how many fixed videos SeedTest creates
const TestVideoCount = 12

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	gorse *candidates.GorseSource
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	// Note: Seed returns an error only for invalid sources, time.Now().UnixNano() is always valid
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SetGorseClient sets the Gorse source that seeded videos are synced to
func (s *Seeder) SetGorseClient(gorse *candidates.GorseSource) {
	s.gorse = gorse
}

// SeedDev fills the feed with count realistic videos from a pool of authors
func (s *Seeder) SeedDev(ctx context.Context, count int) ([]models.Video, error) {
	logger.Log.Info("Creating videos...", zap.Int("count", count))

	authors := make([]string, 0, 20)
	for i := 0; i < cap(authors); i++ {
		authors = append(authors, fakePubkey())
	}

	videos := make([]models.Video, 0, count)
	for i := 0; i < count; i++ {
		id := fakePubkey()
		createdAt := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		videos = append(videos, models.Video{
			ID:           id,
			AuthorPubkey: authors[gofakeit.Number(0, len(authors)-1)],
			Title:        gofakeit.HipsterSentence(),
			URL480p:      renditionURL(id, "480p"),
			URL720p:      renditionURL(id, "720p"),
			SizeLowMB:    gofakeit.Float64Range(0.8, 2.0),
			SizeHighMB:   gofakeit.Float64Range(2.0, 3.5),
			DurationMs:   gofakeit.Number(5500, 6500),
			// Roughly one in ten videos is unpublished so the feed filter matters
			Published: gofakeit.Number(1, 10) > 1,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}

	if err := s.insert(ctx, videos); err != nil {
		return nil, err
	}

	if s.gorse != nil {
		logger.Log.Info("Syncing videos to Gorse", zap.Int("video_count", len(videos)))
		if err := s.gorse.SyncVideos(ctx, videos); err != nil {
			return nil, fmt.Errorf("failed to sync to Gorse: %w", err)
		}
	} else {
		logger.Log.Info("Gorse client not configured - skipping recommendation sync")
	}

	return videos, nil
}

// SeedTest creates a small deterministic feed. Video test-video-01 is the
// oldest; all are published and a minute apart. Re-running is a no-op.
func (s *Seeder) SeedTest(ctx context.Context) ([]models.Video, error) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	videos := make([]models.Video, 0, TestVideoCount)
	for i := 1; i <= TestVideoCount; i++ {
		id := fmt.Sprintf("test-video-%02d", i)
		createdAt := base.Add(time.Duration(i) * time.Minute)
		videos = append(videos, models.Video{
			ID:           id,
			AuthorPubkey: "test-author",
			Title:        fmt.Sprintf("Test video %d", i),
			URL480p:      renditionURL(id, "480p"),
			URL720p:      renditionURL(id, "720p"),
			SizeLowMB:    1.5,
			SizeHighMB:   2.5,
			DurationMs:   6000,
			Published:    true,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		})
	}

	if err := s.insert(ctx, videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// Clean removes all videos and recorded prefetch analytics
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	// Delete in reverse order of dependencies
	for _, table := range []string{"prefetch_feedback", "prefetch_outcomes", "videos"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) insert(ctx context.Context, videos []models.Video) error {
	if len(videos) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&videos, 100).Error
	if err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}
	return nil
}

// fakePubkey returns 64 hex characters, the shape of a nostr public key
func fakePubkey() string {
	return strings.ReplaceAll(gofakeit.UUID()+gofakeit.UUID(), "-", "")
}

func renditionURL(id, rendition string) string {
	return fmt.Sprintf("https://cdn.nostrvine.com/videos/%s/%s.mp4", id, rendition)
}
