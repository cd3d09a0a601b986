package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/models"
	"go.uber.org/zap"
)

// Purger deletes analytics rows older than a cutoff
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (outcomes, feedback int64, err error)
}

// PurgeBefore deletes outcomes and feedback created before cutoff. Feedback
// goes first so no report outlives the recommendation it refers to.
func (s *GormStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	db := s.db.WithContext(ctx)

	fb := db.Where("created_at < ?", cutoff).Delete(&models.PrefetchFeedback{})
	if fb.Error != nil {
		return 0, 0, fmt.Errorf("failed to purge prefetch feedback: %w", fb.Error)
	}
	out := db.Where("created_at < ?", cutoff).Delete(&models.PrefetchOutcome{})
	if out.Error != nil {
		return 0, fb.RowsAffected, fmt.Errorf("failed to purge prefetch outcomes: %w", out.Error)
	}
	return out.RowsAffected, fb.RowsAffected, nil
}

// CleanupService periodically removes analytics older than the retention window
type CleanupService struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupService creates a cleanup service. A non-positive retention
// disables purging; Start then does nothing.
func NewCleanupService(purger Purger, retention, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		purger:    purger,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the cleanup loop in the background
func (s *CleanupService) Start() {
	if s.retention <= 0 {
		logger.Log.Info("Outcome retention disabled")
		return
	}
	logger.Log.Info("Starting outcome cleanup service",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval),
	)
	s.wg.Add(1)
	go s.run()
}

// Stop ends the cleanup loop and waits for a running purge to finish
func (s *CleanupService) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *CleanupService) run() {
	defer s.wg.Done()

	// Run immediately on startup
	s.RunOnce(s.ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

// RunOnce purges everything older than the retention window
func (s *CleanupService) RunOnce(ctx context.Context) {
	start := time.Now()
	cutoff := s.now().Add(-s.retention)

	outcomes, feedback, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		logger.ErrorWithFields("Outcome cleanup failed", err)
		return
	}
	if outcomes == 0 && feedback == 0 {
		logger.Log.Debug("No expired prefetch analytics to clean up")
		return
	}
	logger.Log.Info("Outcome cleanup completed",
		zap.Int64("outcomes_deleted", outcomes),
		zap.Int64("feedback_deleted", feedback),
		zap.Time("cutoff", cutoff),
		zap.Duration("took", time.Since(start)),
	)
}
