package candidates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"gorm.io/gorm"
)

// DatabaseSource pages through published videos newest first.
// The cursor is a decimal offset into that ordering.
type DatabaseSource struct {
	db *gorm.DB
}

// NewDatabaseSource creates a catalogue-backed candidate source
func NewDatabaseSource(db *gorm.DB) *DatabaseSource {
	return &DatabaseSource{db: db}
}

// Name identifies the source in metrics and cache keys
func (s *DatabaseSource) Name() string {
	return "database"
}

// NextVideoIDs returns up to q.Limit video ids after the cursor
func (s *DatabaseSource) NextVideoIDs(ctx context.Context, q prefetch.CandidateQuery) ([]string, error) {
	start := time.Now()
	ids, err := s.nextVideoIDs(ctx, q)
	metrics.RecordCandidateFetch(s.Name(), time.Since(start), err)
	return ids, err
}

func (s *DatabaseSource) nextVideoIDs(ctx context.Context, q prefetch.CandidateQuery) ([]string, error) {
	offset := ParseOffset(q.Cursor)
	if q.Limit <= 0 || offset > MaxFeedOffset {
		return []string{}, nil
	}

	query := s.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("published = ?", true)
	if q.CurrentVideoID != "" {
		query = query.Where("id <> ?", q.CurrentVideoID)
	}

	var ids []string
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(q.Limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load feed page: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// MaxFeedOffset is the deepest cursor either source serves. Cursors past it
// get an empty page so clients cannot make the backends scan without bound.
const MaxFeedOffset = 10000

// ParseOffset reads a decimal feed offset. Anything else, including a
// negative number, is the start of the feed.
func ParseOffset(cursor string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cursor))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
