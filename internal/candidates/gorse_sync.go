package candidates

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nostrvine/backend/internal/models"
)

// gorseItem is a catalogue entry in Gorse
type gorseItem struct {
	ItemId     string                 `json:"ItemId"`
	IsHidden   bool                   `json:"IsHidden,omitempty"`
	Categories []string               `json:"Categories,omitempty"`
	Timestamp  string                 `json:"Timestamp,omitempty"`
	Labels     map[string]interface{} `json:"Labels,omitempty"`
	Comment    string                 `json:"Comment,omitempty"`
}

// gorseFeedback is one user-item interaction in Gorse
type gorseFeedback struct {
	FeedbackType string `json:"FeedbackType"`
	UserId       string `json:"UserId"`
	ItemId       string `json:"ItemId"`
	Timestamp    string `json:"Timestamp,omitempty"`
}

const gorseSyncBatch = 100

// SyncVideos upserts videos as Gorse items in batches. Unpublished videos
// are synced hidden so Gorse stops recommending them.
func (s *GorseSource) SyncVideos(ctx context.Context, videos []models.Video) error {
	for start := 0; start < len(videos); start += gorseSyncBatch {
		end := min(start+gorseSyncBatch, len(videos))

		items := make([]gorseItem, 0, end-start)
		for _, v := range videos[start:end] {
			labels := map[string]interface{}{
				"duration_ms": v.DurationMs,
			}
			if v.AuthorPubkey != "" {
				labels["author"] = v.AuthorPubkey
			}
			items = append(items, gorseItem{
				ItemId:    v.ID,
				IsHidden:  !v.Published,
				Timestamp: v.CreatedAt.UTC().Format(time.RFC3339),
				Labels:    labels,
				Comment:   v.Title,
			})
		}

		if err := s.do(ctx, http.MethodPost, "/api/items", items, nil); err != nil {
			return fmt.Errorf("failed to sync videos %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// SyncViews reports videos a session watched as "view" feedback, so that
// personalised recommendations for the session improve
func (s *GorseSource) SyncViews(ctx context.Context, sessionID string, videoIDs []string, at time.Time) error {
	if len(videoIDs) == 0 {
		return nil
	}
	feedback := make([]gorseFeedback, 0, len(videoIDs))
	for _, id := range videoIDs {
		feedback = append(feedback, gorseFeedback{
			FeedbackType: "view",
			UserId:       sessionID,
			ItemId:       id,
			Timestamp:    at.UTC().Format(time.RFC3339),
		})
	}
	if err := s.do(ctx, http.MethodPost, "/api/feedback", feedback, nil); err != nil {
		return fmt.Errorf("failed to sync views: %w", err)
	}
	return nil
}
