package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nostrvine/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGorseSyncVideosBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]gorseItem
	source := newGorseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var items []gorseItem
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&items))
		mu.Lock()
		batches = append(batches, items)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"RowAffected":1}`))
	})

	videos := make([]models.Video, 0, 150)
	for i := 0; i < 150; i++ {
		videos = append(videos, models.Video{
			ID:        fmt.Sprintf("v%03d", i),
			Title:     "clip",
			Published: i != 0,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}

	require.NoError(t, source.SyncVideos(context.Background(), videos))
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
	assert.True(t, batches[0][0].IsHidden)
	assert.False(t, batches[0][1].IsHidden)
	assert.Equal(t, "2026-01-02T03:04:05Z", batches[0][0].Timestamp)
}

func TestGorseSyncViews(t *testing.T) {
	var got []gorseFeedback
	source := newGorseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feedback", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, source.SyncViews(context.Background(), "s1", []string{"a", "b"}, time.Now()))
	require.Len(t, got, 2)
	assert.Equal(t, "view", got[0].FeedbackType)
	assert.Equal(t, "s1", got[0].UserId)
	assert.Equal(t, "b", got[1].ItemId)

	// Nothing viewed means no request
	require.NoError(t, source.SyncViews(context.Background(), "s1", nil, time.Now()))
}

func TestGorseSyncFailure(t *testing.T) {
	source := newGorseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := source.SyncVideos(context.Background(), []models.Video{{ID: "v1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
