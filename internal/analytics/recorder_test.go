package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []models.PrefetchOutcome
	batches int
	err     error
	block   chan struct{}
	panics  bool
}

func (s *fakeStore) SaveOutcomes(_ context.Context, outcomes []models.PrefetchOutcome) error {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("store exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, outcomes...)
	return nil
}

func (s *fakeStore) SaveFeedback(context.Context, *models.PrefetchFeedback) error { return nil }

func (s *fakeStore) Summarize(context.Context, Filter) (*Summary, error) { return &Summary{}, nil }

func (s *fakeStore) savedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.saved))
	for _, o := range s.saved {
		ids = append(ids, o.ID)
	}
	return ids
}

func record(id string) prefetch.OutcomeRecord {
	return prefetch.OutcomeRecord{RecommendationID: id, SessionID: "s", CreatedAt: time.Now()}
}

func TestRecorderFlushesOnClose(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 100, FlushInterval: time.Hour})
	r.Start()

	r.Emit(record("a"))
	r.Emit(record("b"))

	require.NoError(t, r.Close(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b"}, store.savedIDs())
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	r.Start()
	defer r.Close(context.Background())

	r.Emit(record("a"))

	assert.Eventually(t, func() bool {
		return len(store.savedIDs()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRecorderEmitNeverBlocks(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	r := NewRecorder(store, RecorderConfig{BufferSize: 2, BatchSize: 1, FlushInterval: time.Hour})
	r.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.Emit(record("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a stalled store")
	}

	close(store.block)
	require.NoError(t, r.Close(context.Background()))
	// The worker holds at most one batch and the queue holds two records
	assert.LessOrEqual(t, len(store.savedIDs()), 3)
}

func TestRecorderSurvivesStoreFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 1, FlushInterval: time.Hour})
	r.Start()

	r.Emit(record("a"))
	r.Emit(record("b"))

	require.NoError(t, r.Close(context.Background()))
	assert.Empty(t, store.savedIDs())
	assert.Equal(t, 2, store.batches)
}

func TestRecorderSurvivesStorePanics(t *testing.T) {
	store := &fakeStore{panics: true}
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 1, FlushInterval: time.Hour})
	r.Start()

	r.Emit(record("a"))

	assert.NoError(t, r.Close(context.Background()))
}

func TestRecorderEmitAfterCloseIsDropped(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, RecorderConfig{})
	r.Start()
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	assert.NotPanics(t, func() { r.Emit(record("late")) })
	assert.Empty(t, store.savedIDs())
}

func TestRecorderEveryRecordRacingCloseIsSavedOrDropped(t *testing.T) {
	const total = 400
	store := &fakeStore{}
	r := NewRecorder(store, RecorderConfig{BufferSize: total, BatchSize: 16, FlushInterval: time.Hour})
	r.Start()

	dropped := metrics.Get().OutcomeRecordsTotal.WithLabelValues("dropped")
	before := testutil.ToFloat64(dropped)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < total/8; i++ {
				r.Emit(record(fmt.Sprintf("r-%d-%d", g, i)))
			}
		}(g)
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, r.Close(context.Background()))
	wg.Wait()

	lost := int(testutil.ToFloat64(dropped) - before)
	assert.Equal(t, total, len(store.savedIDs())+lost)
}

func TestRecorderCloseHonoursDeadline(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	defer close(store.block)
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 1, FlushInterval: time.Hour})
	r.Start()
	r.Emit(record("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
}

func TestRecorderWithEngine(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, RecorderConfig{BufferSize: 10, BatchSize: 10, FlushInterval: time.Hour})
	r.Start()

	source := prefetch.CandidateSourceFunc(func(context.Context, prefetch.CandidateQuery) ([]string, error) {
		return []string{"v1", "v2", "v3", "v4", "v5", "v6"}, nil
	})
	engine := prefetch.NewEngine(prefetch.DefaultConfig(), source, r)

	result := engine.Recommend(context.Background(), prefetch.Request{
		SessionID: "s1",
		Network:   prefetch.NetworkHint{BandwidthMbps: 2.5},
	})

	require.NoError(t, r.Close(context.Background()))
	require.Len(t, store.saved, 1)
	assert.Equal(t, result.ID, store.saved[0].ID)
	assert.Equal(t, "medium", store.saved[0].NetworkType)
	assert.Equal(t, 4, store.saved[0].VideoCount)
}
