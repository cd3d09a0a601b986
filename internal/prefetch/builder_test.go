package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource returns a fixed page and remembers the last query.
type staticSource struct {
	mu    sync.Mutex
	ids   []string
	err   error
	last  CandidateQuery
	calls int
}

func (s *staticSource) NextVideoIDs(_ context.Context, q CandidateQuery) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = q
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit < len(s.ids) {
		return s.ids[:q.Limit], nil
	}
	return s.ids, nil
}

func videoIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("video-%02d", i)
	}
	return ids
}

func buildWith(t *testing.T, source CandidateSource, network NetworkType, count int) Recommendation {
	t.Helper()
	cfg := DefaultConfig()
	b := NewBuilder(cfg, source)
	strategy := Strategy{NetworkType: network, BaseCount: count, QualityPriority: cfg.Policy(network).QualityPriority}
	return b.Build(context.Background(), Request{SessionID: "s1", Cursor: "c1"}, strategy,
		NetworkCondition{Type: network}, ScrollPattern{Profile: ScrollSteady})
}

func TestBuildTruncatesAndKeepsOrder(t *testing.T) {
	source := &staticSource{ids: videoIDs(10)}
	rec := buildWith(t, source, NetworkMedium, 4)

	assert.Equal(t, []string{"video-00", "video-01", "video-02", "video-03"}, rec.VideoIDs)
	assert.Equal(t, 6, source.last.Limit, "builder asks for two extra candidates")
	assert.Equal(t, "c1", source.last.Cursor, "cursor passes through untouched")
	assert.Equal(t, "s1", source.last.SessionID)

	assert.Equal(t, QualityBoth, rec.QualityMap["video-00"])
	assert.Equal(t, QualityBoth, rec.QualityMap["video-01"])
	assert.Equal(t, Quality480p, rec.QualityMap["video-02"])
	assert.Equal(t, Quality480p, rec.QualityMap["video-03"])
	assert.InDelta(t, 4.0+4.0+1.5+1.5, rec.EstimatedSizeMB, 1e-9)
	assert.Equal(t, FallbackNone, rec.Fallback)
}

func TestBuildQualityByNetwork(t *testing.T) {
	testCases := []struct {
		network  NetworkType
		count    int
		expected []Quality
		size     float64
	}{
		{NetworkSlow, 3, []Quality{Quality480p, Quality480p, Quality480p}, 4.5},
		{NetworkMedium, 3, []Quality{QualityBoth, QualityBoth, Quality480p}, 9.5},
		{NetworkFast, 4, []Quality{QualityBoth, QualityBoth, QualityBoth, QualityBoth}, 16},
	}

	for _, tc := range testCases {
		t.Run(tc.network.String(), func(t *testing.T) {
			rec := buildWith(t, &staticSource{ids: videoIDs(10)}, tc.network, tc.count)
			require.Len(t, rec.VideoIDs, tc.count)
			for i, id := range rec.VideoIDs {
				assert.Equal(t, tc.expected[i], rec.QualityMap[id], "position %d", i)
			}
			assert.InDelta(t, tc.size, rec.EstimatedSizeMB, 1e-9)
		})
	}
}

func TestBuildQualityMapMatchesVideoIDs(t *testing.T) {
	source := &staticSource{ids: []string{"a", "b", "a", "", "c", "b", "d"}}
	rec := buildWith(t, source, NetworkFast, 6)

	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.VideoIDs)
	assert.Len(t, rec.QualityMap, len(rec.VideoIDs))
	for _, id := range rec.VideoIDs {
		assert.Contains(t, rec.QualityMap, id)
	}
}

func TestBuildShortFeedIsNotAnError(t *testing.T) {
	rec := buildWith(t, &staticSource{ids: videoIDs(2)}, NetworkFast, 6)
	assert.Len(t, rec.VideoIDs, 2)
	assert.Equal(t, FallbackNone, rec.Fallback)
}

func TestBuildEmptyFeed(t *testing.T) {
	rec := buildWith(t, &staticSource{}, NetworkMedium, 4)
	assert.NotNil(t, rec.VideoIDs)
	assert.Empty(t, rec.VideoIDs)
	assert.Empty(t, rec.QualityMap)
	assert.Zero(t, rec.EstimatedSizeMB)
	assert.Equal(t, FallbackNoCandidates, rec.Fallback)
}

func TestBuildSourceErrorDegradesToEmpty(t *testing.T) {
	rec := buildWith(t, &staticSource{err: errors.New("kv unavailable")}, NetworkFast, 6)
	assert.Empty(t, rec.VideoIDs)
	assert.Empty(t, rec.QualityMap)
	assert.Zero(t, rec.EstimatedSizeMB)
	assert.Equal(t, FallbackCandidateError, rec.Fallback)
	assert.NotEmpty(t, rec.Reasoning.Strategy)
}

func TestBuildSourcePanicDegradesToEmpty(t *testing.T) {
	source := CandidateSourceFunc(func(context.Context, CandidateQuery) ([]string, error) {
		panic("boom")
	})
	rec := buildWith(t, source, NetworkFast, 6)
	assert.Empty(t, rec.VideoIDs)
	assert.Equal(t, FallbackCandidateError, rec.Fallback)
}

func TestBuildSourceTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateTimeout = 20 * time.Millisecond

	cancelled := make(chan struct{})
	source := CandidateSourceFunc(func(ctx context.Context, _ CandidateQuery) ([]string, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})

	start := time.Now()
	rec := NewBuilder(cfg, source).Build(context.Background(), Request{}, Strategy{BaseCount: 4, QualityPriority: []Quality{Quality480p}},
		NetworkCondition{Type: NetworkMedium}, ScrollPattern{})

	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, rec.VideoIDs)
	assert.Zero(t, rec.EstimatedSizeMB)
	assert.Equal(t, FallbackCandidateTimeout, rec.Fallback)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("candidate fetch was not cancelled")
	}
}

func TestBuildSourceIgnoringContextStillTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateTimeout = 20 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	source := CandidateSourceFunc(func(context.Context, CandidateQuery) ([]string, error) {
		<-release
		return videoIDs(5), nil
	})

	rec := NewBuilder(cfg, source).Build(context.Background(), Request{}, Strategy{BaseCount: 4, QualityPriority: []Quality{Quality480p}},
		NetworkCondition{Type: NetworkMedium}, ScrollPattern{})
	assert.Empty(t, rec.VideoIDs)
	assert.Equal(t, FallbackCandidateTimeout, rec.Fallback)
}

func TestBuildNilSource(t *testing.T) {
	rec := buildWith(t, nil, NetworkFast, 6)
	assert.Empty(t, rec.VideoIDs)
	assert.Equal(t, FallbackNoCandidates, rec.Fallback)
}

func TestBuildEstimateIsMonotonic(t *testing.T) {
	for _, network := range []NetworkType{NetworkSlow, NetworkMedium, NetworkFast} {
		previous := 0.0
		for count := 2; count <= 8; count++ {
			rec := buildWith(t, &staticSource{ids: videoIDs(20)}, network, count)
			assert.GreaterOrEqual(t, rec.EstimatedSizeMB, previous)
			previous = rec.EstimatedSizeMB
		}
	}
}

func TestBuildReasoningMentionsClassification(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBuilder(cfg, &staticSource{ids: videoIDs(3)})
	rec := b.Build(context.Background(), Request{},
		Strategy{BaseCount: 8, QualityPriority: []Quality{Quality720p, Quality480p}, Adjustment: AdjustDeepen},
		NetworkCondition{Type: NetworkFast, BandwidthMbps: 25, Source: SourceConnectionType, ConnectionType: ConnectionWiFi},
		ScrollPattern{Profile: ScrollRapid, ScrollVelocity: 3, AverageViewTimeMs: 6000},
	)

	assert.Contains(t, rec.Reasoning.NetworkCondition, "fast")
	assert.Contains(t, rec.Reasoning.ScrollPattern, "rapid")
	assert.Contains(t, rec.Reasoning.Strategy, "8")
}
