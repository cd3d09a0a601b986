package candidates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nostrvine/backend/internal/cache"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", errors.New("redis down")
	}
	v, ok := c.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) SetEx(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("redis down")
	}
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	c.ttls[key] = ttl
	return nil
}

type countingSource struct {
	calls int
	ids   []string
	err   error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) NextVideoIDs(_ context.Context, _ prefetch.CandidateQuery) ([]string, error) {
	s.calls++
	return s.ids, s.err
}

func TestCachedSourceServesSecondCallFromCache(t *testing.T) {
	inner := &countingSource{ids: []string{"v1", "v2"}}
	mem := newMemoryCache()
	source := NewCachedSource(inner, mem, 30*time.Second)
	q := prefetch.CandidateQuery{SessionID: "s", Cursor: "0", Limit: 2}

	first, err := source.NextVideoIDs(context.Background(), q)
	require.NoError(t, err)
	second, err := source.NextVideoIDs(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 30*time.Second, mem.ttls["prefetch:candidates:counting:s::0:2"])
}

func TestCachedSourceKeysByQuery(t *testing.T) {
	inner := &countingSource{ids: []string{"v1"}}
	source := NewCachedSource(inner, newMemoryCache(), time.Minute)

	_, _ = source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{SessionID: "s", Limit: 2})
	_, _ = source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{SessionID: "s", Limit: 3})
	_, _ = source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{SessionID: "t", Limit: 2})

	assert.Equal(t, 3, inner.calls)
}

func TestCachedSourceKeysDoNotCollide(t *testing.T) {
	inner := &countingSource{ids: []string{"v1"}}
	source := NewCachedSource(inner, newMemoryCache(), time.Minute)

	a := prefetch.CandidateQuery{SessionID: "a:b", CurrentVideoID: "", Limit: 2}
	b := prefetch.CandidateQuery{SessionID: "a", CurrentVideoID: "b:", Limit: 2}
	assert.NotEqual(t, source.key(a), source.key(b))

	_, _ = source.NextVideoIDs(context.Background(), a)
	_, _ = source.NextVideoIDs(context.Background(), b)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSourceBypassesBrokenCache(t *testing.T) {
	inner := &countingSource{ids: []string{"v1"}}
	mem := newMemoryCache()
	mem.failGet = true
	mem.failSet = true
	source := NewCachedSource(inner, mem, time.Minute)

	ids, err := source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids)
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	inner := &countingSource{err: errors.New("db down")}
	mem := newMemoryCache()
	source := NewCachedSource(inner, mem, time.Minute)

	_, err := source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{Limit: 1})
	assert.Error(t, err)
	assert.Empty(t, mem.data)
}

func TestCachedSourceDiscardsCorruptEntries(t *testing.T) {
	inner := &countingSource{ids: []string{"fresh"}}
	mem := newMemoryCache()
	mem.data["prefetch:candidates:counting:::0:1"] = "not-json"
	source := NewCachedSource(inner, mem, time.Minute)

	ids, err := source.NextVideoIDs(context.Background(), prefetch.CandidateQuery{Cursor: "0", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
	assert.Equal(t, 1, inner.calls)
}
