package candidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nostrvine/backend/internal/cache"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
	"go.uber.org/zap"
)

const cacheName = "candidates"

// Cache is the subset of cache.RedisClient used for candidate pages
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// NamedSource is a candidate source that can label its cache entries
type NamedSource interface {
	prefetch.CandidateSource
	Name() string
}

// CachedSource serves repeated feed pages from redis. Cache failures are
// logged and bypassed; only the inner source can fail a fetch.
type CachedSource struct {
	inner  NamedSource
	cache  Cache
	ttl    time.Duration
	events *telemetry.PrefetchEvents
}

// NewCachedSource wraps inner with a page cache
func NewCachedSource(inner NamedSource, c Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		events: telemetry.NewPrefetchEvents(),
	}
}

// Name identifies the wrapped source
func (s *CachedSource) Name() string {
	return s.inner.Name()
}

// NextVideoIDs returns the cached page or fetches and stores it
func (s *CachedSource) NextVideoIDs(ctx context.Context, q prefetch.CandidateQuery) ([]string, error) {
	ctx, span := s.events.TraceCandidateFetch(ctx, s.inner.Name(), q.Limit)

	key := s.key(q)
	if ids, ok := s.lookup(ctx, key); ok {
		s.events.EndCandidateFetch(span, len(ids), true, nil)
		return ids, nil
	}

	ids, err := s.inner.NextVideoIDs(ctx, q)
	s.events.EndCandidateFetch(span, len(ids), false, err)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, ids)
	return ids, nil
}

// key escapes every client supplied part so no part can contain the separator
func (s *CachedSource) key(q prefetch.CandidateQuery) string {
	return fmt.Sprintf("prefetch:candidates:%s:%s:%s:%s:%d",
		s.inner.Name(),
		url.QueryEscape(q.SessionID),
		url.QueryEscape(q.CurrentVideoID),
		url.QueryEscape(q.Cursor),
		q.Limit)
}

func (s *CachedSource) lookup(ctx context.Context, key string) ([]string, bool) {
	start := time.Now()
	raw, err := s.cache.Get(ctx, key)
	metrics.RecordCacheOperation("get", cacheName, time.Since(start))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Log.Debug("Candidate cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheMiss(cacheName)
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logger.Log.Warn("Discarding corrupt candidate cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheMiss(cacheName)
		return nil, false
	}
	if ids == nil {
		ids = []string{}
	}
	metrics.RecordCacheHit(cacheName)
	return ids, true
}

func (s *CachedSource) store(ctx context.Context, key string, ids []string) {
	payload, err := json.Marshal(ids)
	if err != nil {
		return
	}
	start := time.Now()
	if err := s.cache.SetEx(ctx, key, payload, s.ttl); err != nil {
		logger.Log.Debug("Candidate cache write failed", zap.String("key", key), zap.Error(err))
	}
	metrics.RecordCacheOperation("set", cacheName, time.Since(start))
}
