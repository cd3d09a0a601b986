package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/models"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
	"go.uber.org/zap"
)

// RecorderConfig tunes the outcome recorder
type RecorderConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultRecorderConfig returns production recorder settings
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:    1024,
		BatchSize:     50,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Recorder is the asynchronous prefetch.OutcomeSink. Emit hands the record
// to a buffered queue and returns; a background worker writes batches to the
// store. A full queue or a failing store drops records.
type Recorder struct {
	store  Store
	cfg    RecorderConfig
	events *telemetry.PrefetchEvents

	records chan prefetch.OutcomeRecord
	quit    chan struct{}
	done    chan struct{}

	// mu orders Emit against Close: once closed is set under the write lock
	// no Emit can enqueue, so the worker's final drain sees every record
	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
}

var _ prefetch.OutcomeSink = (*Recorder)(nil)

// NewRecorder creates a recorder. Call Start before emitting and Close on shutdown.
func NewRecorder(store Store, cfg RecorderConfig) *Recorder {
	defaults := DefaultRecorderConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return &Recorder{
		store:   store,
		cfg:     cfg,
		events:  telemetry.NewPrefetchEvents(),
		records: make(chan prefetch.OutcomeRecord, cfg.BufferSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the background writer
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Emit queues a record without blocking. Records emitted after Close are
// counted as dropped.
func (r *Recorder) Emit(record prefetch.OutcomeRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.RecordOutcome("dropped")
		return
	}

	select {
	case r.records <- record:
		metrics.SetOutcomeQueueDepth(len(r.records))
	default:
		metrics.RecordOutcome("dropped")
		logger.Log.Warn("Outcome queue full, record dropped",
			logger.WithRecommendationID(record.RecommendationID),
			logger.WithSessionID(record.SessionID),
		)
	}
}

// Close stops accepting records, flushes what is queued and waits for the
// writer until ctx expires
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.quit)
	}
	r.mu.Unlock()
	r.Start() // a never-started recorder still drains its queue

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.PrefetchOutcome, 0, r.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.write(batch)
		batch = batch[:0]
		metrics.SetOutcomeQueueDepth(len(r.records))
	}

	for {
		select {
		case record := <-r.records:
			batch = append(batch, ToModel(record))
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.quit:
			// Emit stops enqueueing once quit is closed; drain what is left
			for {
				select {
				case record := <-r.records:
					batch = append(batch, ToModel(record))
					if len(batch) >= r.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *Recorder) write(batch []models.PrefetchOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordOutcome("failed")
			logger.Log.Error("Outcome store panicked, batch dropped",
				zap.Int("batch_size", len(batch)),
				zap.Any("panic", rec),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	ctx, span := r.events.TraceOutcomeBatch(ctx, len(batch))
	defer span.End()

	if err := r.store.SaveOutcomes(ctx, batch); err != nil {
		telemetry.RecordError(span, err)
		for range batch {
			metrics.RecordOutcome("failed")
		}
		logger.Log.Warn("Failed to persist prefetch outcomes",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return
	}
	for range batch {
		metrics.RecordOutcome("persisted")
	}
}
