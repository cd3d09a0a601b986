package metrics

import (
	"strconv"
	"time"
)

// RecordPrefetch records one finished recommendation
func RecordPrefetch(networkType string, baseCount int, sizeMB float64, fallback string, duration time.Duration) {
	m := Get()
	if fallback == "" {
		fallback = "none"
	}
	m.PrefetchRecommendationsTotal.WithLabelValues(networkType, fallback).Inc()
	m.PrefetchBaseCount.WithLabelValues(networkType).Observe(float64(baseCount))
	m.PrefetchEstimatedSize.WithLabelValues(networkType).Observe(sizeMB)
	m.PrefetchDuration.WithLabelValues(networkType).Observe(duration.Seconds())
}

// RecordCandidateFailure counts a recommendation that fell back to empty
func RecordCandidateFailure(reason string) {
	Get().CandidateFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordCandidateFetch records latency of a candidate source call
func RecordCandidateFetch(source string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Get().CandidateFetchDuration.WithLabelValues(source, status).Observe(duration.Seconds())
}

// RecordGorseError counts a failed Gorse call by HTTP status or transport error
func RecordGorseError(statusCode int) {
	errorType := "transport"
	if statusCode > 0 {
		errorType = strconv.Itoa(statusCode)
	}
	Get().GorseErrors.WithLabelValues(errorType).Inc()
}

// RecordOutcome counts an outcome record by status
func RecordOutcome(status string) {
	Get().OutcomeRecordsTotal.WithLabelValues(status).Inc()
}

// SetOutcomeQueueDepth reports the number of records waiting to be written
func SetOutcomeQueueDepth(depth int) {
	Get().OutcomeQueueDepth.Set(float64(depth))
}

// RecordFeedback counts a feedback report
func RecordFeedback(status string) {
	Get().FeedbackTotal.WithLabelValues(status).Inc()
}

// RecordAlert counts a triggered alert
func RecordAlert(alertType, level string) {
	Get().AlertsTriggeredTotal.WithLabelValues(alertType, level).Inc()
}

// RecordError counts a handler error
func RecordError(errorType, endpoint string) {
	Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordDatabaseQuery records latency and status of a database query
func RecordDatabaseQuery(queryType, table string, duration time.Duration, err error) {
	m := Get()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
	m.DatabaseQueriesTotal.WithLabelValues(queryType, table, status).Inc()
}

// RecordCacheHit counts a cache hit
func RecordCacheHit(cacheName string) {
	Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss counts a cache miss
func RecordCacheMiss(cacheName string) {
	Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheOperation records latency of a cache call
func RecordCacheOperation(operation, cacheName string, duration time.Duration) {
	m := Get()
	m.CacheOperationsTotal.WithLabelValues(operation, cacheName).Inc()
	m.CacheOperationDuration.WithLabelValues(operation, cacheName).Observe(duration.Seconds())
}

// RecordRateLimitExceeded counts a rejected request
func RecordRateLimitExceeded(endpoint, method string) {
	Get().RateLimitExceededTotal.WithLabelValues(endpoint, method).Inc()
}
