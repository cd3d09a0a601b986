// Package backend provides the NostrVine prefetch API server.
//
// Clients ask which upcoming feed videos to preload, given their network
// and scrolling behavior. The service answers with an ordered list of video
// ids, a quality per video and an estimated download size.
//
// Entry points live under cmd:
//
//   - cmd/server: HTTP API (prefetch, feedback, analytics, alerts, health)
//   - cmd/migrate: database migrations
//   - cmd/seed: development and test feed data
//   - cmd/prefetchctl: CLI to simulate, fetch and inspect recommendations
//
// The implementation is organized into subpackages:
//
//   - internal/prefetch: network classification, scroll analysis, strategy and recommendation building
//   - internal/candidates: candidate feed sources (database, Gorse, redis page cache)
//   - internal/analytics: asynchronous outcome recording, feedback storage, aggregation and retention
//   - internal/alerts: health alerts evaluated over recent analytics
//   - internal/handlers: HTTP request handlers for all API endpoints
//   - internal/middleware: request ids, logging, tracing, metrics, rate limiting and response caching
//   - internal/database, internal/cache, internal/config, internal/logger, internal/metrics, internal/telemetry
package backend
