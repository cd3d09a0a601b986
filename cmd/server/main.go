package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/alerts"
	"github.com/nostrvine/backend/internal/analytics"
	"github.com/nostrvine/backend/internal/cache"
	"github.com/nostrvine/backend/internal/candidates"
	"github.com/nostrvine/backend/internal/config"
	"github.com/nostrvine/backend/internal/database"
	"github.com/nostrvine/backend/internal/handlers"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/middleware"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
	"github.com/nostrvine/backend/internal/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log = zap.NewExample()
		logger.FatalWithFields("Invalid configuration", err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		logger.Log = zap.NewExample()
		logger.FatalWithFields("Failed to initialize logger", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log.Info("=== Prefetch API starting ===",
		zap.String("environment", cfg.Server.Environment),
		zap.String("candidate_source", cfg.Candidates.Source),
	)

	metrics.Initialize()

	// Tracing
	tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
		ServiceName:     cfg.Telemetry.ServiceName,
		ServiceVersion:  handlers.Version,
		Environment:     cfg.Server.Environment,
		CandidateSource: cfg.Candidates.Source,
		OTLPEndpoint:    cfg.Telemetry.Endpoint,
		Insecure:        cfg.Telemetry.Insecure,
		Enabled:         cfg.Telemetry.Enabled,
		SamplingRate:    cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled: failed to initialize tracer", err)
	} else if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.WarnWithFields("Tracer shutdown failed", err)
			}
		}()
	}

	// Database
	if err := database.Initialize(cfg.Database.URL, cfg.IsDevelopment()); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}
	if err := database.DB.Use(telemetry.GORMTracingPlugin()); err != nil {
		logger.WarnWithFields("Failed to register GORM tracing plugin", err)
	}

	// Redis is optional; without it candidate pages and analytics are not
	// cached and rate limiting falls back to in-process buckets
	redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err != nil {
		logger.WarnWithFields("Redis unavailable, continuing without cache", err)
		redisClient = nil
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	source, gorse := newCandidateSource(cfg, redisClient)

	validator := validation.NewServiceValidator(cfg.RequiredServices, serviceChecks(redisClient, gorse))
	if err := validator.ValidateServices(context.Background()); err != nil {
		logger.FatalWithFields("Required service unavailable", err)
	}

	store := analytics.NewGormStore(database.DB)
	recorderCfg := analytics.DefaultRecorderConfig()
	recorderCfg.BufferSize = cfg.Outcomes.BufferSize
	recorder := analytics.NewRecorder(store, recorderCfg)
	recorder.Start()

	engine := prefetch.NewEngine(cfg.Prefetch, source, recorder)

	cleanup := analytics.NewCleanupService(store, cfg.Outcomes.Retention, cfg.Outcomes.CleanupInterval)
	cleanup.Start()

	h := handlers.NewHandlers(engine, store)
	if redisClient != nil {
		h.SetHealthChecks(database.Health, redisClient)
	} else {
		h.SetHealthChecks(database.Health, nil)
	}
	if gorse != nil {
		h.SetViewSyncer(gorse)
	}

	var stopAlerts chan struct{}
	if cfg.Alerts.Enabled {
		alertManager := alerts.NewAlertManager()
		evaluator := alerts.NewEvaluator(alertManager, store, cfg.Alerts.Window)
		evaluator.InitializeDefaultRules()
		stopAlerts = evaluator.StartEvaluationLoop(cfg.Alerts.Interval)
		h.SetAlertManager(alertManager)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(cfg.Telemetry.ServiceName)...)
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID", "X-Correlation-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Cache", "Retry-After"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(rateLimiter(cfg, redisClient))
	}

	var analyticsMiddleware []gin.HandlerFunc
	if redisClient != nil {
		analyticsMiddleware = append(analyticsMiddleware, middleware.ResponseCacheMiddleware(redisClient, time.Minute))
	}
	h.RegisterRoutes(api, analyticsMiddleware...)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Log.Info("Prefetch API listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	if stopAlerts != nil {
		close(stopAlerts)
	}
	cleanup.Stop()

	// Outcomes emitted by in-flight requests are flushed after the server stops
	if err := recorder.Close(ctx); err != nil {
		logger.WarnWithFields("Outcome recorder did not drain", err)
	}

	logger.Log.Info("Server exited")
}

// newCandidateSource picks the configured feed and wraps it with the redis
// page cache when redis is up. The Gorse source is also returned so feedback
// can be forwarded to it.
func newCandidateSource(cfg *config.Config, redisClient *cache.RedisClient) (prefetch.CandidateSource, *candidates.GorseSource) {
	var source candidates.NamedSource
	var gorse *candidates.GorseSource
	switch cfg.Candidates.Source {
	case config.CandidateSourceGorse:
		gorse = candidates.NewGorseSource(cfg.Candidates.GorseURL, cfg.Candidates.GorseAPIKey, nil)
		source = gorse
	default:
		source = candidates.NewDatabaseSource(database.DB)
	}

	if redisClient == nil || cfg.Candidates.CacheTTL <= 0 {
		return source, gorse
	}
	return candidates.NewCachedSource(source, redisClient, cfg.Candidates.CacheTTL), gorse
}

// serviceChecks maps each service name accepted in REQUIRED_SERVICES to its probe
func serviceChecks(redisClient *cache.RedisClient, gorse *candidates.GorseSource) map[string]validation.Check {
	checks := map[string]validation.Check{
		validation.ServiceDatabase: func(context.Context) error { return database.Health() },
		validation.ServiceRedis: func(context.Context) error {
			return errors.New("redis is not connected")
		},
		validation.ServiceGorse: func(context.Context) error {
			return errors.New("CANDIDATE_SOURCE is not gorse")
		},
	}
	if redisClient != nil {
		checks[validation.ServiceRedis] = redisClient.Ping
	}
	if gorse != nil {
		checks[validation.ServiceGorse] = gorse.Ping
	}
	return checks
}

func rateLimiter(cfg *config.Config, redisClient *cache.RedisClient) gin.HandlerFunc {
	if cfg.RateLimit.Backend == "redis" && redisClient != nil {
		return middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	return middleware.NewRateLimiter(middleware.RateLimitConfig{
		Limit:  cfg.RateLimit.Requests,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	})
}
