// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/validation"
)

// Candidate source backends
const (
	CandidateSourceDatabase = "database"
	CandidateSourceGorse    = "gorse"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        string
	Environment string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
	File  string
}

// DatabaseConfig holds the postgres connection string
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// CandidateConfig selects and tunes the candidate source
type CandidateConfig struct {
	Source      string
	GorseURL    string
	GorseAPIKey string
	CacheTTL    time.Duration
}

// OutcomeConfig tunes the asynchronous outcome recorder
type OutcomeConfig struct {
	BufferSize      int
	Retention       time.Duration // zero keeps outcomes forever
	CleanupInterval time.Duration
}

// AlertConfig tunes the prefetch health alert evaluator
type AlertConfig struct {
	Enabled  bool
	Interval time.Duration
	Window   time.Duration
}

// TelemetryConfig holds OpenTelemetry exporter settings
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Insecure    bool
	SampleRate  float64
}

// RateLimitConfig holds request rate limiting settings
type RateLimitConfig struct {
	Enabled  bool
	Backend  string // "redis" or "memory"
	Requests int
	Window   time.Duration
	Burst    int
}

// Config is the full service configuration. Treat it as read-only after Load.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Candidates CandidateConfig
	Outcomes   OutcomeConfig
	Telemetry  TelemetryConfig
	RateLimit  RateLimitConfig
	Alerts     AlertConfig
	Prefetch   prefetch.Config

	// RequiredServices must be reachable at startup ("database", "redis", "gorse")
	RequiredServices []string
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	envFileErr := godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if envFileErr != nil && cfg.IsDevelopment() {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using system environment variables")
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	pf := prefetch.DefaultConfig()
	pf.Network.SlowBelowMbps = getEnvFloat("PREFETCH_SLOW_BELOW_MBPS", pf.Network.SlowBelowMbps)
	pf.Network.MediumBelowMbps = getEnvFloat("PREFETCH_MEDIUM_BELOW_MBPS", pf.Network.MediumBelowMbps)
	pf.CandidateTimeout = getEnvDuration("CANDIDATE_TIMEOUT", pf.CandidateTimeout)

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvOrDefault("PORT", "8787"),
			Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			File:  getEnvOrDefault("LOG_FILE", "prefetch.log"),
		},
		Database: DatabaseConfig{URL: databaseURL()},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Candidates: CandidateConfig{
			Source:      strings.ToLower(getEnvOrDefault("CANDIDATE_SOURCE", CandidateSourceDatabase)),
			GorseURL:    getEnvOrDefault("GORSE_API_URL", "http://localhost:8087"),
			GorseAPIKey: os.Getenv("GORSE_API_KEY"),
			CacheTTL:    getEnvDuration("CANDIDATE_CACHE_TTL", 30*time.Second),
		},
		Outcomes: OutcomeConfig{
			BufferSize:      getEnvInt("OUTCOME_BUFFER_SIZE", 1024),
			Retention:       getEnvDuration("OUTCOME_RETENTION", 30*24*time.Hour),
			CleanupInterval: getEnvDuration("OUTCOME_CLEANUP_INTERVAL", time.Hour),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			Endpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", "nostrvine-prefetch"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRate:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
			Backend:  strings.ToLower(getEnvOrDefault("RATE_LIMIT_BACKEND", "redis")),
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			Burst:    getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Alerts: AlertConfig{
			Enabled:  getEnvBool("ALERTS_ENABLED", true),
			Interval: getEnvDuration("ALERTS_INTERVAL", time.Minute),
			Window:   getEnvDuration("ALERTS_WINDOW", time.Hour),
		},
		Prefetch:         pf,
		RequiredServices: validation.ParseRequiredServices(os.Getenv("REQUIRED_SERVICES")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if err := c.Prefetch.Validate(); err != nil {
		return fmt.Errorf("invalid prefetch config: %w", err)
	}
	switch c.Candidates.Source {
	case CandidateSourceDatabase, CandidateSourceGorse:
	default:
		return fmt.Errorf("unknown CANDIDATE_SOURCE %q (want %q or %q)",
			c.Candidates.Source, CandidateSourceDatabase, CandidateSourceGorse)
	}
	if c.Outcomes.BufferSize < 1 {
		return fmt.Errorf("OUTCOME_BUFFER_SIZE must be positive, got %d", c.Outcomes.BufferSize)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs positive RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW")
	}
	if c.Alerts.Enabled && (c.Alerts.Interval <= 0 || c.Alerts.Window <= 0) {
		return fmt.Errorf("alerts need positive ALERTS_INTERVAL and ALERTS_WINDOW")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	// Fallback to individual components
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "postgres"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "nostrvine"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("150ms") or bare milliseconds ("150")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
