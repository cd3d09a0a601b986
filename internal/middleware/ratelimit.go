package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nostrvine/backend/internal/errors"
	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/util"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// Burst above the steady rate; defaults to Limit
	Burst int
	// KeyFunc picks the bucket; defaults to client IP
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:  120,
		Window: time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	config   RateLimitConfig
	every    rate.Limit
	mu       sync.Mutex
	visitors map[string]*visitor
	idleTTL  time.Duration
}

// newRateLimiter builds the limiter state behind NewRateLimiter
func newRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Limit < 1 {
		config.Limit = DefaultRateLimitConfig().Limit
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimitConfig().Window
	}
	if config.Burst < 1 {
		config.Burst = config.Limit
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		config:   config,
		every:    rate.Limit(float64(config.Limit) / config.Window.Seconds()),
		visitors: make(map[string]*visitor),
		idleTTL:  max(3*config.Window, time.Minute),
	}
}

// NewRateLimiter creates an in-process rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	rl := newRateLimiter(config)

	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		reservation := rl.reserve(key)
		if reservation.OK() && reservation.Delay() == 0 {
			c.Next()
			return
		}
		retryAfter := reservation.Delay()
		reservation.Cancel()
		if !reservation.OK() {
			retryAfter = rl.config.Window
		}

		metrics.RecordRateLimitExceeded(c.FullPath(), c.Request.Method)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		util.RespondWithAPIError(c, errors.RateLimited(""))
	}
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

func (rl *RateLimiter) reserve(key string) *rate.Reservation {
	return rl.limiter(key).Reserve()
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[key]
	if !ok {
		rl.evictIdle(now)
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// evictIdle drops buckets unused for idleTTL. Callers hold rl.mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
}
