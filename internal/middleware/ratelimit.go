package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds token bucket settings for the gateway.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	WindowDuration    time.Duration `yaml:"window_duration"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// RateLimiter applies a per-client token bucket. Clients are keyed by IP,
// honoring X-Forwarded-For and X-Real-IP set by a fronting proxy.
type RateLimiter struct {
	config RateLimitConfig
	logger *logrus.Logger

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

type limitResult struct {
	allowed    bool
	remaining  int
	resetTime  time.Time
	retryAfter time.Duration
}

// NewRateLimiter creates a limiter and starts its bucket cleanup loop. Call
// Stop to end the loop.
func NewRateLimiter(config RateLimitConfig, logger *logrus.Logger) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.BurstSize <= 0 {
		config.BurstSize = config.RequestsPerMinute
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:      config,
		logger:      logger,
		buckets:     make(map[string]*tokenBucket),
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(config.CleanupInterval)
	go rl.cleanupLoop()

	return rl
}

// Middleware enforces the limit and stamps X-RateLimit headers on responses.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.config.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		result := rl.allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.resetTime.Unix(), 10))

		if !result.allowed {
			retrySeconds := int(result.retryAfter.Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))

			rl.logger.WithFields(logrus.Fields{
				"client":      key,
				"retry_after": result.retryAfter,
			}).Warn("Rate limit exceeded")

			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded", map[string]interface{}{
				"retry_after": retrySeconds,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow refills the client's bucket and takes one token if available.
func (rl *RateLimiter) allow(key string) limitResult {
	now := time.Now()
	bucket := rl.bucketFor(key)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	// Refill whole tokens only; shorter elapses keep accruing against the
	// unchanged lastRefill so slow drips still add up.
	elapsed := now.Sub(bucket.lastRefill)
	refill := int(elapsed.Minutes() * float64(rl.config.RequestsPerMinute))
	if refill > 0 {
		bucket.tokens = min(bucket.tokens+refill, rl.config.BurstSize)
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return limitResult{
			allowed:   true,
			remaining: bucket.tokens,
			resetTime: now.Add(rl.config.WindowDuration),
		}
	}

	retryAfter := time.Minute / time.Duration(rl.config.RequestsPerMinute)
	return limitResult{
		resetTime:  now.Add(retryAfter),
		retryAfter: retryAfter,
	}
}

func (rl *RateLimiter) bucketFor(key string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{
			tokens:     rl.config.BurstSize,
			lastRefill: time.Now(),
		}
		rl.buckets[key] = bucket
	}
	return bucket
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops buckets idle for more than two windows.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.config.WindowDuration)
	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := bucket.lastRefill.Before(cutoff)
		bucket.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.WithField("removed_buckets", removed).Debug("Rate limit cleanup completed")
	}
}

// Stop halts the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

// clientIP resolves the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
