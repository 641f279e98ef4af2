package server

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/FocuswithJustin/quizqti/core/cache"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:         capacity,
		capacity:       capacity,
		refillRate:     refillRate,
		lastRefillTime: timeNow(),
	}
}

// refill must be called with mu held.
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefillTime = now
	}
}

// allow takes a token if one is available.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(timeNow())
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(timeNow())
	return int(tb.tokens)
}

// reset returns the time when the bucket will be full again.
func (tb *tokenBucket) reset() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := timeNow()
	tb.refill(now)
	if tb.tokens >= tb.capacity || tb.refillRate <= 0 {
		return now
	}
	secondsUntilFull := (tb.capacity - tb.tokens) / tb.refillRate
	return now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
	// MaxClients bounds the number of tracked clients; the least recently
	// seen are forgotten first.
	MaxClients int
	// IdleTTL forgets clients that have not made a request for this long.
	IdleTTL time.Duration
}

// DefaultBurstSize is used when RateLimiterConfig.BurstSize is zero.
const DefaultBurstSize = 10

// RateLimiter manages per-client rate limiting.
type RateLimiter struct {
	config  RateLimiterConfig
	mu      sync.Mutex
	buckets cache.Cache[string, *tokenBucket]
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultBurstSize
	}
	if config.MaxClients <= 0 {
		config.MaxClients = 10000
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config: config,
		buckets: cache.NewLRUCache[string, *tokenBucket](cache.Config{
			MaxSize: config.MaxClients,
			TTL:     config.IdleTTL,
		}),
	}
}

// getBucket returns the bucket for key, creating it if necessary. Every
// access renews the idle TTL.
func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets.Get(key)
	if !ok {
		refillRate := float64(rl.config.RequestsPerMinute) / 60.0
		bucket = newTokenBucket(float64(rl.config.BurstSize), refillRate)
	}
	rl.buckets.Put(key, bucket)
	return bucket
}

// Allow checks if a request from the given client should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getBucket(key).allow()
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.buckets.Len()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(clientIP(r))
		allowed := bucket.allow()
		reset := bucket.reset()

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", bucket.remaining()))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			retryAfter := int(reset.Sub(timeNow()).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			respondError(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. Forwarding headers are
// applied to RemoteAddr by the RealIP middleware before this runs.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "unknown"
	}
	return ip
}
