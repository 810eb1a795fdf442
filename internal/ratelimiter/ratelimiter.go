package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/utils"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(clientIP string) bool
}

// TokenBucketRateLimiter implements a per-client token bucket rate limiter
type TokenBucketRateLimiter struct {
	maxTokens   int
	refillRate  time.Duration // one token is added per refillRate
	buckets     map[string]*bucket
	mutex       sync.Mutex
	cleanupTick time.Duration
	idleTTL     time.Duration
	now         func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter and starts
// its background cleanup. Call Stop to release it.
func NewTokenBucketRateLimiter(maxTokens int, refillRate time.Duration) *TokenBucketRateLimiter {
	rl := &TokenBucketRateLimiter{
		maxTokens:   maxTokens,
		refillRate:  refillRate,
		buckets:     make(map[string]*bucket),
		cleanupTick: 10 * time.Minute,
		idleTTL:     time.Hour,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go rl.cleanupRoutine()
	return rl
}

// Allow checks if a request from the given client IP is allowed
func (rl *TokenBucketRateLimiter) Allow(clientIP string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	b, exists := rl.buckets[clientIP]
	if !exists {
		b = &bucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[clientIP] = b
	}
	b.lastSeen = now

	if rl.refillRate > 0 {
		if add := int(now.Sub(b.lastRefill) / rl.refillRate); add > 0 {
			b.tokens += add
			if b.tokens > rl.maxTokens {
				b.tokens = rl.maxTokens
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(add) * rl.refillRate)
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Stop ends the cleanup routine. It is safe to call more than once.
func (rl *TokenBucketRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *TokenBucketRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup removes buckets idle for longer than idleTTL
func (rl *TokenBucketRateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

func (rl *TokenBucketRateLimiter) size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}

// RateLimitMiddleware wraps an http.Handler with rate limiting keyed by client IP.
func RateLimitMiddleware(rateLimiter RateLimiter, retryAfter time.Duration) func(http.Handler) http.Handler {
	retry := strconv.Itoa(int(math.Ceil(retryAfter.Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := utils.ClientIP(r)
			if !rateLimiter.Allow(clientIP) {
				logger := logging.WithContext(r.Context())
				logger.Warn().Str("client_ip", clientIP).Msg("rate limit exceeded")
				if retryAfter > 0 {
					w.Header().Set("Retry-After", retry)
				}
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
