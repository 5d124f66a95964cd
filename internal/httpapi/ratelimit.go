package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/rs/zerolog/log"
)

// Per-user token bucket. Burst is the bucket capacity, MaxRequests per
// WindowSeconds the refill rate. Pull and push share one bucket per user.

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket with given capacity and refill rate
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token at now if one is available.
// nextToken is when a token is next available (Retry-After), fullReset when
// the bucket is full again (X-RateLimit-Reset).
func (tb *TokenBucket) Allow(now time.Time) (allowed bool, remaining int, nextToken, fullReset time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	fullReset = now.Add(secondsToDuration((tb.capacity - tb.tokens) / tb.refillRate))

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), now, fullReset
	}

	nextToken = now.Add(secondsToDuration((1.0 - tb.tokens) / tb.refillRate))
	return false, 0, nextToken, fullReset
}

func (tb *TokenBucket) idleSince(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return now.Sub(tb.lastRefill)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RateLimiter manages per-user token buckets
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitInfo
	now     func() time.Time
	mu      sync.RWMutex
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitInfo) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		now:     time.Now,
	}

	go rl.cleanupLoop(10*time.Minute, time.Hour)

	return rl
}

// getBucket retrieves or creates a token bucket for the given user
func (rl *RateLimiter) getBucket(userID string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[userID]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[userID]; exists {
		return bucket
	}

	refillRate := float64(rl.config.MaxRequests) / float64(rl.config.WindowSeconds)
	bucket = NewTokenBucket(rl.config.Burst, refillRate)
	bucket.lastRefill = rl.now()
	rl.buckets[userID] = bucket
	return bucket
}

// Allow checks if the user is allowed to make a request
func (rl *RateLimiter) Allow(userID string) (bool, int, time.Time, time.Time) {
	return rl.getBucket(userID).Allow(rl.now())
}

// evictIdle drops buckets unused for longer than idle and returns how many it removed.
func (rl *RateLimiter) evictIdle(idle time.Duration) int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for userID, bucket := range rl.buckets {
		if bucket.idleSince(now) > idle {
			delete(rl.buckets, userID)
			n++
		}
	}
	return n
}

func (rl *RateLimiter) cleanupLoop(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		if n := rl.evictIdle(idle); n > 0 {
			log.Debug().Int("evicted", n).Msg("rate limiter buckets evicted")
		}
	}
}

// enabled reports whether the configuration describes a usable bucket.
func (c RateLimitInfo) enabled() bool {
	return c.WindowSeconds > 0 && c.MaxRequests > 0 && c.Burst > 0
}

// RateLimitMiddleware returns a middleware that enforces rate limiting per user
// Each middleware instance owns its limiter, so route groups can differ.
// A zero configuration disables limiting.
func RateLimitMiddleware(config RateLimitInfo) func(http.Handler) http.Handler {
	if !config.enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserID(r.Context())
			if userID == "" {
				// No user ID means unauthenticated request, skip rate limiting
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, nextTokenTime, fullResetTime := limiter.Allow(userID)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullResetTime.Unix(), 10))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(config.Burst))

			if !allowed {
				retryAfter := int(nextTokenTime.Sub(limiter.now()).Seconds() + 0.999)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Ctx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Int("retryAfter", retryAfter).
					Msg("rate limit exceeded")

				writeError(w, r, http.StatusTooManyRequests,
					"Rate limit exceeded. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
