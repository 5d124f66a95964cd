package httpapi

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestTokenBucket_RefillAndReset(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(2, 1) // 1 token per second
	tb.lastRefill = start

	for i := 0; i < 2; i++ {
		if ok, _, _, _ := tb.Allow(start); !ok {
			t.Fatalf("request %d within burst rejected", i+1)
		}
	}

	ok, remaining, next, full := tb.Allow(start)
	if ok || remaining != 0 {
		t.Fatalf("third request allowed=%v remaining=%d", ok, remaining)
	}
	if got := next.Sub(start); got != time.Second {
		t.Errorf("next token in %v, want 1s", got)
	}
	if got := full.Sub(start); got != 2*time.Second {
		t.Errorf("full reset in %v, want 2s", got)
	}

	if ok, _, _, _ := tb.Allow(start.Add(1500 * time.Millisecond)); !ok {
		t.Error("request after refill rejected")
	}
}

func TestRateLimiting_429Response(t *testing.T) {
	router := newTestRouter(t, RateLimitInfo{WindowSeconds: 60, MaxRequests: 10, Burst: 2}, "")

	// Burst is 2, so first 2 should succeed, 3rd should fail with 429
	for i := 1; i <= 3; i++ {
		rec := doJSON(t, router, http.MethodGet, "/v1/sync/cursor", testUser, nil)

		for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-RateLimit-Burst"} {
			if rec.Header().Get(h) == "" {
				t.Errorf("Request %d: %s header missing", i, h)
			}
		}
		remaining, _ := strconv.Atoi(rec.Header().Get("X-RateLimit-Remaining"))

		if i <= 2 {
			if rec.Code != http.StatusOK {
				t.Errorf("Request %d: expected success (within burst), got %d: %s", i, rec.Code, rec.Body.String())
			}
			if remaining != 2-i {
				t.Errorf("Request %d: expected remaining=%d, got %d", i, 2-i, remaining)
			}
			continue
		}

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("Request %d: expected 429, got %d: %s", i, rec.Code, rec.Body.String())
		}
		retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		if err != nil || retry < 1 {
			t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
		}
		body := decode[errorBody](t, rec)
		if body.Error == "" || body.CorrelationID == "" {
			t.Errorf("429 body = %+v", body)
		}
	}
}

func TestRateLimiting_PerUser(t *testing.T) {
	router := newTestRouter(t, RateLimitInfo{WindowSeconds: 60, MaxRequests: 10, Burst: 1}, "")

	if rec := doJSON(t, router, http.MethodGet, "/v1/sync/cursor", "alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("alice first request: %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/v1/sync/cursor", "alice", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("alice second request: %d, want 429", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/v1/sync/cursor", "bob", nil); rec.Code != http.StatusOK {
		t.Errorf("bob starved by alice: %d", rec.Code)
	}
}

func TestRateLimiting_UnauthenticatedRoutesExempt(t *testing.T) {
	router := newTestRouter(t, RateLimitInfo{WindowSeconds: 60, MaxRequests: 1, Burst: 1}, "")

	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, http.MethodGet, "/v1/sync/info", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("info request %d: %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "" {
			t.Errorf("info response carries rate limit headers")
		}
	}
}

func TestRateLimiting_ZeroConfigDisables(t *testing.T) {
	router := newTestRouter(t, RateLimitInfo{}, "")
	for i := 0; i < 20; i++ {
		if rec := doJSON(t, router, http.MethodGet, "/v1/sync/cursor", testUser, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  DefaultRateLimitConfig,
		now:     func() time.Time { return now },
	}
	rl.Allow("idle")
	now = now.Add(2 * time.Hour)
	rl.Allow("busy")

	if n := rl.evictIdle(time.Hour); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if _, ok := rl.buckets["busy"]; !ok {
		t.Error("active bucket evicted")
	}
}
