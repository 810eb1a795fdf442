package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, maxTokens int, refill time.Duration) (*TokenBucketRateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewTokenBucketRateLimiter(maxTokens, refill)
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestTokenBucketRateLimiter(t *testing.T) {
	rl, clock := newTestLimiter(t, 5, 100*time.Millisecond)
	clientIP := "192.168.1.100"

	for i := 0; i < 5; i++ {
		if !rl.Allow(clientIP) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow(clientIP) {
		t.Error("6th request should be denied")
	}

	clock.advance(150 * time.Millisecond)
	if !rl.Allow(clientIP) {
		t.Error("Request should be allowed after refill")
	}
	if rl.Allow(clientIP) {
		t.Error("Only one token should have been refilled")
	}

	// the 50ms remainder of the last window is kept
	clock.advance(50 * time.Millisecond)
	if !rl.Allow(clientIP) {
		t.Error("Partial refill window should carry over")
	}
}

func TestTokenBucketRateLimiterDifferentClients(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, 100*time.Millisecond)

	client1 := "192.168.1.100"
	client2 := "192.168.1.101"

	for i := 0; i < 2; i++ {
		if !rl.Allow(client1) {
			t.Errorf("Client1 request %d should be allowed", i+1)
		}
		if !rl.Allow(client2) {
			t.Errorf("Client2 request %d should be allowed", i+1)
		}
	}

	if rl.Allow(client1) {
		t.Error("Client1 3rd request should be denied")
	}
	if rl.Allow(client2) {
		t.Error("Client2 3rd request should be denied")
	}
}

func TestTokenBucketRefillCapped(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, 10*time.Millisecond)
	ip := "10.0.0.1"

	rl.Allow(ip)
	rl.Allow(ip)
	clock.advance(time.Second)

	allowed := 0
	for i := 0; i < 5; i++ {
		if rl.Allow(ip) {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("Expected refill capped at 2 tokens, got %d", allowed)
	}
}

func TestCleanupRemovesIdleBuckets(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Second)

	rl.Allow("10.0.0.1")
	clock.advance(30 * time.Minute)
	rl.Allow("10.0.0.2")
	clock.advance(45 * time.Minute)

	rl.cleanup()
	if got := rl.size(); got != 1 {
		t.Fatalf("Expected 1 bucket after cleanup, got %d", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	handler := RateLimitMiddleware(rl, 30*time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func(remote string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		return req
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("203.0.113.5:1000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rec.Code)
	}

	// same client, different source port
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("203.0.113.5:2000"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Expected Retry-After 30, got %q", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("203.0.113.6:1000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected other client to pass, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_ForwardedHeadersDoNotMintBuckets(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	handler := RateLimitMiddleware(rl, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, forged := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		req.Header.Set("X-Forwarded-For", forged)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		want := http.StatusTooManyRequests
		if i == 0 {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Fatalf("request %d with X-Forwarded-For %s: expected %d, got %d", i, forged, want, rec.Code)
		}
	}
	if got := rl.size(); got != 1 {
		t.Fatalf("Expected a single bucket keyed by the peer, got %d", got)
	}
}
