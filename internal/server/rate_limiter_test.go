package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("stripe:1.2.3.4") {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if limiter.Allow("stripe:1.2.3.4") {
		t.Fatal("call over the limit should be rejected")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)

	if !limiter.Allow("stripe:1.2.3.4") {
		t.Fatal("first key should be allowed")
	}
	if !limiter.Allow("payeer:1.2.3.4") {
		t.Fatal("other keys must not share the budget")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("stripe:1.2.3.4") {
		t.Fatal("first call should be allowed")
	}
	if limiter.Allow("stripe:1.2.3.4") {
		t.Fatal("second call should be rejected")
	}

	time.Sleep(25 * time.Millisecond)
	if !limiter.Allow("stripe:1.2.3.4") {
		t.Fatal("call after window expiry should be allowed")
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if limiter.Allow("") {
		t.Fatal("empty keys must be rejected")
	}
}

func TestRateLimiterPrunesExpiredKeys(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)

	limiter.Allow("stripe:1.2.3.4")
	limiter.Allow("payeer:5.6.7.8")

	time.Sleep(25 * time.Millisecond)
	limiter.Allow("cryptomus:9.9.9.9")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.items["stripe:1.2.3.4"]; ok {
		t.Fatal("expired keys must be pruned")
	}
	if _, ok := limiter.items["cryptomus:9.9.9.9"]; !ok {
		t.Fatal("active keys must survive pruning")
	}
}
