package server

import (
	"sync"
	"time"
)

// webhookLimiter applies a fixed window per provider+source key. Gateways
// burst retries after an outage, so the limit must leave headroom above
// steady-state delivery; it is config-driven rather than hardcoded per call
// site.
type webhookLimiter struct {
	limit     int
	window    time.Duration
	mu        sync.Mutex
	items     map[string]*windowEntry
	lastPrune time.Time
}

type windowEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *webhookLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &webhookLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*windowEntry),
	}
}

func (l *webhookLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	entry := l.items[key]
	if entry == nil || now.Sub(entry.windowStart) > l.window {
		entry = &windowEntry{windowStart: now}
		l.items[key] = entry
	}

	if entry.count >= l.limit {
		return false
	}

	entry.count++
	return true
}

// pruneLocked drops entries whose window has passed. The key space is
// provider+client IP on an internet-facing endpoint, so it must not grow
// without bound.
func (l *webhookLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	for key, entry := range l.items {
		if now.Sub(entry.windowStart) > l.window {
			delete(l.items, key)
		}
	}
}
