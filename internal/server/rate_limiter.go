// Package server implements a sliding-window rate limiter for per-connection
// message throttling that protects room members from message floods.
package server

import (
	"sync"
	"time"
)

// rateLimiter tracks recent message timestamps per connection and admits a
// new message only while fewer than burst admissions fall inside the trailing
// window. Stale timestamps are pruned lazily on each attempt, so memory per
// connection stays bounded by the burst limit.
type rateLimiter struct {
	mu      sync.Mutex
	burst   int
	window  time.Duration
	now     func() time.Time
	history map[string][]time.Time
}

func newRateLimiter(burst int, window time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Second
	}

	return &rateLimiter{
		burst:   burst,
		window:  window,
		now:     time.Now,
		history: make(map[string][]time.Time),
	}
}

// allow prunes timestamps older than the window for connID, then admits the
// message if the remaining count is below the burst limit, recording the new
// timestamp. A rejected attempt does not consume budget.
func (rl *rateLimiter) allow(connID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.history[connID][:0]
	for _, ts := range rl.history[connID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.burst {
		rl.history[connID] = recent
		return false
	}

	rl.history[connID] = append(recent, now)
	return true
}

// release discards all state for a connection. Called on disconnect so the
// history map does not accumulate entries for dead connections.
func (rl *rateLimiter) release(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, connID)
}
