package upload

import (
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/clock"
)

// RateLimiterState is the outcome of asking the limiter for permission
type RateLimiterState int

const (
	// Incrementing means the request is allowed and was counted
	Incrementing RateLimiterState = iota
	// Throttled means the window is full
	Throttled
)

// String returns the state name
func (s RateLimiterState) String() string {
	if s == Throttled {
		return "throttled"
	}
	return "incrementing"
}

// RateLimiter allows at most maxCount uploads per window. The window starts
// at the first request after a reset and is not aligned to the wall clock.
type RateLimiter struct {
	clock    clock.Clock
	interval time.Duration
	maxCount int

	mu      sync.Mutex
	started time.Time
	count   int
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter(c clock.Clock, interval time.Duration, maxCount int) *RateLimiter {
	return &RateLimiter{
		clock:    c,
		interval: interval,
		maxCount: maxCount,
	}
}

// GetState counts one request against the window. When throttled it
// returns the time left until the window resets.
func (r *RateLimiter) GetState() (RateLimiterState, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	elapsed := now.Sub(r.started)
	// A clock that went backwards restarts the window
	if r.started.IsZero() || elapsed < 0 || elapsed >= r.interval {
		r.started = now
		r.count = 0
		elapsed = 0
	}

	if r.count >= r.maxCount {
		return Throttled, r.interval - elapsed
	}
	r.count++
	return Incrementing, 0
}
