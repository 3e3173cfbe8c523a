package upload

import (
	"testing"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/stretchr/testify/assert"
)

var testStart = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

// TestRateLimiterWindow tests that maxCount requests pass and the next is throttled
func TestRateLimiterWindow(t *testing.T) {
	fake := clock.Fake(testStart)
	limiter := NewRateLimiter(fake, time.Minute, 3)

	for i := 0; i < 3; i++ {
		state, _ := limiter.GetState()
		assert.Equal(t, Incrementing, state)
		fake.Advance(10 * time.Second)
	}

	state, remaining := limiter.GetState()
	assert.Equal(t, Throttled, state)
	assert.Equal(t, 30*time.Second, remaining)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, time.Minute)
}

// TestRateLimiterReset tests that the window restarts once the interval passed
func TestRateLimiterReset(t *testing.T) {
	fake := clock.Fake(testStart)
	limiter := NewRateLimiter(fake, time.Minute, 1)

	state, _ := limiter.GetState()
	assert.Equal(t, Incrementing, state)
	state, _ = limiter.GetState()
	assert.Equal(t, Throttled, state)

	fake.Advance(time.Minute + time.Millisecond)
	state, _ = limiter.GetState()
	assert.Equal(t, Incrementing, state)
}

// TestRateLimiterResetAtBoundary tests that waiting exactly the returned
// remaining time is enough to pass again
func TestRateLimiterResetAtBoundary(t *testing.T) {
	fake := clock.Fake(testStart)
	limiter := NewRateLimiter(fake, time.Minute, 1)

	state, _ := limiter.GetState()
	assert.Equal(t, Incrementing, state)

	fake.Advance(20 * time.Second)
	state, remaining := limiter.GetState()
	assert.Equal(t, Throttled, state)
	assert.Equal(t, 40*time.Second, remaining)

	fake.Advance(remaining)
	state, remaining = limiter.GetState()
	assert.Equal(t, Incrementing, state)
	assert.Zero(t, remaining)
}

// TestRateLimiterClockBackwards tests that a clock moving backwards restarts the window
func TestRateLimiterClockBackwards(t *testing.T) {
	fake := clock.Fake(testStart)
	limiter := NewRateLimiter(fake, time.Minute, 1)

	state, _ := limiter.GetState()
	assert.Equal(t, Incrementing, state)

	fake.Set(testStart.Add(-time.Hour))
	state, _ = limiter.GetState()
	assert.Equal(t, Incrementing, state)
}

// TestRateLimiterStateString tests state names
func TestRateLimiterStateString(t *testing.T) {
	assert.Equal(t, "incrementing", Incrementing.String())
	assert.Equal(t, "throttled", Throttled.String())
}
