package clock

import "time"

// Clock abstracts time so that rate limiting, upload waits and event
// timestamps can be driven deterministically in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Monotonic measures elapsed time since a fixed origin, typically the
// process start. Timestamps taken from it reset on every restart.
type Monotonic struct {
	clock Clock
	start time.Time
}

// NewMonotonic anchors a monotonic timer at the clock's current time
func NewMonotonic(c Clock) *Monotonic {
	return &Monotonic{clock: c, start: c.Now()}
}

// Start returns the wall-clock time the timer was anchored at
func (m *Monotonic) Start() time.Time { return m.start }

// Millis returns whole milliseconds elapsed since Start, never negative
func (m *Monotonic) Millis() int64 {
	elapsed := m.clock.Now().Sub(m.start).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Nanos returns nanoseconds elapsed since Start
func (m *Monotonic) Nanos() int64 {
	return m.clock.Now().Sub(m.start).Nanoseconds()
}
