// Package clock abstracts time for the Glean client. Production code uses
// Real(); tests use Fake() and move time explicitly with Advance or Set.
//
// Monotonic wraps a Clock with a fixed origin (the process start) and is the
// source of event timestamps: milliseconds since the current execution began.
// Those timestamps restart at zero on every launch, which is why the events
// database records restart markers carrying wall-clock reference times.
package clock
