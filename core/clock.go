package core

import (
	"runtime"
	"time"
)

// Clock bundles the timing primitives the drivers depend on: a monotonic
// time source, a blocking delay, and a cooperative yield point. Drivers
// take a Clock so tests can substitute a fake and so long transfers can
// be paced without touching the wall clock.
type Clock interface {
	// Now returns the current time from a monotonic source.
	Now() time.Time

	// Sleep blocks the caller for at least d.
	Sleep(d time.Duration)

	// Yield relinquishes the current time slice without blocking.
	// Drivers call it between chunks of a long transfer so other
	// cooperative tasks are not starved. It is not a suspension point:
	// no intermediate transfer state is observable across it.
	Yield()
}

// systemClock is the production Clock backed by the Go runtime.
type systemClock struct{}

// SystemClock returns the Clock drivers use when given none.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
func (systemClock) Yield()                { runtime.Gosched() }
