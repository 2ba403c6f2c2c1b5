// Package clock abstracts wall-clock time and one-shot timers so the session
// guard's idle, debounce, clipboard and toast timers can be driven by a fake
// clock in tests.
package clock

import "time"

// Timer is a cancellable one-shot timer. Stop reports whether the call
// prevented the function from running.
type Timer interface {
	Stop() bool
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// System returns the real clock backed by package time. Callbacks run on
// their own goroutine, as with time.AfterFunc.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
