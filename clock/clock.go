package clock

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the callback from
	// running.
	Stop() bool
}

// Clock is the scheduler used by the lifecycle manager.
type Clock interface {
	Now() time.Time
	// AfterFunc arms a one-shot timer. Non-positive durations fire as soon as possible.
	AfterFunc(d time.Duration, f func()) Timer
	// Go runs f asynchronously.
	Go(f func())
}

// Real is the production [Clock].
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, f)
}

// Go starts f on a new goroutine.
func (Real) Go(f func()) {
	go f()
}
