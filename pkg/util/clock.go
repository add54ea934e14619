package util

import "time"

// Clock abstracts wall-clock access so the expiry sweeper can be driven
// deterministically in tests.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }
