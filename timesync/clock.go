// Package timesync captures microsecond timestamps next to GPIO toggles and
// drives the deferred presentation toggle.
package timesync

import (
	"time"
)

// Clock is a free running microsecond counter that wraps at 2^32.
type Clock interface {
	Now() uint32
}

// MonotonicClock counts microseconds since it was created.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() uint32 {
	return uint32(time.Since(c.start).Microseconds())
}

// Since is the elapsed time from then to now on a wrapping counter.
func Since(then, now uint32) time.Duration {
	return time.Duration(now-then) * time.Microsecond
}

func durationUS(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}
