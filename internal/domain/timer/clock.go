package timer

import "time"

// Clock supplies monotonically increasing millisecond readings. It is
// injectable so the state machine stays deterministic under test.
type Clock interface {
	// NowMS returns the current monotonic reading in milliseconds.
	NowMS() int64
}

// monotonicClock measures against a fixed base so readings track the
// runtime's monotonic clock rather than wall time.
type monotonicClock struct {
	base time.Time
}

// NewMonotonicClock returns a Clock backed by the runtime monotonic clock.
func NewMonotonicClock() Clock {
	return &monotonicClock{base: time.Now()}
}

func (c *monotonicClock) NowMS() int64 {
	return time.Since(c.base).Milliseconds()
}
