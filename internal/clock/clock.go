package clock

import "time"

// Clock supplies the current time and advances it. The runner is written
// against this interface only, so live and replayed runs execute identical
// code paths.
type Clock interface {
	// Now returns the current timestamp in UTC nanoseconds.
	Now() int64
	// Advance moves to the next cycle timestamp. The second return value is
	// false when the timeline is exhausted (replay end-of-data). A live
	// clock never exhausts.
	Advance() (int64, bool)
}

// Live reports wall-clock time. Advance is effectively a no-op: time moves
// on its own.
type Live struct {
	last int64
}

// NewLive creates a wall-clock backed clock.
func NewLive() *Live {
	return &Live{}
}

// Now returns wall-clock time, pinned to be monotonic non-decreasing within
// the run.
func (c *Live) Now() int64 {
	ts := time.Now().UTC().UnixNano()
	if ts < c.last {
		return c.last
	}
	c.last = ts
	return ts
}

// Advance returns the current wall-clock time and never exhausts.
func (c *Live) Advance() (int64, bool) {
	return c.Now(), true
}
