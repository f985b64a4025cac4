package clock

import "errors"

var ErrNotMonotonic = errors.New("replay timestamps must be non-decreasing")

// Replay reports time from an ordered, finite timestamp sequence drawn from
// historical data. The data source owns the decision of which timestamp is
// next; the clock is a thin reporting surface over that sequence, so the
// same historical window reproduces the exact same sequence on every run.
type Replay struct {
	seq     []int64
	idx     int
	current int64
}

// NewReplay creates a replay clock over the given timestamp sequence.
func NewReplay(seq []int64) (*Replay, error) {
	for i := 1; i < len(seq); i++ {
		if seq[i] < seq[i-1] {
			return nil, ErrNotMonotonic
		}
	}
	return &Replay{seq: seq}, nil
}

// Now returns the timestamp of the current cycle. Before the first Advance
// it returns the first timestamp of the window.
func (c *Replay) Now() int64 {
	if c.idx == 0 && len(c.seq) > 0 {
		return c.seq[0]
	}
	return c.current
}

// Advance pops the next timestamp, or reports exhaustion.
func (c *Replay) Advance() (int64, bool) {
	if c.idx >= len(c.seq) {
		return 0, false
	}
	c.current = c.seq[c.idx]
	c.idx++
	return c.current, true
}

// Remaining returns the number of cycles left in the window.
func (c *Replay) Remaining() int {
	return len(c.seq) - c.idx
}
