package engine

import "sync/atomic"

// Clock is the store's monotonic logical clock.
//
// Every published action is stamped with a strictly increasing seq from
// this clock. Seqs order cycles, link effect follow-ups to the cycle that
// produced them, and decide which actions a late action watcher sees.
// Wall-clock time is never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
