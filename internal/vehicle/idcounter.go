package vehicle

import "sync/atomic"

// ID is a vehicle identifier, unique within one IDCounter epoch.
type ID uint64

// IDCounter hands out sequential vehicle IDs starting at 0. It is safe for
// concurrent use.
type IDCounter struct {
	next atomic.Uint64
}

// NewIDCounter returns a counter whose first ID is 0.
func NewIDCounter() *IDCounter {
	return &IDCounter{}
}

// Next returns the next ID and advances the counter.
func (c *IDCounter) Next() ID {
	return ID(c.next.Add(1) - 1)
}

// Peek returns the ID the next call to Next will hand out.
func (c *IDCounter) Peek() ID {
	return ID(c.next.Load())
}

// Reset restarts the counter at 0 for a fresh run.
func (c *IDCounter) Reset() {
	c.next.Store(0)
}
