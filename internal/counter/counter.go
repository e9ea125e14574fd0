// Package counter provides the tiny atomic approximate counter both
// back-ends use for their diagnostic, non-linearizable Size() method.
package counter

import "sync/atomic"

// Approximate is an atomic running total. It is safe for concurrent use but
// reads are not linearized against the mutations that produced them.
type Approximate struct {
	n atomic.Int64
}

// Add adjusts the counter by delta.
func (c *Approximate) Add(delta int64) { c.n.Add(delta) }

// Load returns the current value, clamped to zero: concurrent interleavings
// of Insert/Remove can otherwise transiently drive the raw counter negative
// even though the set itself never holds a negative number of elements.
func (c *Approximate) Load() int {
	v := c.n.Load()
	if v < 0 {
		return 0
	}
	return int(v)
}
