// Package sparsecounter tracks, per piece index, how many times that piece
// has been marked complete, and exposes an O(1) "do we have it" test backed
// by a bitfield so the download manager doesn't need to re-derive
// completion from the piece database on every query.
package sparsecounter

import "github.com/prxssh/rabbitdm/internal/bitfield"

// Counter maps a piece index to a completion count and a derived bit.
//
// The count exists (rather than a plain bitfield) because the same piece
// index can be marked complete more than once without changing its
// already-complete state: MarkComplete is idempotent, and the count lets
// callers tell "never completed" apart from "completed" without a separate
// sentinel.
type Counter struct {
	bits   bitfield.Bitfield
	counts []uint32
}

// New returns a Counter sized for n pieces, all initially incomplete.
func New(n int) *Counter {
	return &Counter{
		bits:   bitfield.New(n),
		counts: make([]uint32, n),
	}
}

// MarkComplete records piece idx as complete. Idempotent.
func (c *Counter) MarkComplete(idx int) {
	if idx < 0 || idx >= len(c.counts) {
		return
	}

	c.counts[idx]++
	c.bits.Set(idx)
}

// MarkIncomplete undoes a completion mark, e.g. after a SHA-1 mismatch
// forces a piece back to MISSING. It does not decrement the count: the
// counter intentionally conflates "completed N times" with "completed",
// and resetting the bit is enough to make IsComplete observe the piece as
// missing again.
func (c *Counter) MarkIncomplete(idx int) {
	if idx < 0 || idx >= len(c.counts) {
		return
	}

	c.bits.Clear(idx)
}

// IsComplete reports whether piece idx has been marked complete.
func (c *Counter) IsComplete(idx int) bool {
	return c.bits.Has(idx)
}

// Count returns how many times piece idx has been marked complete.
func (c *Counter) Count(idx int) uint32 {
	if idx < 0 || idx >= len(c.counts) {
		return 0
	}

	return c.counts[idx]
}

// CompletedCount returns the number of pieces currently marked complete.
func (c *Counter) CompletedCount() int {
	return c.bits.Count()
}

// Len returns the total number of tracked pieces.
func (c *Counter) Len() int {
	return len(c.counts)
}

// Bitfield returns the underlying completion bitfield. Callers must treat
// it as read-only; use MarkComplete/MarkIncomplete to mutate state.
func (c *Counter) Bitfield() bitfield.Bitfield {
	return c.bits
}

// All reports whether every tracked piece is complete.
func (c *Counter) All() bool {
	return len(c.counts) > 0 && c.bits.Count() == len(c.counts)
}
