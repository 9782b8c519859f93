// Package txnbuffer implements the bounded look-ahead buffer described
// in spec §4.G: records produced while a transaction is open are held
// back until the transaction's fate (commit or rollback) is known, so
// that a rolled-back transaction never reaches the downstream
// consumer. Capacity overflow is tracked (FirstUnfitPosition) rather
// than growing the buffer unboundedly; the pipeline that owns a Buffer
// decides what to do about an overflowed transaction (this connector
// build refuses to emit it rather than rewinding and replaying the
// stream — see pipeline.commitTransaction).
package txnbuffer

import "github.com/neverchanje/chgcap-mysql/change"

// Position is an alias of change.Position, used for the buffer's
// overflow bookkeeping.
type Position = change.Position

// Buffer accumulates records for the currently open transaction. It is
// owned exclusively by the pipeline goroutine (spec §5): no internal
// locking.
type Buffer struct {
	capacity int
	records  []*change.Record

	open bool

	// overflowed is set once capacity is exceeded mid-transaction.
	overflowed bool
	// firstUnfit is the position of the first record that did not fit
	// once overflowed became true.
	firstUnfit Position
}

// New creates a Buffer that holds at most capacity records in memory
// before switching to overflow tracking. A non-positive capacity means
// "buffer nothing" — every Add immediately overflows.
func New(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Open begins a new transaction. Calling Open while already open
// discards any previous (unflushed) state, matching "BEGIN implicitly
// closes a stray open transaction" tolerance; callers should normally
// ensure Commit/Rollback happened first.
func (b *Buffer) Open() {
	b.open = true
	b.records = b.records[:0]
	b.overflowed = false
}

// IsOpen reports whether a transaction is currently buffering.
func (b *Buffer) IsOpen() bool { return b.open }

// Add appends a record to the open transaction. If the buffer is at
// capacity, it switches into overflow mode and remembers pos as the
// first-unfit position instead of retaining the record.
func (b *Buffer) Add(rec *change.Record, pos Position) {
	if !b.overflowed && len(b.records) < b.capacity {
		b.records = append(b.records, rec)
		return
	}
	if !b.overflowed {
		b.overflowed = true
		b.firstUnfit = pos
	}
}

// Overflowed reports whether capacity was exceeded during the current
// transaction.
func (b *Buffer) Overflowed() bool { return b.overflowed }

// FirstUnfitPosition returns the position recorded when the buffer
// first overflowed. Only meaningful when Overflowed() is true.
func (b *Buffer) FirstUnfitPosition() Position { return b.firstUnfit }

// Commit drains the buffered records in insertion order and closes the
// transaction. Commit only returns what made it into memory: callers
// must check Overflowed() first, since draining an overflowed
// transaction would emit a strict subset of its records.
func (b *Buffer) Commit() []*change.Record {
	drained := b.records
	b.records = nil
	b.open = false
	b.overflowed = false
	return drained
}

// Rollback discards the buffered records without emitting them and
// closes the transaction.
func (b *Buffer) Rollback() {
	b.records = nil
	b.open = false
	b.overflowed = false
}

// Len reports how many records are currently held in memory.
func (b *Buffer) Len() int { return len(b.records) }
