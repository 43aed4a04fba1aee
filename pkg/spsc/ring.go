// Package spsc implements a lock-free single-producer single-consumer
// ring buffer.
//
// A Ring is safe for exactly one goroutine calling TryPush and exactly one
// goroutine calling TryPop, concurrently. It performs no runtime check of
// caller identity; the SPSC discipline is a precondition the caller must
// uphold. Neither operation blocks, takes a lock, or allocates.
package spsc

import (
	"fmt"
	"sync/atomic"
)

// Ring is a fixed-capacity circular buffer with monotonically increasing
// write/read counters. The write counter is owned by the producer, the read
// counter by the consumer; each side publishes its counter with an atomic
// store and observes the other side's with an atomic load, which gives the
// release/acquire edge that orders "slot written" before "slot read" and
// "slot read" before "slot reused". Counters wrap via unsigned overflow;
// write-read is always in [0, capacity].
type Ring[T any] struct {
	buf  []T
	mask uint64

	// Padding keeps the producer- and consumer-owned counters on separate
	// cache lines.
	_pad0 [56]byte //nolint:unused

	write atomic.Uint64

	_pad1 [56]byte //nolint:unused

	read atomic.Uint64
}

// New creates a Ring with the given capacity. The capacity must be a
// positive power of two so that slot addressing can use index masking.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("spsc: capacity %d is not a power of two", capacity)
	}

	return &Ring[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity) - 1,
	}, nil
}

// TryPush offers v to the ring. It returns false, leaving the ring
// unchanged, when the ring is full; the caller keeps v and decides what to
// do with it. A full ring is an expected backpressure outcome, not an error.
//
// Only the producer goroutine may call TryPush.
func (r *Ring[T]) TryPush(v T) bool {
	write := r.write.Load()
	read := r.read.Load()

	if write-read > r.mask {
		return false
	}

	r.buf[write&r.mask] = v
	r.write.Store(write + 1)
	return true
}

// TryPop removes and returns the oldest item. It returns false when the
// ring is empty. The popped slot is cleared so the ring holds no reference
// to the item once ownership has transferred to the caller.
//
// Only the consumer goroutine may call TryPop.
func (r *Ring[T]) TryPop() (T, bool) {
	read := r.read.Load()
	write := r.write.Load()

	var zero T
	if read == write {
		return zero, false
	}

	idx := read & r.mask
	v := r.buf[idx]
	r.buf[idx] = zero
	r.read.Store(read + 1)
	return v, true
}

// Len reports the current occupancy. The value is a snapshot and may be
// stale by the time the caller looks at it.
func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
