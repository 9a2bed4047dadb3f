// Package analyzer listens to an incoming beat clock stream and reports
// the tempo implied by the spacing between ticks.
//
// It is split across the real-time boundary: a Recorder timestamps
// incoming bytes inside the audio callback and never blocks, a Monitor
// drains them on a regular goroutine and may block freely.
package analyzer

import "sync/atomic"

// Tick is a timestamped realtime message byte
type Tick struct {
	Msg    byte
	Sample uint64 // absolute sample time of arrival
}

// Ring is a bounded single-producer single-consumer queue of ticks.
// Push and Pop are wait-free: the producer drops on full instead of
// blocking and the consumer returns false on empty instead of waiting.
type Ring struct {
	buf     []Tick
	mask    uint64
	head    atomic.Uint64 // next slot to read, owned by the consumer
	tail    atomic.Uint64 // next slot to write, owned by the producer
	dropped atomic.Uint64
}

// NewRing creates a ring holding at least capacity ticks
// (rounded up to a power of two)
func NewRing(capacity int) *Ring {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return &Ring{buf: make([]Tick, n), mask: uint64(n - 1)}
}

// Push appends a tick, dropping it when the ring is full
func (r *Ring) Push(t Tick) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[tail&r.mask] = t
	r.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest tick, returning false when the ring is empty
func (r *Ring) Pop() (Tick, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Tick{}, false
	}
	t := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return t, true
}

// Len returns the number of ticks currently queued
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Dropped returns the total number of ticks dropped on full
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}
