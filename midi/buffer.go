package midi

// Buffer is a pre-allocated per-cycle event sink.
//
// The generator writes events into it from the real-time callback, so
// Write never allocates: once the fixed capacity is reached further
// events are dropped and counted. The host drains Events() after each
// cycle and calls Reset before the next one.
type Buffer struct {
	events  []Event
	dropped uint64
}

// NewBuffer creates a buffer holding at most capacity events per cycle
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{events: make([]Event, 0, capacity)}
}

// Write appends an event. Returns false if the buffer is full; the
// event is dropped and counted, never blocked on.
func (b *Buffer) Write(ev Event) bool {
	if len(b.events) == cap(b.events) {
		b.dropped++
		return false
	}
	b.events = append(b.events, ev)
	return true
}

// Events returns the events written since the last Reset, in insertion order
func (b *Buffer) Events() []Event {
	return b.events
}

// Len returns the number of pending events
func (b *Buffer) Len() int {
	return len(b.events)
}

// Dropped returns the total number of events dropped since creation
func (b *Buffer) Dropped() uint64 {
	return b.dropped
}

// Reset clears the buffer for the next cycle, keeping its capacity
func (b *Buffer) Reset() {
	b.events = b.events[:0]
}
