package analyzer

import "midiclock/midi"

// Recorder is the real-time producer side of the analyzer. It stamps
// incoming realtime bytes with absolute sample times, queues them and
// wakes the consumer with a best-effort signal: the send on the size-1
// channel is skipped when a wakeup is already pending, so the real-time
// deadline is never spent waiting on the consumer.
type Recorder struct {
	ring   *Ring
	signal chan struct{}
}

// NewRecorder creates a recorder with a bounded queue of the given capacity
func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		ring:   NewRing(capacity),
		signal: make(chan struct{}, 1),
	}
}

// Record queues one realtime byte with its absolute sample timestamp.
// Bytes other than clock/start/continue/stop are ignored.
func (r *Recorder) Record(msg byte, sample uint64) {
	switch msg {
	case midi.Clock, midi.Start, midi.Continue, midi.Stop:
	default:
		return
	}
	r.ring.Push(Tick{Msg: msg, Sample: sample})
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Feed records every single-byte realtime event of one cycle, stamping
// each with cycleStart plus its intra-cycle offset
func (r *Recorder) Feed(events []midi.Event, cycleStart uint64) {
	for _, ev := range events {
		if ev.N != 1 {
			continue
		}
		r.Record(ev.Data[0], cycleStart+uint64(ev.Offset))
	}
}
