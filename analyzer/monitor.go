package analyzer

import (
	"sync"

	"go.uber.org/zap"

	"midiclock/midi"
)

// Reading is one analyzer report. Clock ticks with a known predecessor
// carry a tempo; transport messages carry only the message byte.
type Reading struct {
	Msg    byte
	Sample uint64
	BPM    float64
	HasBPM bool
}

// Monitor is the non-real-time consumer. It drains the recorder's queue
// in arrival order, derives the tempo between consecutive clock ticks
// and publishes readings on a channel. It blocks with no timeout when
// the queue is empty, woken by the recorder or by Close.
type Monitor struct {
	rec  *Recorder
	rate uint32
	log  *zap.Logger

	out  chan Reading
	done chan struct{}
	once sync.Once
}

// NewMonitor creates a monitor for ticks recorded at the given sample rate
func NewMonitor(rec *Recorder, rate uint32, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		rec:  rec,
		rate: rate,
		log:  log,
		out:  make(chan Reading, 64),
		done: make(chan struct{}),
	}
}

// Readings returns the report channel; it is closed when Run exits
func (m *Monitor) Readings() <-chan Reading {
	return m.out
}

// Close wakes the monitor out of its wait and terminates Run
func (m *Monitor) Close() {
	m.once.Do(func() { close(m.done) })
}

// Run consumes until Close is called. Call it from its own goroutine.
func (m *Monitor) Run() {
	defer close(m.out)

	var prev Tick
	havePrev := false
	warnedDrop := false

	for {
		for {
			t, ok := m.rec.ring.Pop()
			if !ok {
				break
			}
			switch t.Msg {
			case midi.Clock:
				if havePrev {
					samplesPerQuarterNote := float64(t.Sample-prev.Sample) * 24.0
					if !m.emit(Reading{
						Msg:    t.Msg,
						Sample: t.Sample,
						BPM:    float64(m.rate) * 60.0 / samplesPerQuarterNote,
						HasBPM: true,
					}) {
						return
					}
				}
				prev = t
				havePrev = true
			case midi.Start, midi.Continue, midi.Stop:
				// the tempo reference does not span transport changes
				havePrev = false
				if !m.emit(Reading{Msg: t.Msg, Sample: t.Sample}) {
					return
				}
			}
		}

		if d := m.rec.ring.Dropped(); d > 0 && !warnedDrop {
			m.log.Warn("clock queue overflowed, ticks dropped",
				zap.Uint64("dropped", d))
			warnedDrop = true
		}

		select {
		case <-m.done:
			return
		case <-m.rec.signal:
		}
	}
}

// emit publishes a reading, giving up when the monitor is closed
func (m *Monitor) emit(r Reading) bool {
	select {
	case m.out <- r:
		return true
	case <-m.done:
		return false
	}
}
