package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CycleFunc is invoked once per cycle with a fresh snapshot
type CycleFunc func(snap Snapshot, nframes uint32)

// Local is a self-clocking software transport for standalone use, when
// no host audio transport is available. It pumps fixed-size cycles from
// a wall-clock ticker, advances the frame counter while rolling and
// derives the bar/beat/tick position from tempo and meter.
//
// Play, Stop, Locate and SetTempo are safe to call from other
// goroutines; the per-cycle callback always sees a consistent snapshot.
type Local struct {
	rate         uint32
	cycle        uint32
	beatsPerBar  float64
	ticksPerBeat float64
	log          *zap.Logger

	mu    sync.Mutex
	state State
	frame uint64
	bpm   float64
}

// NewLocal creates a stopped transport at frame 0
func NewLocal(rate, cycle uint32, bpm, beatsPerBar, ticksPerBeat float64, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{
		rate:         rate,
		cycle:        cycle,
		beatsPerBar:  beatsPerBar,
		ticksPerBeat: ticksPerBeat,
		bpm:          bpm,
		log:          log,
	}
}

// Play requests the transport to roll. It passes through Starting for
// one cycle before Rolling, like a host transport syncing clients.
func (t *Local) Play() {
	t.mu.Lock()
	if t.state == Stopped {
		t.state = Starting
	}
	t.mu.Unlock()
}

// Stop halts the transport, keeping the current position
func (t *Local) Stop() {
	t.mu.Lock()
	t.state = Stopped
	t.mu.Unlock()
}

// Locate moves the playhead to an absolute sample position
func (t *Local) Locate(frame uint64) {
	t.mu.Lock()
	t.frame = frame
	t.mu.Unlock()
}

// SetTempo changes the tempo; it takes effect on the next cycle
func (t *Local) SetTempo(bpm float64) {
	t.mu.Lock()
	if bpm > 0 {
		t.bpm = bpm
	}
	t.mu.Unlock()
}

// Query returns the current snapshot without advancing the transport
func (t *Local) Query() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Cycle returns the snapshot for the cycle that is about to run, then
// advances the transport: the frame moves by one cycle while rolling
// and Starting settles into Rolling.
func (t *Local) Cycle() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snapshot()
	if t.state == Rolling {
		t.frame += uint64(t.cycle)
	} else if t.state == Starting {
		t.state = Rolling
	}
	return snap
}

// Run pumps cycles at wall-clock rate until the context is cancelled
func (t *Local) Run(ctx context.Context, fn CycleFunc) {
	period := time.Duration(float64(t.cycle) / float64(t.rate) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	t.log.Info("transport running",
		zap.Uint32("rate", t.rate),
		zap.Uint32("cycle", t.cycle),
		zap.Duration("period", period))

	for {
		select {
		case <-ctx.Done():
			t.log.Info("transport shut down")
			return
		case <-ticker.C:
			fn(t.Cycle(), t.cycle)
		}
	}
}

// snapshot builds the current view; caller holds the lock
func (t *Local) snapshot() Snapshot {
	snap := Snapshot{
		State:      t.state,
		Frame:      t.frame,
		SampleRate: t.rate,
	}
	if t.bpm <= 0 {
		return snap
	}

	samplesPerBeat := float64(t.rate) * 60.0 / t.bpm
	beats := float64(t.frame) / samplesPerBeat
	bar := int64(beats / t.beatsPerBar)
	beatInBar := beats - float64(bar)*t.beatsPerBar
	beat := int64(beatInBar)

	snap.TempoBPM = t.bpm
	snap.Bar = int32(bar) + 1
	snap.Beat = int32(beat) + 1
	snap.Tick = int32((beatInBar - float64(beat)) * t.ticksPerBeat)
	snap.BeatsPerBar = t.beatsPerBar
	snap.TicksPerBeat = t.ticksPerBeat
	snap.HasBBT = true
	return snap
}
