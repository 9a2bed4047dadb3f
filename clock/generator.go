// Package clock generates a MIDI beat clock from transport snapshots.
//
// The generator runs entirely inside the host's real-time callback: one
// Process call per fixed-size cycle, no allocation, no locking, work
// bounded by the number of ticks that fit in a cycle. It follows the
// transport, it never acts as a tempo or position authority itself.
package clock

import (
	"math"
	"sync/atomic"

	"midiclock/midi"
	"midiclock/transport"
)

// Config holds the message filter switches and the tempo fallback
type Config struct {
	BPM      float64 // fallback tempo when the transport carries none
	ForceBPM bool    // use BPM even when the transport carries a tempo

	NoTransport       bool // suppress start/stop/continue
	NoClock           bool // suppress clock ticks
	NoPosition        bool // suppress song position messages
	ClockWhileStopped bool // keep sending clock ticks while not rolling
}

// bbtPos caches the last seen bar/beat/tick, used to detect relocation
// while the transport is stopped
type bbtPos struct {
	bar, beat, tick int32
	valid           bool
}

// Generator turns per-cycle transport snapshots into timed protocol events
type Generator struct {
	cfg Config

	prevState transport.State
	lastTick  float64 // absolute fractional sample time of the last scheduled clock edge
	lastPos   bbtPos

	down atomic.Bool
}

// New creates a generator in the Stopped state
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Shutdown makes every subsequent Process call return immediately.
// The host may keep invoking the callback; it simply stops acting.
func (g *Generator) Shutdown() {
	g.down.Store(true)
}

// Process runs one cycle: it compares the snapshot against the stored
// transport state, emits transition and song position messages, and
// schedules the clock ticks falling inside this cycle into out.
//
// Events are written in ascending offset order. Offset-0 ordering is
// transition message, song position, then the initial clock tick.
func (g *Generator) Process(snap transport.Snapshot, nframes uint32, out *midi.Buffer) {
	if g.down.Load() {
		return
	}

	// position updates while stopped and located
	if snap.State == transport.Stopped && g.prevState == transport.Stopped {
		if g.posChanged(snap) {
			g.sendPosition(snap, out)
		}
	}
	g.rememberPos(snap)

	if snap.State != g.prevState {
		switch snap.State {
		case transport.Stopped:
			if !g.cfg.NoTransport {
				out.Write(midi.RT(0, midi.Stop))
			}
			g.sendPosition(snap, out)

		case transport.Rolling, transport.Starting:
			// Starting->Rolling already announced itself when it
			// entered Starting; only a fresh start gets a message.
			if g.prevState != transport.Starting {
				msg := midi.Continue
				if snap.Frame == 0 {
					msg = midi.Start
				}
				if !g.cfg.NoTransport {
					out.Write(midi.RT(0, msg))
				}
			}
		}

		// initial beat tick
		if snap.State == transport.Rolling && !g.cfg.NoClock {
			out.Write(midi.RT(0, midi.Clock))
		}

		g.lastTick = float64(snap.Frame)
		g.prevState = snap.State
	}

	if snap.State != transport.Rolling && !g.cfg.ClockWhileStopped {
		return
	}
	if g.cfg.NoClock {
		return
	}

	samplesPerBeat, bbtOffset, ok := g.tempo(snap)
	if !ok {
		// no tempo authority and no fallback: idle this cycle
		return
	}

	// quarter notes per beat is taken as 1 regardless of meter,
	// which holds for 2/4, 3/4, 4/4 and friends
	const quarterNotesPerBeat = 1.0
	samplesPerQuarterNote := samplesPerBeat / quarterNotesPerBeat
	clockTickInterval := samplesPerQuarterNote / 24.0
	if clockTickInterval < 1.0 {
		return
	}

	// Schedule the ticks that land in this cycle. The tick phase is a
	// running real number carried across cycles, so rounding to sample
	// offsets never accumulates drift. Ticks whose offset is already in
	// the past (possible after a tempo jump) advance the phase without
	// being emitted; a full sink also advances the phase, a dropped
	// byte must not bend subsequent timing.
	for {
		nextTick := g.lastTick + clockTickInterval
		offset := int64(math.Round(nextTick)) - int64(snap.Frame) - bbtOffset
		if offset >= int64(nframes) {
			break
		}
		if offset >= 0 {
			out.Write(midi.RT(uint32(offset), midi.Clock))
		}
		g.lastTick = nextTick
	}
}

// tempo selects the tempo source for this cycle, in order: forced
// override, transport tempo, configured fallback.
func (g *Generator) tempo(snap transport.Snapshot) (samplesPerBeat float64, bbtOffset int64, ok bool) {
	switch {
	case g.cfg.ForceBPM && g.cfg.BPM > 0:
		samplesPerBeat = float64(snap.SampleRate) * 60.0 / g.cfg.BPM
	case snap.HasBBT && snap.TempoBPM > 0:
		samplesPerBeat = float64(snap.SampleRate) * 60.0 / snap.TempoBPM
		if snap.HasBBTOffset {
			bbtOffset = snap.BBTOffset
		}
	case g.cfg.BPM > 0:
		samplesPerBeat = float64(snap.SampleRate) * 60.0 / g.cfg.BPM
	default:
		return 0, 0, false
	}
	return samplesPerBeat, bbtOffset, true
}

func (g *Generator) posChanged(snap transport.Snapshot) bool {
	if !g.lastPos.valid || !snap.HasBBT {
		return false
	}
	return g.lastPos.bar != snap.Bar ||
		g.lastPos.beat != snap.Beat ||
		g.lastPos.tick != snap.Tick
}

func (g *Generator) rememberPos(snap transport.Snapshot) {
	if !snap.HasBBT {
		return
	}
	g.lastPos = bbtPos{bar: snap.Bar, beat: snap.Beat, tick: snap.Tick, valid: true}
}

func (g *Generator) sendPosition(snap transport.Snapshot, out *midi.Buffer) {
	if g.cfg.NoPosition || !snap.HasBBT {
		return
	}
	count, ok := midi.SongPositionCount(snap.Bar, snap.Beat, snap.Tick,
		snap.BeatsPerBar, snap.TicksPerBeat)
	if !ok {
		// not representable in 14 bits, omit for this cycle
		return
	}
	out.Write(midi.SongPosition(0, count))
}
