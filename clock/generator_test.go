package clock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midiclock/midi"
	"midiclock/transport"
)

const testRate = 48000

func snap(state transport.State, frame uint64, bpm float64) transport.Snapshot {
	s := transport.Snapshot{
		State:      state,
		Frame:      frame,
		SampleRate: testRate,
	}
	if bpm > 0 {
		samplesPerBeat := testRate * 60.0 / bpm
		beats := float64(frame) / samplesPerBeat
		bar := int64(beats / 4)
		beat := int64(beats - float64(bar)*4)
		s.TempoBPM = bpm
		s.Bar = int32(bar) + 1
		s.Beat = int32(beat) + 1
		s.Tick = int32((beats - float64(bar)*4 - float64(beat)) * 1920)
		s.BeatsPerBar = 4
		s.TicksPerBeat = 1920
		s.HasBBT = true
	}
	return s
}

// timed is an emitted event at an absolute sample time
type timed struct {
	msg byte
	at  uint64
}

// runCycles feeds consecutive snapshots through the generator and
// collects every emitted event with its absolute sample time
func runCycles(g *Generator, snaps []transport.Snapshot, nframes uint32) []timed {
	var got []timed
	buf := midi.NewBuffer(int(nframes) + 4)
	for _, s := range snaps {
		buf.Reset()
		g.Process(s, nframes, buf)
		for _, ev := range buf.Events() {
			got = append(got, timed{msg: ev.Data[0], at: s.Frame + uint64(ev.Offset)})
		}
	}
	return got
}

func count(events []timed, msg byte) int {
	n := 0
	for _, e := range events {
		if e.msg == msg {
			n++
		}
	}
	return n
}

func clockTimes(events []timed) []uint64 {
	var at []uint64
	for _, e := range events {
		if e.msg == midi.Clock {
			at = append(at, e.at)
		}
	}
	return at
}

func TestStartFromFrameZero(t *testing.T) {
	// stopped, then rolling at 120 BPM for 10 cycles of 512 samples:
	// one Start, initial clock at 0, then ticks every 1000 samples
	g := New(Config{})
	snaps := []transport.Snapshot{snap(transport.Stopped, 0, 120)}
	for i := 0; i < 10; i++ {
		snaps = append(snaps, snap(transport.Rolling, uint64(i)*512, 120))
	}

	events := runCycles(g, snaps, 512)

	require.Equal(t, 1, count(events, midi.Start))
	assert.Equal(t, 0, count(events, midi.Continue))
	assert.Equal(t, midi.Start, events[0].msg)
	assert.Equal(t, uint64(0), events[0].at)

	ticks := clockTimes(events)
	require.NotEmpty(t, ticks)
	for i, at := range ticks {
		assert.Equal(t, uint64(i)*1000, at, "tick %d", i)
	}
	// 10 cycles x 512 samples = 5120 samples, ticks 0..5000
	assert.Len(t, ticks, 6)
}

func TestContinueWhenNotAtFrameZero(t *testing.T) {
	g := New(Config{})
	events := runCycles(g, []transport.Snapshot{
		snap(transport.Stopped, 24000, 120),
		snap(transport.Rolling, 24000, 120),
	}, 512)

	assert.Equal(t, 0, count(events, midi.Start))
	assert.Equal(t, 1, count(events, midi.Continue))
	assert.Equal(t, midi.Continue, events[0].msg)
}

func TestStopEmitsStopThenPosition(t *testing.T) {
	g := New(Config{})
	events := runCycles(g, []transport.Snapshot{
		snap(transport.Rolling, 0, 120),
		snap(transport.Stopped, 48000, 120),
	}, 512)

	require.Equal(t, 1, count(events, midi.Stop))
	// stop edge ordering: Stop first, song position second
	var tail []timed
	for i, e := range events {
		if e.msg == midi.Stop {
			tail = events[i:]
			break
		}
	}
	require.Len(t, tail, 2)
	assert.Equal(t, midi.SongPositionPointer, tail[1].msg)
}

func TestStateEdgeExactlyOnce(t *testing.T) {
	// arbitrarily fragmented observation of two start/stop rounds
	g := New(Config{})
	snaps := []transport.Snapshot{
		snap(transport.Stopped, 0, 120),
		snap(transport.Stopped, 0, 120),
		snap(transport.Rolling, 0, 120),
		snap(transport.Rolling, 512, 120),
		snap(transport.Rolling, 1024, 120),
		snap(transport.Stopped, 1536, 120),
		snap(transport.Stopped, 1536, 120),
		snap(transport.Rolling, 1536, 120),
		snap(transport.Rolling, 2048, 120),
		snap(transport.Stopped, 2560, 120),
	}
	events := runCycles(g, snaps, 512)

	assert.Equal(t, 1, count(events, midi.Start))
	assert.Equal(t, 1, count(events, midi.Continue))
	assert.Equal(t, 2, count(events, midi.Stop))
}

func TestStartingCoalescesIntoRolling(t *testing.T) {
	// Start goes out when entering Starting; the later edge into
	// Rolling only adds the initial clock tick
	g := New(Config{})

	buf := midi.NewBuffer(16)
	g.Process(snap(transport.Starting, 0, 120), 512, buf)
	require.Equal(t, 1, buf.Len())
	assert.Equal(t, midi.Start, buf.Events()[0].Data[0])

	buf.Reset()
	g.Process(snap(transport.Rolling, 0, 120), 512, buf)
	events := buf.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, midi.Clock, events[0].Data[0])
	for _, ev := range events {
		assert.NotEqual(t, midi.Start, ev.Data[0])
		assert.NotEqual(t, midi.Continue, ev.Data[0])
	}
}

func TestTickSpacingNoDrift(t *testing.T) {
	// 119.7 BPM gives a non-integer tick interval; over many cycles
	// every emitted tick must stay within half a sample of the ideal
	// arithmetic sequence
	const bpm = 119.7
	const cycles = 2000
	const nframes = 256
	interval := testRate * 60.0 / (bpm * 24.0)

	g := New(Config{NoTransport: true})
	snaps := make([]transport.Snapshot, 0, cycles)
	for i := 0; i < cycles; i++ {
		snaps = append(snaps, snap(transport.Rolling, uint64(i)*nframes, bpm))
	}
	ticks := clockTimes(runCycles(g, snaps, nframes))

	require.Greater(t, len(ticks), 400)
	for n, at := range ticks {
		ideal := float64(n) * interval
		assert.LessOrEqual(t, math.Abs(float64(at)-ideal), 0.5+1e-6,
			"tick %d at %d, ideal %f", n, at, ideal)
	}
}

func TestForcedTempoOverridesAuthority(t *testing.T) {
	// forced to 60 BPM while the transport reports 140: tick interval
	// must be 48000*60/(60*24) = 2000 samples
	g := New(Config{BPM: 60, ForceBPM: true, NoTransport: true})
	snaps := make([]transport.Snapshot, 0, 20)
	for i := 0; i < 20; i++ {
		snaps = append(snaps, snap(transport.Rolling, uint64(i)*512, 140))
	}
	ticks := clockTimes(runCycles(g, snaps, 512))

	require.Greater(t, len(ticks), 3)
	for i, at := range ticks {
		assert.Equal(t, uint64(i)*2000, at)
	}
}

func TestFallbackTempoWithoutAuthority(t *testing.T) {
	g := New(Config{BPM: 100, NoTransport: true})
	snaps := make([]transport.Snapshot, 0, 20)
	for i := 0; i < 20; i++ {
		snaps = append(snaps, snap(transport.Rolling, uint64(i)*512, 0))
	}
	ticks := clockTimes(runCycles(g, snaps, 512))

	require.Greater(t, len(ticks), 3)
	for i, at := range ticks {
		assert.Equal(t, uint64(i)*1200, at) // 48000*60/(100*24)
	}
}

func TestNoTempoNoFallbackIdles(t *testing.T) {
	g := New(Config{})
	snaps := []transport.Snapshot{
		snap(transport.Rolling, 0, 0),
		snap(transport.Rolling, 512, 0),
		snap(transport.Rolling, 1024, 0),
	}
	events := runCycles(g, snaps, 512)

	// the transition still announces itself, the scheduler stays idle
	assert.Equal(t, 1, count(events, midi.Start))
	assert.Equal(t, 1, count(events, midi.Clock)) // initial edge tick only
}

func TestSuppressionFlagsAreIndependent(t *testing.T) {
	// every combination of the four switches against the same scenario
	for mask := 0; mask < 16; mask++ {
		cfg := Config{
			NoTransport:       mask&1 != 0,
			NoClock:           mask&2 != 0,
			NoPosition:        mask&4 != 0,
			ClockWhileStopped: mask&8 != 0,
		}
		g := New(cfg)
		snaps := []transport.Snapshot{
			snap(transport.Stopped, 0, 120),
			snap(transport.Rolling, 0, 120),
			snap(transport.Rolling, 512, 120),
			snap(transport.Stopped, 1024, 120),
			snap(transport.Stopped, 1024, 120),
			snap(transport.Stopped, 1024, 120),
		}
		events := runCycles(g, snaps, 512)

		transportMsgs := count(events, midi.Start) + count(events, midi.Stop) +
			count(events, midi.Continue)
		if cfg.NoTransport {
			assert.Zero(t, transportMsgs, "mask %04b", mask)
		} else {
			assert.Equal(t, 2, transportMsgs, "mask %04b", mask)
		}

		clocks := count(events, midi.Clock)
		if cfg.NoClock {
			assert.Zero(t, clocks, "mask %04b", mask)
		} else {
			assert.NotZero(t, clocks, "mask %04b", mask)
		}

		positions := count(events, midi.SongPositionPointer)
		if cfg.NoPosition {
			assert.Zero(t, positions, "mask %04b", mask)
		} else {
			assert.NotZero(t, positions, "mask %04b", mask)
		}

	}
}

func TestClockWhileStopped(t *testing.T) {
	// with a cycle longer than the tick interval, enabling the switch
	// lets pending ticks go out after the stop edge; without it the
	// scheduler is gated entirely
	run := func(enabled bool) []timed {
		g := New(Config{NoTransport: true, NoPosition: true, ClockWhileStopped: enabled})
		return runCycles(g, []transport.Snapshot{
			snap(transport.Rolling, 0, 120),
			snap(transport.Stopped, 2048, 120),
			snap(transport.Stopped, 2048, 120),
		}, 2048)
	}

	var afterStop []uint64
	for _, e := range run(true) {
		if e.msg == midi.Clock && e.at > 2048 {
			afterStop = append(afterStop, e.at)
		}
	}
	// phase was reset to the stop frame, ticks resume from there
	assert.Equal(t, []uint64{3048, 4048}, afterStop)

	for _, e := range run(false) {
		if e.msg == midi.Clock {
			assert.LessOrEqual(t, e.at, uint64(2048))
		}
	}
}

func TestRelocateWhileStoppedSendsPosition(t *testing.T) {
	g := New(Config{})
	first := snap(transport.Stopped, 0, 120)

	buf := midi.NewBuffer(16)
	g.Process(first, 512, buf)
	assert.Zero(t, buf.Len(), "seeding the cache emits nothing")

	buf.Reset()
	g.Process(first, 512, buf)
	assert.Zero(t, buf.Len(), "unchanged position emits nothing")

	// relocate to bar 3 while stopped
	moved := snap(transport.Stopped, 96000, 120)
	buf.Reset()
	g.Process(moved, 512, buf)
	require.Equal(t, 1, buf.Len())
	ev := buf.Events()[0]
	require.Equal(t, midi.SongPositionPointer, ev.Data[0])

	wantCount, ok := midi.SongPositionCount(moved.Bar, moved.Beat, moved.Tick, 4, 1920)
	require.True(t, ok)
	assert.Equal(t, wantCount, midi.DecodeSongPosition(ev.Data[1], ev.Data[2]))

	buf.Reset()
	g.Process(moved, 512, buf)
	assert.Zero(t, buf.Len(), "cache refreshed after the update")
}

func TestDroppedEventsDoNotBendTiming(t *testing.T) {
	// a full sink during the first cycle must not shift later ticks
	g := New(Config{NoTransport: true})

	tiny := midi.NewBuffer(1)
	g.Process(snap(transport.Rolling, 0, 120), 4096, tiny)
	assert.NotZero(t, tiny.Dropped())

	snaps := make([]transport.Snapshot, 0, 10)
	for i := 0; i < 10; i++ {
		snaps = append(snaps, snap(transport.Rolling, 4096+uint64(i)*512, 120))
	}
	ticks := clockTimes(runCycles(g, snaps, 512))

	require.NotEmpty(t, ticks)
	for _, at := range ticks {
		assert.Zero(t, at%1000, "tick at %d off the 1000-sample grid", at)
	}
}

func TestElapsedTicksSkippedAfterTempoJump(t *testing.T) {
	// slow tempo, then a much faster one: ticks that fall before the
	// current frame advance the phase silently instead of bursting
	g := New(Config{NoTransport: true})
	g.Process(snap(transport.Rolling, 0, 30), 512, midi.NewBuffer(64))

	buf := midi.NewBuffer(64)
	g.Process(snap(transport.Rolling, 512, 480), 512, buf)
	for _, ev := range buf.Events() {
		assert.Less(t, ev.Offset, uint32(512))
	}
}

func TestShutdownStopsActing(t *testing.T) {
	g := New(Config{})
	g.Shutdown()

	buf := midi.NewBuffer(16)
	g.Process(snap(transport.Rolling, 0, 120), 512, buf)
	assert.Zero(t, buf.Len())
}
