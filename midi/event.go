package midi

import "math"

// MIDI System Real-Time message bytes
// https://en.wikipedia.org/wiki/MIDI_beat_clock
const (
	Clock    byte = 0xF8
	Start    byte = 0xFA
	Continue byte = 0xFB
	Stop     byte = 0xFC

	// SongPositionPointer is followed by two 7-bit data bytes (LSB, MSB)
	// holding a 14-bit count of MIDI beats since the start of the song.
	SongPositionPointer byte = 0xF2
)

// Event is a protocol message scheduled at a sample offset within one cycle
type Event struct {
	Offset uint32 // sample offset within the cycle, 0 <= Offset < cycle size
	Data   [3]byte
	N      uint8 // number of valid bytes in Data
}

// RT builds a single-byte System Real-Time event
func RT(offset uint32, msg byte) Event {
	return Event{Offset: offset, Data: [3]byte{msg}, N: 1}
}

// SongPosition builds a Song Position Pointer event for a 14-bit beat count.
// The count must already be in [0, 16384); see SongPositionCount.
func SongPosition(offset uint32, count int) Event {
	return Event{
		Offset: offset,
		Data:   [3]byte{SongPositionPointer, byte(count) & 0x7F, byte(count>>7) & 0x7F},
		N:      3,
	}
}

// Bytes returns the wire form of the event
func (e Event) Bytes() []byte {
	return e.Data[:e.N]
}

// SongPositionCount converts a bar/beat/tick position into the 14-bit
// MIDI beat count carried by a Song Position Pointer message.
//
// MIDI Beat Clock sends 24 clocks per quarter note and one MIDI beat is
// six clocks, so there are 4 MIDI beats per quarter-note beat. Bars and
// beats count from 1. Positions outside [0, 16384) are not representable
// on the wire; ok is false and no message should be sent.
func SongPositionCount(bar, beat, tick int32, beatsPerBar, ticksPerBeat float64) (int, bool) {
	count := int(4.0*(float64(bar-1)*beatsPerBar+float64(beat-1)) +
		math.Floor(4.0*float64(tick)/ticksPerBeat))
	if count < 0 || count >= 16384 {
		return 0, false
	}
	return count, true
}

// DecodeSongPosition reassembles the 14-bit beat count from the two
// 7-bit data bytes of a Song Position Pointer message
func DecodeSongPosition(lsb, msb byte) int {
	return int(lsb&0x7F) | int(msb&0x7F)<<7
}

// Name returns a short human-readable name for a realtime message byte
func Name(msg byte) string {
	switch msg {
	case Clock:
		return "clock"
	case Start:
		return "start"
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case SongPositionPointer:
		return "song position"
	}
	return "unknown"
}
