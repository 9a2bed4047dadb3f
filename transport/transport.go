package transport

// State is the transport play state
type State int

const (
	Stopped State = iota
	Starting
	Rolling
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Rolling:
		return "rolling"
	}
	return "unknown"
}

// Snapshot is one per-cycle view of the transport. It is a plain value:
// the host fills it in fresh each cycle and the engines only read it.
type Snapshot struct {
	State      State
	Frame      uint64 // absolute sample position at the start of the cycle
	SampleRate uint32

	// Tempo and musical position, valid only when HasBBT is set
	// (a tempo/position authority is attached).
	TempoBPM     float64
	Bar          int32 // counts from 1
	Beat         int32 // counts from 1
	Tick         int32
	BeatsPerBar  float64
	TicksPerBeat float64
	HasBBT       bool

	// Optional sample offset correction for the BBT position,
	// valid only when HasBBTOffset is set.
	BBTOffset    int64
	HasBBTOffset bool
}

// Source supplies one read-only snapshot per cycle
type Source interface {
	Query() Snapshot
}
