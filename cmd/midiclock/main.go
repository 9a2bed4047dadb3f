package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"midiclock/clock"
	"midiclock/config"
	"midiclock/midi"
	"midiclock/transport"
)

var flags struct {
	bpm               float64
	forceBPM          bool
	noTransport       bool
	noClock           bool
	noPosition        bool
	clockWhileStopped bool
	rate              uint32
	cycle             uint32
	port              string
	start             bool
}

var rootCmd = &cobra.Command{
	Use:   "midiclock",
	Short: "Generate MIDI beat clock from a transport",
	Long: `midiclock sends MIDI beat clock (0xF8) plus start, continue and stop
messages whenever the transport changes state. Without a host transport
it pumps its own cycles at the configured sample rate and tempo.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.Float64VarP(&flags.bpm, "bpm", "b", 120, "default BPM if no tempo authority is available")
	f.BoolVarP(&flags.forceBPM, "force-bpm", "B", false, "ignore the transport tempo and use --bpm")
	f.BoolVarP(&flags.noTransport, "no-transport", "T", false, "do not send start/stop/continue messages")
	f.BoolVar(&flags.noClock, "no-clock", false, "do not send clock tick messages")
	f.BoolVarP(&flags.noPosition, "no-position", "P", false, "do not send song-position (0xF2) messages")
	f.BoolVar(&flags.clockWhileStopped, "clock-while-stopped", false, "keep sending clock ticks while stopped")
	f.Uint32Var(&flags.rate, "rate", 48000, "sample rate of the internal transport")
	f.Uint32Var(&flags.cycle, "cycle", 512, "cycle size in samples")
	f.StringVarP(&flags.port, "port", "p", "", "MIDI output port name (substring match)")
	f.BoolVar(&flags.start, "start", true, "start the transport rolling immediately")
}

func run(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	defer gomidi.CloseDriver()
	out, err := midi.FindOut(cfg.Port)
	if err != nil {
		return err
	}
	send, err := midi.Sender(out)
	if err != nil {
		return err
	}

	gen := clock.New(clock.Config{
		BPM:               cfg.BPM,
		ForceBPM:          cfg.ForceBPM,
		NoTransport:       cfg.NoTransport,
		NoClock:           cfg.NoClock,
		NoPosition:        cfg.NoPosition,
		ClockWhileStopped: cfg.ClockWhileStopped,
	})
	pump := transport.NewLocal(cfg.SampleRate, cfg.CycleSize,
		cfg.BPM, cfg.BeatsPerBar, cfg.TicksPerBeat, log)

	// worst case one tick per sample, plus the transition messages
	buf := midi.NewBuffer(int(cfg.CycleSize) + 4)

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if flags.start {
		pump.Play()
	}

	log.Info("sending beat clock",
		zap.String("port", out.String()),
		zap.Float64("bpm", cfg.BPM),
		zap.Bool("forceBPM", cfg.ForceBPM))

	pump.Run(ctx, func(snap transport.Snapshot, nframes uint32) {
		buf.Reset()
		gen.Process(snap, nframes, buf)
		for _, ev := range buf.Events() {
			// a failed send drops that one event, timing state
			// has already advanced
			send(ev)
		}
	})

	gen.Shutdown()
	log.Info("bye")
	return nil
}

// applyFlags overrides loaded config values with flags given on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("bpm") {
		cfg.BPM = flags.bpm
	}
	if f.Changed("force-bpm") {
		cfg.ForceBPM = flags.forceBPM
	}
	if f.Changed("no-transport") {
		cfg.NoTransport = flags.noTransport
	}
	if f.Changed("no-clock") {
		cfg.NoClock = flags.noClock
	}
	if f.Changed("no-position") {
		cfg.NoPosition = flags.noPosition
	}
	if f.Changed("clock-while-stopped") {
		cfg.ClockWhileStopped = flags.clockWhileStopped
	}
	if f.Changed("rate") {
		cfg.SampleRate = flags.rate
	}
	if f.Changed("cycle") {
		cfg.CycleSize = flags.cycle
	}
	if f.Changed("port") {
		cfg.Port = flags.port
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
