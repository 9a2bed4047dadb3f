package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"midiclock/analyzer"
	"midiclock/midi"
	"midiclock/tui"
)

var flags struct {
	port    string
	rate    uint32
	newline bool
	useTUI  bool
}

var rootCmd = &cobra.Command{
	Use:   "mclkdump",
	Short: "Dump received MIDI beat clock and the implied tempo",
	Long: `mclkdump subscribes to a MIDI input port and prints received beat
clock ticks with the BPM implied by their spacing.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.port, "port", "p", "", "MIDI input port name (substring match)")
	f.Uint32Var(&flags.rate, "rate", 48000, "sample rate used to timestamp ticks")
	f.BoolVarP(&flags.newline, "newline", "n", false, "print a newline after each tick")
	f.BoolVar(&flags.useTUI, "tui", false, "show a live tempo monitor instead of raw lines")
}

func run(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	if flags.rate == 0 {
		return fmt.Errorf("sample rate must be positive")
	}

	defer gomidi.CloseDriver()
	in, err := midi.FindIn(flags.port)
	if err != nil {
		return err
	}

	rec := analyzer.NewRecorder(64)
	mon := analyzer.NewMonitor(rec, flags.rate, log)

	rate := uint64(flags.rate)
	stop, err := midi.Listen(in, func(msg byte, ms int32) {
		rec.Record(msg, uint64(ms)*rate/1000)
	})
	if err != nil {
		return err
	}
	defer stop()

	go mon.Run()
	defer mon.Close()

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("listening", zap.String("port", in.String()))

	if flags.useTUI {
		return runTUI(ctx, mon)
	}
	return runPlain(ctx, mon)
}

// runPlain prints one line per reading, rewriting the same terminal
// line unless --newline is given
func runPlain(ctx context.Context, mon *analyzer.Monitor) error {
	sep := byte('\r')
	if flags.newline {
		sep = '\n'
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case r, ok := <-mon.Readings():
			if !ok {
				return nil
			}
			if r.HasBPM {
				fmt.Printf("%.2f @ %d%c", r.BPM, r.Sample, sep)
			} else if r.Msg != midi.Clock {
				fmt.Printf("%s @ %d\n", midi.Name(r.Msg), r.Sample)
			}
		}
	}
}

func runTUI(ctx context.Context, mon *analyzer.Monitor) error {
	m := tui.NewModel(mon.Readings())
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
