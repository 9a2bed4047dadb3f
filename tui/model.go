package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"midiclock/analyzer"
	"midiclock/midi"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	bpmStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("84"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Model is the live tempo monitor for the dump tool
type Model struct {
	readings <-chan analyzer.Reading

	bpm      float64
	haveBPM  bool
	last     string // last transport message seen
	ticks    uint64
	sample   uint64
	quitting bool
}

type readingMsg analyzer.Reading

type closedMsg struct{}

// NewModel creates a monitor view fed by the analyzer's reading channel
func NewModel(readings <-chan analyzer.Reading) Model {
	return Model{readings: readings, last: "waiting"}
}

func listenForReadings(readings <-chan analyzer.Reading) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-readings
		if !ok {
			return closedMsg{}
		}
		return readingMsg(r)
	}
}

func (m Model) Init() tea.Cmd {
	return listenForReadings(m.readings)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case readingMsg:
		m.sample = msg.Sample
		if msg.HasBPM {
			m.bpm = msg.BPM
			m.haveBPM = true
			m.ticks++
		} else {
			m.last = midi.Name(msg.Msg)
		}
		return m, listenForReadings(m.readings)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	bpm := "--"
	if m.haveBPM {
		bpm = fmt.Sprintf("%.2f", m.bpm)
	}

	rows := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("mclk dump"),
		"",
		labelStyle.Render("tempo")+bpmStyle.Render(bpm+" BPM"),
		labelStyle.Render("transport")+valueStyle.Render(m.last),
		labelStyle.Render("ticks")+valueStyle.Render(fmt.Sprintf("%d", m.ticks)),
		labelStyle.Render("sample")+valueStyle.Render(fmt.Sprintf("%d", m.sample)),
		"",
		helpStyle.Render("q to quit"),
	)
	return rows + "\n"
}
