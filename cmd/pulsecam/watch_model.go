package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jpalmerr/pulsecam"
)

const statsInterval = 500 * time.Millisecond

var (
	colorBlue  = lipgloss.Color("12")
	colorGreen = lipgloss.Color("10")
	colorRed   = lipgloss.Color("9")
	colorGray  = lipgloss.Color("8")

	titleStyle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorGray)
	keyStyle   = lipgloss.NewStyle().Foreground(colorGray)
	valueStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle  = lipgloss.NewStyle().Foreground(colorRed)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)
)

// monitor is the part of *pulsecam.Monitor the watch view drives.
type monitor interface {
	SetVisible(visible bool) bool
	Stats() pulsecam.Stats
}

type watchKeys struct {
	Quit key.Binding
	Hold key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Hold: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "hold status polling"),
		),
	}
}

type snapshotMsg struct{ snap pulsecam.Snapshot }

type frameMsg struct{ frame pulsecam.Frame }

type statsTickMsg time.Time

// watchModel shows the latest status table and snapshot details of one
// device. Status polling follows terminal focus: it runs while the terminal
// is focused and the user is not holding it.
type watchModel struct {
	mon    monitor
	device pulsecam.Device
	keys   watchKeys
	now    func() time.Time

	snap  *pulsecam.Snapshot
	frame *pulsecam.Frame
	stats pulsecam.Stats

	focused bool
	held    bool
	width   int
}

func newWatchModel(mon monitor, device pulsecam.Device) *watchModel {
	return &watchModel{
		mon:     mon,
		device:  device,
		keys:    defaultWatchKeys(),
		now:     time.Now,
		focused: true,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return statsTick()
}

func statsTick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Hold):
			m.held = !m.held
			return m, m.applyVisibility()
		}

	case tea.FocusMsg:
		m.focused = true
		return m, m.applyVisibility()

	case tea.BlurMsg:
		m.focused = false
		return m, m.applyVisibility()

	case snapshotMsg:
		// callbacks are delivered from separate goroutines and may arrive
		// out of order
		if m.snap == nil || msg.snap.Generation > m.snap.Generation {
			snap := msg.snap
			m.snap = &snap
		}

	case frameMsg:
		if m.frame == nil || msg.frame.FetchedAt.After(m.frame.FetchedAt) {
			frame := msg.frame
			m.frame = &frame
		}

	case statsTickMsg:
		m.stats = m.mon.Stats()
		return m, statsTick()
	}

	return m, nil
}

// applyVisibility reports the wanted state to the monitor off the update
// loop; SetVisible takes the status loop's lock.
func (m *watchModel) applyVisibility() tea.Cmd {
	visible := m.focused && !m.held
	mon := m.mon
	return func() tea.Msg {
		mon.SetVisible(visible)
		return nil
	}
}

func (m *watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.device.Name()))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.device.URL()))
	b.WriteString("\n\n")

	b.WriteString(boxStyle.Render(m.renderFields()))
	b.WriteString("\n")
	b.WriteString(m.renderFrame())
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(m.renderHelp()))
	b.WriteString("\n")

	return b.String()
}

func (m *watchModel) renderFields() string {
	if m.snap == nil {
		return dimStyle.Render("waiting for the first status...")
	}
	if len(m.snap.Fields) == 0 {
		return dimStyle.Render("(empty table)")
	}

	width := 0
	for _, f := range m.snap.Fields {
		width = max(width, lipgloss.Width(f.Key))
	}

	rows := make([]string, 0, len(m.snap.Fields)+1)
	for _, f := range m.snap.Fields {
		rows = append(rows, keyStyle.Width(width).Render(f.Key)+"  "+valueStyle.Render(f.Value))
	}
	rows = append(rows, dimStyle.Render(fmt.Sprintf("updated %s ago in %s",
		m.since(m.snap.FetchedAt), m.snap.Latency.Round(time.Millisecond))))
	return strings.Join(rows, "\n")
}

func (m *watchModel) renderFrame() string {
	if m.frame == nil {
		return dimStyle.Render("snapshot  none yet")
	}
	return fmt.Sprintf("%s  %s %dx%d  %s  %s ago",
		dimStyle.Render("snapshot"),
		m.frame.Format,
		m.frame.Width, m.frame.Height,
		formatBytes(len(m.frame.Body)),
		m.since(m.frame.FetchedAt),
	)
}

func (m *watchModel) renderStats() string {
	st := m.stats

	state := okStyle.Render("polling")
	if !st.Polling {
		state = dimStyle.Render("paused")
	}
	failures := okStyle.Render("0 failures")
	if st.Failures > 0 {
		failures = failStyle.Render(fmt.Sprintf("%d failures", st.Failures))
	}

	return fmt.Sprintf("%s  gen %d  %s  next %s  image every %s",
		state,
		st.Generation,
		failures,
		st.NextDelay.Round(time.Millisecond),
		st.ImageInterval.Round(time.Millisecond),
	)
}

func (m *watchModel) renderHelp() string {
	help := []string{
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc,
		m.keys.Hold.Help().Key + " " + m.keys.Hold.Help().Desc,
	}
	if m.held {
		help = append(help, "(held)")
	} else if !m.focused {
		help = append(help, "(unfocused)")
	}
	return strings.Join(help, "  ")
}

func (m *watchModel) since(t time.Time) time.Duration {
	return m.now().Sub(t).Round(time.Second)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
