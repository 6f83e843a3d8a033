// Package tui is the terminal shell for the stopwatch: it polls state for the
// display, maps keys to stopwatch operations and shows beep and wake-lock
// notices from the event bus.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/display"
	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/stopwatch"
)

// DefaultRefresh is how often the display re-reads the stopwatch.
const DefaultRefresh = 50 * time.Millisecond

// Controller is the stopwatch surface the terminal UI drives.
type Controller interface {
	Start()
	Stop()
	Reset()
	SetInterval(d time.Duration)
	Snapshot() stopwatch.Snapshot
}

var (
	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5f87af"))

	flashStyle = clockStyle.
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#ffd700")).
			BorderForeground(lipgloss.Color("#ffd700"))

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5faf5f"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#bcbcbc"))
)

type Model struct {
	sw         Controller
	feed       *EventFeed
	snap       stopwatch.Snapshot
	refresh    time.Duration
	onInterval func(time.Duration) error

	beeps       int
	wakeLockErr string
	notice      string

	keys     keyMap
	help     help.Model
	width    int
	quitting bool
}

type tickMsg struct{}

// Option configures a Model.
type Option func(*Model)

// WithEventFeed shows beeps and wake-lock failures delivered by feed.
func WithEventFeed(feed *EventFeed) Option {
	return func(m *Model) { m.feed = feed }
}

// WithRefresh sets the display refresh period.
func WithRefresh(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// WithIntervalSaver is called after every interval change made from the keyboard.
func WithIntervalSaver(save func(time.Duration) error) Option {
	return func(m *Model) { m.onInterval = save }
}

func NewModel(sw Controller, opts ...Option) Model {
	m := Model{
		sw:      sw,
		refresh: DefaultRefresh,
		keys:    defaultKeyMap(),
		help:    help.New(),
		width:   80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.snap = sw.Snapshot()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tickCmd()}
	if m.feed != nil {
		cmds = append(cmds, m.feed.Wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tickMsg:
		m.snap = m.sw.Snapshot()
		return m, m.tickCmd()

	case EventMsg:
		m.applyEvent(typed.Event)
		return m, m.feed.Wait()

	case feedClosedMsg:
		return m, nil

	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.help.Width = typed.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if m.sw.Snapshot().Running {
			m.sw.Stop()
		} else {
			m.sw.Start()
		}

	case key.Matches(msg, m.keys.Reset):
		m.sw.Reset()
		m.beeps = 0

	case key.Matches(msg, m.keys.Slower):
		m.stepInterval(config.IntervalStep)

	case key.Matches(msg, m.keys.Faster):
		m.stepInterval(-config.IntervalStep)

	default:
		return m, nil
	}

	m.snap = m.sw.Snapshot()
	return m, nil
}

// stepInterval moves the interval by delta within the accepted bounds. A
// disabled interval steps from the minimum.
func (m *Model) stepInterval(delta time.Duration) {
	current := time.Duration(m.sw.Snapshot().IntervalMs) * time.Millisecond
	next := config.MinInterval
	if current > 0 {
		next = config.ClampInterval(current + delta)
	}
	if next == current {
		return
	}

	m.sw.SetInterval(next)
	m.notice = ""
	if m.onInterval != nil {
		if err := m.onInterval(next); err != nil {
			m.notice = fmt.Sprintf("interval not saved: %v", err)
		}
	}
}

func (m *Model) applyEvent(event domain.Event) {
	switch event.EventType {
	case domain.TimeReached:
		m.beeps++
	case domain.WakeLockFailed:
		if data, ok := event.ParseWakeLockFailedData(); ok {
			m.wakeLockErr = fmt.Sprintf("wake lock %s failed: %s", data.Operation, data.Error)
		}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	clock := clockStyle
	if m.snap.Beeping {
		clock = flashStyle
	}

	var b strings.Builder
	b.WriteString(clock.Render(display.FormatPrecise(m.snap.ElapsedMs)))
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.wakeLockErr != "" {
		b.WriteString(warningStyle.Render(m.wakeLockErr))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(warningStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statusLine() string {
	state := idleStyle.Render("■ idle")
	if m.snap.Running {
		state = runningStyle.Render("● running")
	}

	parts := []string{state, "interval " + display.FormatInterval(m.snap.IntervalMs)}
	if m.snap.IntervalMs > 0 {
		parts = append(parts, "next beep "+display.FormatElapsed(m.snap.NextBeepAtMs))
	}
	parts = append(parts, fmt.Sprintf("beeps %d", m.beeps))
	if m.snap.WakeLockActive {
		parts = append(parts, "screen kept awake")
	}
	return statusStyle.Render(strings.Join(parts, "  "))
}
