package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leonardotrapani/copresenter/internal/bus"
	"github.com/leonardotrapani/copresenter/internal/orchestrator"
)

const DefaultWatchInterval = 250 * time.Millisecond

// StatusFetcher returns the daemon's current status.
type StatusFetcher func() (orchestrator.Status, error)

// DaemonStatus asks the running daemon for its JSON status over the control socket.
func DaemonStatus() (orchestrator.Status, error) {
	var s orchestrator.Status
	out, err := bus.SendCommand(bus.CmdStatusJSON, "")
	if err != nil {
		return s, fmt.Errorf("daemon unreachable: %w", err)
	}
	if strings.HasPrefix(out, "ERR") {
		return s, fmt.Errorf("daemon: %s", strings.TrimSpace(out))
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		return s, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}

type statusMsg struct {
	status orchestrator.Status
	err    error
	at     time.Time
}

type pollMsg struct{}

type watchModel struct {
	fetch    StatusFetcher
	interval time.Duration
	spinner  spinner.Model

	status  orchestrator.Status
	err     error
	updated time.Time
	width   int
}

func newWatchModel(fetch StatusFetcher, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return watchModel{
		fetch:    fetch,
		interval: interval,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorPrimary)),
		),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m watchModel) poll() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		s, err := fetch()
		return statusMsg{status: s, err: err, at: time.Now()}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.updated = msg.at
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })

	case pollMsg:
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("copresenter watch"))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(StyleError.Render(m.err.Error()))
		b.WriteString("\n")
		b.WriteString(StyleSubtle.Render("is `copresenter serve` running?"))
		b.WriteString("\n\n")
	}
	if m.updated.IsZero() {
		if m.err == nil {
			b.WriteString(m.spinner.View() + " connecting...\n")
		}
		b.WriteString(StyleMuted.Render("q quit"))
		return b.String()
	}

	s := m.status
	state := string(s.State)
	line := badge(state)
	if s.State == orchestrator.Generating || s.State == orchestrator.Playing {
		line += " " + m.spinner.View()
	}
	b.WriteString(line + "\n\n")

	field := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s %s\n", StyleLabel.Render(fmt.Sprintf("%-13s", label)), value))
	}
	session := StyleMuted.Render("none")
	if s.Session != 0 {
		session = StyleHighlight.Render(fmt.Sprintf("#%d", s.Session))
	}
	field("session", session)
	field("queued", fmt.Sprintf("%d", s.Queued))
	field("cooldown", s.CooldownRemaining)
	gesture := s.Gesture
	if gesture == "" {
		gesture = StyleMuted.Render("-")
	}
	field("gesture", gesture)
	field("style", s.Style)
	if s.Transcribing {
		field("transcribing", StyleSuccess.Render("on"))
	} else {
		field("transcribing", StyleWarning.Render("off"))
	}

	width := m.width - 4
	if width < 20 {
		width = 60
	}
	box := StyleBox.Width(width)
	b.WriteString("\n")
	b.WriteString(StyleLabel.Render("transcript") + "\n")
	b.WriteString(box.Render(orPlaceholder(s.Transcript)) + "\n")
	b.WriteString(StyleLabel.Render("continuation") + "\n")
	b.WriteString(box.Render(orPlaceholder(s.Continuation)) + "\n")

	b.WriteString(StyleMuted.Render(fmt.Sprintf("updated %s • q quit", m.updated.Format("15:04:05"))))
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return StyleSubtle.Render("(empty)")
	}
	return s
}

// RunWatch shows a live view of the daemon until the user quits.
func RunWatch(fetch StatusFetcher, interval time.Duration) error {
	if fetch == nil {
		fetch = DaemonStatus
	}
	_, err := tea.NewProgram(newWatchModel(fetch, interval)).Run()
	return err
}
