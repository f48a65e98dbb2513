package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/timeutil"
)

// Source is the read side the timer polls. *engine.Engine satisfies it.
type Source interface {
	Status(findingID string) (models.Status, error)
	ActiveSessions(findingID string) ([]ledger.Session, error)
	TotalDuration(findingID string) (ledger.Total, error)
	Now() time.Time
}

type timerKeyMap struct {
	Progress key.Binding
	Hold     key.Binding
	Close    key.Binding
	Quit     key.Binding
}

func (k timerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Progress, k.Hold, k.Close, k.Quit}
}

func (k timerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var timerKeys = timerKeyMap{
	Progress: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "stop · in progress")),
	Hold:     key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "stop · on hold")),
	Close:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "stop · close")),
	Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("esc/q", "exit (keep running)")),
}

// TimerModel is a live view of one finding's open sessions. The elapsed
// figures are projections recomputed on every tick; nothing is written
// until the operator picks a stop disposition.
type TimerModel struct {
	width  int
	height int

	source     Source
	finding    *models.Finding
	employeeID string // whose session the stop keys close; empty makes the view read-only

	now    time.Time
	status models.Status
	active []ledger.Session
	total  ledger.Total
	err    error

	// Animation state
	timerAnimation int

	keys timerKeyMap
	help help.Model

	// disposition is set when the operator asked to stop their session
	disposition models.Disposition
	exiting     bool
}

// timerTickMsg is sent every second to refresh the projections
type timerTickMsg struct{}

// NewTimerModel creates a timer for finding. employeeID may be empty.
func NewTimerModel(source Source, finding *models.Finding, employeeID string) TimerModel {
	m := TimerModel{
		source:     source,
		finding:    finding,
		employeeID: employeeID,
		keys:       timerKeys,
		help:       help.New(),
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return timerTickMsg{}
	})
}

// Init starts the ticker
func (m TimerModel) Init() tea.Cmd {
	return tick()
}

func (m *TimerModel) refresh() {
	m.now = m.source.Now()
	if m.status, m.err = m.source.Status(m.finding.ID); m.err != nil {
		return
	}
	if m.active, m.err = m.source.ActiveSessions(m.finding.ID); m.err != nil {
		return
	}
	m.total, m.err = m.source.TotalDuration(m.finding.ID)
}

// own returns the session the stop keys act on
func (m TimerModel) own() (ledger.Session, bool) {
	for _, s := range m.active {
		if s.EmployeeID == m.employeeID {
			return s, true
		}
	}
	return ledger.Session{}, false
}

// Update handles messages
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerTickMsg:
		m.refresh()
		m.timerAnimation = (m.timerAnimation + 1) % 4
		if m.disposition != "" || m.exiting {
			return m, nil
		}
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.exiting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Progress):
			return m.stop(models.DispositionProgress)
		case key.Matches(msg, m.keys.Hold):
			return m.stop(models.DispositionHold)
		case key.Matches(msg, m.keys.Close):
			return m.stop(models.DispositionClosed)
		}
	}
	return m, nil
}

func (m TimerModel) stop(d models.Disposition) (tea.Model, tea.Cmd) {
	if _, ok := m.own(); !ok {
		return m, nil
	}
	m.disposition = d
	return m, tea.Quit
}

// View renders the timer
func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Render(m.help.View(m.keys))
	contentHeight := m.height - lipgloss.Height(helpBar) - 1

	if m.width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderTimerPanel(m.width, contentHeight),
			helpBar,
		)
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 2
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTimerPanel(leftWidth, contentHeight),
		"  ",
		m.renderSessionsPanel(rightWidth, contentHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, content, helpBar)
}

// fitDescription shortens desc to the panel's inner width, counting cells
// rather than bytes.
func fitDescription(desc string, width int) string {
	if width <= 7 {
		return desc
	}
	return ansi.Truncate(desc, width-4, "...")
}

// renderTimerPanel shows the big clock for the operator's own session, or
// for the longest running one when the view is read-only.
func (m TimerModel) renderTimerPanel(width, height int) string {
	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)
	var components []string

	animChars := []string{"⏱", "⏲", "⏱", "⏲"}
	anim := animChars[m.timerAnimation]
	components = append(components, center.
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true).
		Render(fmt.Sprintf("%s  FINDING %s  %s", anim, m.finding.ID, anim)))

	desc := m.finding.Description
	if desc == "" {
		desc = "no description"
	}
	components = append(components, center.Foreground(lipgloss.Color(ColorPrimaryText)).Render(fitDescription(desc, width)))

	components = append(components, center.Render(m.renderStatus()))

	if m.err != nil {
		components = append(components, center.Foreground(lipgloss.Color(ColorError)).Render("❌ "+m.err.Error()))
	}

	session, ok := m.own()
	if !ok && len(m.active) > 0 {
		session, ok = m.active[0], true
	}
	if ok {
		var clock []string
		for _, line := range strings.Split(renderBigClock(session.Elapsed(m.now)), "\n") {
			clock = append(clock, center.Render(line))
		}
		components = append(components, strings.Join(clock, "\n"))
		components = append(components, center.
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Render(fmt.Sprintf("%s · task %s · started %s", session.EmployeeID, session.TaskCode, session.Start.Format("15:04:05"))))
	} else {
		components = append(components, center.
			Foreground(lipgloss.Color(ColorDisabledText)).
			Render("No one is working this finding"))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(components, "\n\n"))
}

func (m TimerModel) renderStatus() string {
	color := ColorSecondaryText
	icon := "○"
	switch m.status {
	case models.StatusInProgress:
		color, icon = ColorAccentBright, "●"
	case models.StatusOnHold:
		color, icon = ColorWarning, "⏸"
	case models.StatusClosed:
		color, icon = ColorSuccess, "✅"
	}
	return fmt.Sprintf("%s Status: %s", icon,
		lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(string(m.status)))
}

// renderSessionsPanel lists every open session with its live elapsed time
func (m TimerModel) renderSessionsPanel(width, height int) string {
	var b strings.Builder
	b.WriteString("\n")

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentMain)).
		Width(width-12).
		Padding(0, 1)
	b.WriteString(title.Render(fmt.Sprintf("Active sessions (%d)", len(m.active))))
	b.WriteString("\n\n")

	row := lipgloss.NewStyle().Width(width - 8)
	for _, s := range m.active {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
		marker := " "
		if s.EmployeeID == m.employeeID {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright)).Bold(true)
			marker = "▶"
		}
		line := fmt.Sprintf("%s %-10s %-10s %s", marker, s.EmployeeID, s.TaskCode, timeutil.FormatClock(s.Elapsed(m.now)))
		b.WriteString(row.Render(style.Render(line)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBorder))
	b.WriteString(sep.Render(strings.Repeat("─", max(min(width-12, 40), 0))))
	b.WriteString("\n\n")

	totals := fmt.Sprintf("📊 Booked: %s (%.2f MH) over %d sessions",
		timeutil.FormatClock(m.total.Duration), timeutil.ManHours(m.total.Duration), m.total.Sessions)
	b.WriteString(row.Foreground(lipgloss.Color(ColorSecondaryText)).Render(totals))

	return lipgloss.NewStyle().Height(height).Render(b.String())
}

// bigDigits is 5-row block art for the clock
var bigDigits = map[rune][5]string{
	'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
	'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
	'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
	'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
	'4': {"█   █", "█   █", "█████", "    █", "    █"},
	'5': {"█████", "█    ", "████ ", "    █", "████ "},
	'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
	'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
	'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
	'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
	':': {"     ", "  █  ", "     ", "  █  ", "     "},
	'-': {"     ", "     ", "█████", "     ", "     "},
}

func renderBigClock(d time.Duration) string {
	var lines [5]strings.Builder
	for _, char := range timeutil.FormatClock(d) {
		art, ok := bigDigits[char]
		if !ok {
			continue
		}
		for i := range lines {
			lines[i].WriteString(art[i])
			lines[i].WriteString(" ")
		}
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright)).Bold(true)
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = style.Render(lines[i].String())
	}
	return strings.Join(out, "\n")
}
