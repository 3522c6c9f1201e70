// Package tui is the interactive chat screen for sppchat, built on
// bubbletea/lipgloss. While disconnected the input line takes a peer
// address; once connected it takes messages. Ctrl+D disconnects and
// Esc or Ctrl+C quits.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sppchat/internal/link"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	receivedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			PaddingLeft(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("57")).
			Bold(true)
)

// maxLines bounds the transcript kept for this session.
const maxLines = 500

// Controller is the part of link.Manager the screen drives.
type Controller interface {
	Connect(peer string) error
	Send(text string) error
	Disconnect() error
	State() link.State
	Peer() string
}

// eventMsg carries one link event into Update.
type eventMsg link.Event

// closedMsg reports that the event stream has ended.
type closedMsg struct{}

// sendResultMsg is the outcome of an asynchronous Send.
type sendResultMsg struct {
	text string
	err  error
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctl    Controller
	events <-chan link.Event

	state  link.State
	peer   string
	input  string
	lines  []string
	notice string
	width  int
	height int
}

// New returns a Model. peer pre-fills the address prompt.
func New(ctl Controller, events <-chan link.Event, peer string) Model {
	return Model{
		ctl:    ctl,
		events: events,
		state:  ctl.State(),
		peer:   ctl.Peer(),
		input:  peer,
	}
}

// Init starts listening for link events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan link.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

func send(ctl Controller, text string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{text: text, err: ctl.Send(text)}
	}
}

// Update handles key input and link events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case eventMsg:
		m.apply(link.Event(msg))
		return m, waitForEvent(m.events)

	case closedMsg:
		return m, tea.Quit

	case sendResultMsg:
		if msg.err != nil {
			m.notice = link.Describe(msg.err)
		} else {
			m.appendLine(sentStyle.Render("> " + msg.text))
		}
		m.state = m.ctl.State()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) apply(e link.Event) {
	switch e.Kind {
	case link.EventMessage:
		m.appendLine(receivedStyle.Render("< " + e.Text))
		return
	case link.EventConnected:
		m.peer = e.Peer
		m.input = ""
	}
	m.notice = e.String()
	m.state = m.ctl.State()
}

func (m *Model) appendLine(s string) {
	m.lines = append(m.lines, s)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyCtrlD:
		if err := m.ctl.Disconnect(); err != nil {
			m.notice = link.Describe(err)
		}
		m.state = m.ctl.State()
		return m, nil

	case tea.KeyEnter:
		return m.submit()

	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.input += " "
		return m, nil

	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	m.state = m.ctl.State()
	switch m.state {
	case link.Connected:
		text := m.input
		if strings.TrimSpace(text) == "" {
			m.notice = link.Describe(link.ErrEmptyMessage)
			return m, nil
		}
		m.input = ""
		return m, send(m.ctl, text)

	case link.Disconnected:
		peer := strings.TrimSpace(m.input)
		if err := m.ctl.Connect(peer); err != nil {
			m.notice = link.Describe(err)
			return m, nil
		}
		m.peer = peer
		m.state = m.ctl.State()
		m.notice = fmt.Sprintf("Connecting to %s...", peer)
		return m, nil

	default:
		m.notice = link.Describe(link.ErrAlreadyConnected)
		return m, nil
	}
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sppchat"))
	b.WriteString(" ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	visible := m.lines
	if room := m.height - 6; room > 0 && len(visible) > room {
		visible = visible[len(visible)-room:]
	}
	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("  no messages yet"))
		b.WriteString("\n")
	}
	for _, l := range visible {
		b.WriteString(l)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")

	prompt := "peer> "
	if m.state == link.Connected {
		prompt = "send> "
	}
	b.WriteString(promptStyle.Render(prompt))
	b.WriteString(m.input)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: connect/send  ctrl+d: disconnect  esc: quit"))
	return b.String()
}

func (m Model) statusLine() string {
	switch m.state {
	case link.Connected:
		return connectedStyle.Render("Connected to " + m.peer)
	case link.Connecting:
		return idleStyle.Render("Connecting to " + m.peer + "...")
	case link.Disconnecting:
		return idleStyle.Render("Disconnecting...")
	default:
		return idleStyle.Render("Not connected")
	}
}
