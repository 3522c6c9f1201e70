package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sppchat/internal/link"
)

type fakeController struct {
	state link.State
	peer  string
	sent  []string
	err   error
}

func (f *fakeController) Connect(peer string) error {
	p, err := link.ParsePeer(peer)
	if err != nil {
		return err
	}
	f.state, f.peer = link.Connecting, p
	return nil
}

func (f *fakeController) Send(text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeController) Disconnect() error {
	f.state, f.peer = link.Disconnected, ""
	return nil
}

func (f *fakeController) State() link.State { return f.state }
func (f *fakeController) Peer() string      { return f.peer }

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m tea.Model, k tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

func TestConnectFromPrompt(t *testing.T) {
	ctl := &fakeController{}
	var m tea.Model = New(ctl, nil, "")

	m = typeText(m, "00:11:22:AA:BB:CC")
	m, _ = press(m, tea.KeyEnter)
	if ctl.state != link.Connecting || ctl.peer != "00:11:22:AA:BB:CC" {
		t.Fatalf("controller = %+v", ctl)
	}
	if !strings.Contains(m.View(), "Connecting to 00:11:22:AA:BB:CC") {
		t.Fatalf("view should show connecting:\n%s", m.View())
	}

	ctl.state = link.Connected
	m, cmd := m.Update(eventMsg{Kind: link.EventConnected, Peer: ctl.peer})
	if cmd == nil {
		t.Fatal("model should keep listening for events")
	}
	view := m.View()
	if !strings.Contains(view, "Connected to 00:11:22:AA:BB:CC") || !strings.Contains(view, "send>") {
		t.Fatalf("view after connect:\n%s", view)
	}
}

func TestInvalidPeerShowsNotice(t *testing.T) {
	ctl := &fakeController{}
	var m tea.Model = New(ctl, nil, "nope")
	m, _ = press(m, tea.KeyEnter)
	if ctl.state != link.Disconnected {
		t.Fatal("bad peer must not start a connection")
	}
	if !strings.Contains(m.View(), "Invalid MAC address format.") {
		t.Fatalf("missing notice:\n%s", m.View())
	}
}

func TestSendAndReceive(t *testing.T) {
	ctl := &fakeController{state: link.Connected, peer: "00:11:22:AA:BB:CC"}
	var m tea.Model = New(ctl, nil, "")

	m = typeText(m, "PING")
	m, cmd := press(m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected a send command")
	}
	m, _ = m.Update(cmd())
	if len(ctl.sent) != 1 || ctl.sent[0] != "PING" {
		t.Fatalf("sent = %v", ctl.sent)
	}

	m, _ = m.Update(eventMsg{Kind: link.EventMessage, Text: "PONG"})
	view := m.View()
	if !strings.Contains(view, "> PING") || !strings.Contains(view, "< PONG") {
		t.Fatalf("transcript missing lines:\n%s", view)
	}
}

func TestBlankMessageRejected(t *testing.T) {
	ctl := &fakeController{state: link.Connected, peer: "00:11:22:AA:BB:CC"}
	var m tea.Model = New(ctl, nil, "")
	m, cmd := press(m, tea.KeyEnter)
	if cmd != nil {
		t.Fatal("blank input must not be sent")
	}
	if !strings.Contains(m.View(), "Please enter a message to send.") {
		t.Fatalf("missing notice:\n%s", m.View())
	}
}

func TestSendFailureNotice(t *testing.T) {
	ctl := &fakeController{state: link.Connected, peer: "00:11:22:AA:BB:CC", err: link.ErrSendFailed}
	var m tea.Model = New(ctl, nil, "")
	m = typeText(m, "x")
	m, cmd := press(m, tea.KeyEnter)
	m, _ = m.Update(cmd())
	if !strings.Contains(m.View(), "Failed to send message.") {
		t.Fatalf("missing notice:\n%s", m.View())
	}
}

func TestDisconnectAndLostConnection(t *testing.T) {
	ctl := &fakeController{state: link.Connected, peer: "00:11:22:AA:BB:CC"}
	var m tea.Model = New(ctl, nil, "")

	m, _ = press(m, tea.KeyCtrlD)
	if ctl.state != link.Disconnected {
		t.Fatal("ctrl+d should disconnect")
	}
	m, _ = m.Update(eventMsg{Kind: link.EventDisconnected})
	if !strings.Contains(m.View(), "Not connected") {
		t.Fatalf("view:\n%s", m.View())
	}

	m, _ = m.Update(eventMsg{Kind: link.EventConnectionLost, Err: link.ErrConnectionLost})
	if !strings.Contains(m.View(), "Connection lost.") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestEditingKeys(t *testing.T) {
	var m tea.Model = New(&fakeController{}, nil, "")
	m = typeText(m, "ab")
	m, _ = press(m, tea.KeySpace)
	m = typeText(m, "c")
	m, _ = press(m, tea.KeyBackspace)
	if got := m.(Model).input; got != "ab " {
		t.Fatalf("input = %q", got)
	}
}

func TestQuitKeys(t *testing.T) {
	var m tea.Model = New(&fakeController{}, nil, "")
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		_, cmd := press(m, k)
		if cmd == nil {
			t.Fatalf("%v should quit", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%v should produce QuitMsg", k)
		}
	}
	_, cmd := m.Update(closedMsg{})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("end of events should quit")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan link.Event, 1)
	ch <- link.Event{Kind: link.EventMessage, Text: "hi"}
	if msg := waitForEvent(ch)(); link.Event(msg.(eventMsg)).Text != "hi" {
		t.Fatalf("got %#v", msg)
	}
	close(ch)
	if _, ok := waitForEvent(ch)().(closedMsg); !ok {
		t.Fatal("closed channel should yield closedMsg")
	}
}
