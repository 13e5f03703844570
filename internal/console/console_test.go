package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NotCreative21/taurus/internal/ws"
)

type stubConn struct {
	sent []ws.Frame
}

func (c *stubConn) Connect(context.Context) error { return nil }
func (c *stubConn) Read() (ws.Frame, error)       { return ws.Frame{}, errors.New("closed") }
func (c *stubConn) Send(f ws.Frame) error {
	c.sent = append(c.sent, f)
	return nil
}
func (c *stubConn) Close() error { return nil }

func TestParseInput(t *testing.T) {
	tests := []struct {
		in     string
		want   ws.Frame
		wantOK bool
	}{
		{"hello there", ws.Frame{Kind: ws.KindChatIn, Payload: "hello there"}, true},
		{"/surv list", ws.Frame{Kind: ws.KindCommand, Payload: "surv list"}, true},
		{"/* save-all ", ws.Frame{Kind: ws.KindCommand, Payload: "* save-all"}, true},
		{"/surv", ws.Frame{}, false},
		{"/ list", ws.Frame{}, false},
		{"   ", ws.Frame{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseInput(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseInput(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestChatFramesAppendLines(t *testing.T) {
	m := New(&stubConn{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, cmd := update(t, m, frameMsg{frame: ws.Frame{Kind: ws.KindChatOut, Payload: "[surv]<Alice> hi\n[creative]<Bob> yo\n"}})

	if len(m.lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(m.lines))
	}
	if cmd == nil {
		t.Error("frame handling should schedule the next read")
	}
	if !strings.Contains(m.View(), "<Bob> yo") {
		t.Error("view does not show relayed chat")
	}
}

func TestStatusFrameUpdatesBar(t *testing.T) {
	m := New(&stubConn{})
	m, _ = update(t, m, connectedMsg{})
	m, _ = update(t, m, frameMsg{frame: ws.Frame{
		Kind:    ws.KindStatus,
		Payload: `[{"session":"surv","running":true,"rss_bytes":1048576,"cpu_percent":12},{"session":"lobby","running":false}]`,
	}})

	if len(m.status) != 2 {
		t.Fatalf("status entries = %d, want 2", len(m.status))
	}
	bar := m.statusBar()
	if !strings.Contains(bar, "surv") || !strings.Contains(bar, "lobby down") {
		t.Errorf("status bar = %q", bar)
	}
}

func TestEnterSendsFrame(t *testing.T) {
	conn := &stubConn{}
	m := New(conn)
	m, _ = update(t, m, connectedMsg{})
	m.input.SetValue("/surv say hi")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	cmd()

	if len(conn.sent) != 1 || conn.sent[0] != (ws.Frame{Kind: ws.KindCommand, Payload: "surv say hi"}) {
		t.Fatalf("sent = %+v", conn.sent)
	}
	if m.input.Value() != "" {
		t.Error("input not cleared after send")
	}
}

func TestEnterWhileDisconnected(t *testing.T) {
	conn := &stubConn{}
	m := New(conn)
	m.input.SetValue("hello")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(conn.sent) != 0 {
		t.Fatal("frame sent while disconnected")
	}
	if !strings.Contains(m.lines[len(m.lines)-1], "not connected") {
		t.Errorf("last line = %q", m.lines[len(m.lines)-1])
	}
}

func TestDisconnectBacksOff(t *testing.T) {
	m := New(&stubConn{})
	m, _ = update(t, m, connectedMsg{})
	m, cmd := update(t, m, disconnectedMsg{err: errors.New("EOF")})

	if m.connected {
		t.Fatal("still marked connected")
	}
	if cmd == nil {
		t.Fatal("no reconnect scheduled")
	}
	if m.delay != 2*reconnectBaseDelay {
		t.Errorf("delay = %v, want %v", m.delay, 2*reconnectBaseDelay)
	}
	if !strings.Contains(m.statusBar(), "disconnected") {
		t.Error("status bar does not show disconnect")
	}
}

func TestLineBufferBounded(t *testing.T) {
	m := New(&stubConn{})
	for i := 0; i < maxLines+50; i++ {
		m.appendLine("x")
	}
	if len(m.lines) != maxLines {
		t.Fatalf("lines = %d, want %d", len(m.lines), maxLines)
	}
}
