// Package console is an interactive terminal subscriber: it shows relayed
// chat and game status and sends chat or commands back to the sessions.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NotCreative21/taurus/internal/client"
	"github.com/NotCreative21/taurus/internal/relay"
	"github.com/NotCreative21/taurus/internal/ws"
)

const (
	maxLines           = 1000
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Conn is the subset of client.Client the console drives.
type Conn interface {
	Connect(ctx context.Context) error
	Read() (ws.Frame, error)
	Send(f ws.Frame) error
	Close() error
}

var _ Conn = (*client.Client)(nil)

type connectedMsg struct{}

type disconnectedMsg struct{ err error }

type retryMsg struct{}

type frameMsg struct{ frame ws.Frame }

type sendFailedMsg struct{ err error }

// Model is the root Bubble Tea model.
type Model struct {
	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc

	keys     KeyMap
	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int

	lines     []string
	follow    bool
	status    map[string]relay.SessionStatus
	connected bool
	delay     time.Duration
	lastErr   string
}

func New(conn Conn) Model {
	ctx, cancel := context.WithCancel(context.Background())

	in := textinput.New()
	in.Placeholder = "chat, or /<session|*> <command>"
	in.Prompt = "> "
	in.CharLimit = 256
	in.Focus()

	return Model{
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		keys:     DefaultKeyMap(),
		viewport: viewport.New(80, 20),
		input:    in,
		follow:   true,
		status:   make(map[string]relay.SessionStatus),
		delay:    reconnectBaseDelay,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connect())
}

func (m Model) connect() tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Connect(m.ctx); err != nil {
			return disconnectedMsg{err: err}
		}
		return connectedMsg{}
	}
}

func (m Model) read() tea.Cmd {
	return func() tea.Msg {
		f, err := m.conn.Read()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		return frameMsg{frame: f}
	}
}

func (m Model) send(f ws.Frame) tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Send(f); err != nil {
			return sendFailedMsg{err: err}
		}
		return nil
	}
}

// ParseInput turns a console line into a frame. Lines starting with '/'
// are commands addressed as "/<session|*> <command>"; anything else is chat.
func ParseInput(line string) (ws.Frame, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ws.Frame{}, false
	}
	if rest, ok := strings.CutPrefix(line, "/"); ok {
		target, command, _ := strings.Cut(rest, " ")
		if target == "" || strings.TrimSpace(command) == "" {
			return ws.Frame{}, false
		}
		return ws.Frame{Kind: ws.KindCommand, Payload: target + " " + strings.TrimSpace(command)}, true
	}
	return ws.Frame{Kind: ws.KindChatIn, Payload: line}, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectedMsg:
		m.connected = true
		m.delay = reconnectBaseDelay
		m.lastErr = ""
		return m, m.read()

	case disconnectedMsg:
		m.connected = false
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		if m.ctx.Err() != nil {
			return m, nil
		}
		delay := m.delay
		m.delay = min(m.delay*2, reconnectMaxDelay)
		return m, tea.Tick(delay, func(time.Time) tea.Msg { return retryMsg{} })

	case retryMsg:
		return m, m.connect()

	case frameMsg:
		m.handleFrame(msg.frame)
		return m, m.read()

	case sendFailedMsg:
		m.appendLine(styleError.Render("send failed: " + msg.err.Error()))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		if m.conn != nil {
			m.conn.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		f, ok := ParseInput(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.SetValue("")
		m.appendLine(styleSelf.Render("> " + f.Payload))
		if !m.connected {
			m.appendLine(styleError.Render("not connected"))
			return m, nil
		}
		return m, m.send(f)

	case key.Matches(msg, m.keys.PageUp):
		m.follow = false
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.follow = true
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.lines = nil
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleFrame(f ws.Frame) {
	switch f.Kind {
	case ws.KindChatOut:
		for _, line := range strings.Split(strings.TrimRight(f.Payload, "\n"), "\n") {
			if line != "" {
				m.appendLine(renderChat(line))
			}
		}
	case ws.KindStatus:
		var statuses []relay.SessionStatus
		if err := json.Unmarshal([]byte(f.Payload), &statuses); err != nil {
			m.appendLine(styleError.Render("bad status: " + err.Error()))
			return
		}
		for _, st := range statuses {
			m.status[st.Session] = st
		}
	case ws.KindError:
		m.appendLine(styleError.Render("error: " + f.Payload))
	}
}

// renderChat highlights the "[session]" prefix of a relayed line.
func renderChat(line string) string {
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "]"); end > 0 {
			return styleSession.Render(line[:end+1]) + styleChat.Render(line[end+1:])
		}
	}
	return styleChat.Render(line)
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) statusBar() string {
	var parts []string
	if m.connected {
		parts = append(parts, styleUp.Render("connected"))
	} else {
		s := styleDown.Render("disconnected")
		if m.lastErr != "" {
			s += styleDimmed.Render(" (" + m.lastErr + ")")
		}
		parts = append(parts, s)
	}

	names := make([]string, 0, len(m.status))
	for name := range m.status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, formatStatus(m.status[name]))
	}
	return strings.Join(parts, styleDimmed.Render(" | "))
}

func formatStatus(st relay.SessionStatus) string {
	if !st.Running {
		return styleDown.Render(st.Session + " down")
	}
	return styleUp.Render(st.Session) + styleDimmed.Render(
		fmt.Sprintf(" %.0f%% %.0fMiB", st.CPUPercent, float64(st.RSSBytes)/(1<<20)))
}

func (m Model) View() string {
	bar := styleBar.Width(max(m.width-2, 0)).Render(m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), bar, m.input.View())
}
