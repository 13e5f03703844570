// Package tmux drives the tmux server that hosts the game consoles. It is
// the relay's capture mechanism (pipe-pane into a file) and its keystroke
// injection fallback (send-keys).
package tmux

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Multiplexer is the subset of tmux the relay depends on.
type Multiplexer interface {
	// PipeTo redirects the session's pane output into path, replacing any
	// pipe that is already open.
	PipeTo(session, path string) error

	// SendLiteral types text into the session followed by Enter.
	SendLiteral(session, text string) error

	// PanePIDs returns the PID of every pane process in the session.
	PanePIDs(session string) ([]int, error)
}

// Client runs tmux commands against the default server, or against the
// server behind Socket when it is set.
type Client struct {
	Socket string
}

// New returns a Client for the default tmux server.
func New() *Client {
	return &Client{}
}

// IsAvailable reports whether a tmux binary is on PATH.
func IsAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func (c *Client) run(args ...string) ([]byte, error) {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return nil, fmt.Errorf("tmux not found: %w", err)
	}
	sub := args[0]
	if c.Socket != "" {
		args = append([]string{"-S", c.Socket}, args...)
	}
	out, err := exec.Command(path, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("tmux %s: %w (%s)", sub, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (c *Client) PipeTo(session, path string) error {
	// Close the old pipe first so it stops writing into an unlinked file.
	if _, err := c.run("pipe-pane", "-t", session); err != nil {
		return err
	}
	_, err := c.run("pipe-pane", "-t", session, "cat >> "+shellQuote(path))
	return err
}

func (c *Client) SendLiteral(session, text string) error {
	if _, err := c.run(literalArgs(session, text)...); err != nil {
		return err
	}
	_, err := c.run("send-keys", "-t", session, "Enter")
	return err
}

func (c *Client) PanePIDs(session string) ([]int, error) {
	out, err := c.run("list-panes", "-s", "-t", session, "-F", "#{pane_pid}")
	if err != nil {
		return nil, err
	}
	return parsePanePIDs(string(out)), nil
}

// literalArgs builds a send-keys invocation that types text verbatim. The
// "--" keeps a leading dash from being read as a flag, and a trailing ";"
// is escaped so tmux does not take it as a command separator.
func literalArgs(session, text string) []string {
	if strings.HasSuffix(text, ";") {
		text = text[:len(text)-1] + `\;`
	}
	return []string{"send-keys", "-t", session, "-l", "--", text}
}

// parsePanePIDs parses one PID per line, skipping anything malformed.
func parsePanePIDs(output string) []int {
	var pids []int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

// shellQuote wraps s in single quotes for the sh -c that pipe-pane runs.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
