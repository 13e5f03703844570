package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shirou/gopsutil/v3/process"
)

// maxTreeDepth bounds the walk below a pane process (shell, wrapper
// script, java).
const maxTreeDepth = 8

// SessionStatus is one entry of a STATUS frame.
type SessionStatus struct {
	Session    string  `json:"session"`
	Running    bool    `json:"running"`
	PID        int32   `json:"pid,omitempty"`
	Processes  int     `json:"processes"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Error      string  `json:"error,omitempty"`
}

// PaneLister finds the processes backing a tmux session.
type PaneLister interface {
	PanePIDs(session string) ([]int, error)
}

// StatusProbe reports resource use of each session's pane process tree.
type StatusProbe struct {
	panes PaneLister
}

func NewStatusProbe(panes PaneLister) *StatusProbe {
	return &StatusProbe{panes: panes}
}

func (p *StatusProbe) Probe(ctx context.Context, session string) SessionStatus {
	st := SessionStatus{Session: session}
	pids, err := p.panes.PanePIDs(session)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	if len(pids) == 0 {
		st.Error = "no panes"
		return st
	}
	st.PID = int32(pids[0])

	for _, pid := range pids {
		proc, err := process.NewProcessWithContext(ctx, int32(pid))
		if err != nil {
			continue
		}
		p.accumulate(ctx, proc, &st, 0)
	}
	return st
}

func (p *StatusProbe) accumulate(ctx context.Context, proc *process.Process, st *SessionStatus, depth int) {
	running, err := proc.IsRunningWithContext(ctx)
	if err != nil || !running {
		return
	}
	st.Running = true
	st.Processes++
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		st.RSSBytes += mem.RSS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		st.CPUPercent += cpu
	}

	if depth >= maxTreeDepth {
		return
	}
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		if !errors.Is(err, process.ErrorNoChildren) {
			log.Debug("list children failed", "pid", proc.Pid, "error", err)
		}
		return
	}
	for _, child := range children {
		p.accumulate(ctx, child, st, depth+1)
	}
}

// ProbeAll probes sessions in order.
func (p *StatusProbe) ProbeAll(ctx context.Context, sessions []string) []SessionStatus {
	out := make([]SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, p.Probe(ctx, s))
	}
	return out
}

func encodeStatus(statuses []SessionStatus) (string, error) {
	data, err := json.Marshal(statuses)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
