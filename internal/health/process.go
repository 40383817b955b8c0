package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo is one running process whose command line matched a pattern.
type ProcessInfo struct {
	PID     int32
	Name    string
	Cmdline string
}

// ProcessLister returns the running processes whose command line contains
// pattern.
type ProcessLister interface {
	Find(ctx context.Context, pattern string) ([]ProcessInfo, error)
}

// HostProcesses lists processes of the local host through gopsutil.
type HostProcesses struct{}

func (HostProcesses) Find(ctx context.Context, pattern string) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []ProcessInfo
	for _, p := range procs {
		cmd, err := p.CmdlineWithContext(ctx)
		if err != nil || cmd == "" {
			// exited or not ours to read
			continue
		}
		if !strings.Contains(cmd, pattern) {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		out = append(out, ProcessInfo{PID: p.Pid, Name: name, Cmdline: cmd})
	}
	return out, nil
}
