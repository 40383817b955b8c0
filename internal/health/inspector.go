package health

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Inspector checks that the ingestion process is running and its Kafka
// consumer group is healthy. Unconfigured parts are skipped.
type Inspector struct {
	Processes ProcessLister
	Pattern   string

	// Groups takes precedence over Script when both are set.
	Groups GroupDescriber
	Script ScriptRunner
	// Broker is passed to the helper script as --bootstrap-server.
	Broker string
	Group  string

	Timeout time.Duration
}

// Enabled reports whether there is anything to inspect.
func (in *Inspector) Enabled() bool {
	if in == nil {
		return false
	}
	return (in.Pattern != "" && in.Processes != nil) || in.groupEnabled()
}

func (in *Inspector) groupEnabled() bool {
	return in.Group != "" && (in.Groups != nil || in.Script != nil)
}

// Report is the outcome of one inspection.
type Report struct {
	Pattern    string
	Processes  []ProcessInfo
	ProcessErr error

	Group        string
	GroupStatus  *GroupStatus
	ScriptOutput string
	GroupErr     error
}

// Problems lists every unhealthy finding; empty means healthy.
func (r Report) Problems() []string {
	var out []string
	if r.Pattern != "" {
		switch {
		case r.ProcessErr != nil:
			out = append(out, fmt.Sprintf("process listing failed: %v", r.ProcessErr))
		case len(r.Processes) == 0:
			out = append(out, fmt.Sprintf("no process matching %q", r.Pattern))
		}
	}
	if r.Group != "" {
		switch {
		case r.GroupErr != nil:
			out = append(out, fmt.Sprintf("consumer group %s: %v", r.Group, r.GroupErr))
		case r.GroupStatus != nil && !r.GroupStatus.Healthy():
			out = append(out, fmt.Sprintf("consumer group %s is %s with %d members",
				r.Group, r.GroupStatus.State, r.GroupStatus.Members))
		}
	}
	return out
}

func (r Report) Healthy() bool { return len(r.Problems()) == 0 }

// Inspect runs every configured inspection. It never returns early so the
// report always carries as much detail as could be gathered.
func (in *Inspector) Inspect(ctx context.Context) Report {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var r Report
	if in.Pattern != "" && in.Processes != nil {
		r.Pattern = in.Pattern
		r.Processes, r.ProcessErr = in.Processes.Find(ctx, in.Pattern)
	}
	if !in.groupEnabled() {
		return r
	}
	r.Group = in.Group
	if in.Groups != nil {
		st, err := in.Groups.DescribeGroup(ctx, in.Group)
		if err != nil {
			r.GroupErr = err
		} else {
			r.GroupStatus = &st
		}
		return r
	}
	out, err := in.Script.Run(ctx, "--bootstrap-server", in.Broker, "--describe", "--group", in.Group)
	r.ScriptOutput = out
	switch {
	case err != nil:
		r.GroupErr = err
	case scriptFailed(out):
		r.GroupErr = errors.New("helper script reported a problem")
	}
	return r
}

// Text renders the report as plain-text tables for a notification body.
func (r Report) Text() string {
	var b strings.Builder

	if r.Pattern != "" {
		fmt.Fprintf(&b, "Processes matching %q\n", r.Pattern)
		switch {
		case r.ProcessErr != nil:
			fmt.Fprintf(&b, "  error: %v\n", r.ProcessErr)
		case len(r.Processes) == 0:
			b.WriteString("  WARNING: no matching process found\n")
		default:
			t := tablewriter.NewWriter(&b)
			t.SetHeader([]string{"PID", "Name", "Command"})
			t.SetAutoWrapText(false)
			for _, p := range r.Processes {
				t.Append([]string{strconv.Itoa(int(p.PID)), p.Name, p.Cmdline})
			}
			t.Render()
		}
		b.WriteString("\n")
	}

	if r.Group != "" {
		fmt.Fprintf(&b, "Consumer group %s\n", r.Group)
		if r.GroupStatus != nil {
			t := tablewriter.NewWriter(&b)
			t.SetHeader([]string{"State", "Members", "Lag"})
			t.Append([]string{
				r.GroupStatus.State,
				strconv.Itoa(r.GroupStatus.Members),
				strconv.FormatInt(r.GroupStatus.Lag, 10),
			})
			t.Render()
		}
		if r.ScriptOutput != "" {
			b.WriteString(r.ScriptOutput)
			b.WriteString("\n")
		}
		if r.GroupErr != nil {
			fmt.Fprintf(&b, "  ERROR: cannot get consumer group status: %v\n", r.GroupErr)
		}
	}

	if b.Len() == 0 {
		return "nothing configured to inspect\n"
	}
	return b.String()
}
