package health

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ScriptRunner runs an external helper and returns its combined output.
type ScriptRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ShellScript runs a shell script through sh, e.g. kafka-consumer-groups.sh.
type ShellScript struct {
	Path string
}

func (s ShellScript) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", append([]string{s.Path}, args...)...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("run %s: %w", s.Path, err)
	}
	return text, nil
}

// scriptFailed reports whether helper output signals a problem. Tools like
// kafka-consumer-groups.sh exit 0 and print "Error: ..." when the broker is
// unreachable.
func scriptFailed(out string) bool {
	return out == "" || strings.Contains(strings.ToLower(out), "error")
}
