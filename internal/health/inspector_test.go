package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProcesses struct {
	procs []ProcessInfo
	err   error
}

func (f fakeProcesses) Find(context.Context, string) ([]ProcessInfo, error) {
	return f.procs, f.err
}

type fakeGroups struct {
	st  GroupStatus
	err error
}

func (f fakeGroups) DescribeGroup(context.Context, string) (GroupStatus, error) {
	return f.st, f.err
}

func (fakeGroups) Close() {}

type fakeScript struct {
	out  string
	err  error
	args []string
}

func (f *fakeScript) Run(_ context.Context, args ...string) (string, error) {
	f.args = args
	return f.out, f.err
}

func TestInspector_Disabled(t *testing.T) {
	var nilInspector *Inspector
	require.False(t, nilInspector.Enabled())
	require.False(t, (&Inspector{Pattern: "article"}).Enabled(), "pattern without lister")
	require.False(t, (&Inspector{Group: "g"}).Enabled(), "group without backend")

	r := (&Inspector{}).Inspect(context.Background())
	require.True(t, r.Healthy())
	require.Equal(t, "nothing configured to inspect\n", r.Text())
}

func TestInspector_ProcessMissing(t *testing.T) {
	in := &Inspector{Processes: fakeProcesses{}, Pattern: "article"}
	require.True(t, in.Enabled())

	r := in.Inspect(context.Background())
	require.False(t, r.Healthy())
	require.Equal(t, []string{`no process matching "article"`}, r.Problems())
	require.Contains(t, r.Text(), "no matching process found")
}

func TestInspector_ProcessListError(t *testing.T) {
	in := &Inspector{Processes: fakeProcesses{err: errors.New("denied")}, Pattern: "article"}
	r := in.Inspect(context.Background())
	require.Len(t, r.Problems(), 1)
	require.Contains(t, r.Problems()[0], "denied")
}

func TestInspector_GroupHealthy(t *testing.T) {
	in := &Inspector{
		Processes: fakeProcesses{procs: []ProcessInfo{{PID: 42, Name: "java", Cmdline: "java -jar article.jar"}}},
		Pattern:   "article",
		Groups:    fakeGroups{st: GroupStatus{Group: "my-group", State: "Stable", Members: 2, Lag: 17}},
		Group:     "my-group",
	}
	r := in.Inspect(context.Background())
	require.True(t, r.Healthy(), r.Problems())

	text := r.Text()
	require.Contains(t, text, "article.jar")
	require.Contains(t, text, "Stable")
	require.Contains(t, text, "17")
}

func TestInspector_GroupUnhealthy(t *testing.T) {
	in := &Inspector{Groups: fakeGroups{st: GroupStatus{State: "Empty"}}, Group: "my-group"}
	r := in.Inspect(context.Background())
	require.Equal(t, []string{"consumer group my-group is Empty with 0 members"}, r.Problems())

	in.Groups = fakeGroups{err: errors.New("coordinator not available")}
	r = in.Inspect(context.Background())
	require.False(t, r.Healthy())
	require.Contains(t, r.Text(), "coordinator not available")
}

func TestInspector_ScriptFallback(t *testing.T) {
	s := &fakeScript{out: "GROUP TOPIC PARTITION LAG\nmy-group ingest 0 3"}
	in := &Inspector{Script: s, Broker: "localhost:9092", Group: "my-group"}

	r := in.Inspect(context.Background())
	require.True(t, r.Healthy(), r.Problems())
	require.Equal(t, []string{"--bootstrap-server", "localhost:9092", "--describe", "--group", "my-group"}, s.args)
	require.Contains(t, r.Text(), "my-group ingest 0 3")

	s.out = "Error: Executing consumer group command failed"
	require.False(t, in.Inspect(context.Background()).Healthy())

	s.out = ""
	require.False(t, in.Inspect(context.Background()).Healthy())
}

func TestShellScript_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	path := filepath.Join(t.TempDir(), "describe.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo \"$@\"\n"), 0o755))

	out, err := ShellScript{Path: path}.Run(context.Background(), "--group", "g")
	require.NoError(t, err)
	require.Equal(t, "--group g", out)

	_, err = ShellScript{Path: filepath.Join(t.TempDir(), "missing.sh")}.Run(context.Background())
	require.Error(t, err)
}

func TestHostProcesses_FindsSelf(t *testing.T) {
	procs, err := HostProcesses{}.Find(context.Background(), filepath.Base(os.Args[0]))
	if err != nil {
		t.Skipf("process listing unavailable: %v", err)
	}
	found := false
	for _, p := range procs {
		if int(p.PID) == os.Getpid() {
			found = true
		}
	}
	require.True(t, found, "test binary should find itself")
}
