package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/config"
	"github.com/hamed0406/ingestwatch/internal/monitor"
)

func testConfig(host string) config.Config {
	cfg := config.Defaults()
	cfg.MonitorHost = host
	cfg.MonitorPorts = []int{8080}
	cfg.DatabaseDriver = "sqlite3"
	cfg.DatabaseURL = ":memory:"
	cfg.Timezone = "UTC"
	return cfg
}

func TestResolveHost(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, resolveHost(ctx, "127.0.0.1"))

	err := resolveHost(ctx, "ingest.invalid")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not resolve")

	require.Error(t, resolveHost(ctx, "http://ingest.internal"))
}

func TestBuildApp_UnresolvableHostFailsStartup(t *testing.T) {
	cfg := testConfig("ingest.invalid")
	require.NoError(t, cfg.Validate())

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Nil(t, a)
	require.Contains(t, err.Error(), "MONITOR_HOST")
}

func TestBuildApp_WiresEveryTask(t *testing.T) {
	a, err := buildApp(context.Background(), testConfig("127.0.0.1"), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.ElementsMatch(t, []string{
		monitor.TaskSources, monitor.TaskPorts, monitor.TaskDataFlow,
		monitor.TaskFailures, monitor.TaskReset, monitor.TaskReport,
	}, a.scheduler.Names())
}

func TestOpenStore_RequiresDatabase(t *testing.T) {
	cfg := testConfig("127.0.0.1")
	cfg.DatabaseURL = ""
	_, err := openStore(context.Background(), cfg, zap.NewNop(), &app{})
	require.ErrorContains(t, err, "DATABASE_URL is required")
}
