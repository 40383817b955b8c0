package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/config"
	"github.com/hamed0406/ingestwatch/internal/datasource"
	"github.com/hamed0406/ingestwatch/internal/engine"
	"github.com/hamed0406/ingestwatch/internal/health"
	"github.com/hamed0406/ingestwatch/internal/monitor"
	"github.com/hamed0406/ingestwatch/internal/notify"
	"github.com/hamed0406/ingestwatch/internal/probe"
	"github.com/hamed0406/ingestwatch/internal/repo"
	"github.com/hamed0406/ingestwatch/internal/scheduler"
)

// app is the fully wired process.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	state     *engine.State
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if err := resolveHost(ctx, cfg.MonitorHost); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, log, a)
	if err != nil {
		return nil, err
	}

	dispatcher := notify.NewDispatcher(buildNotifier(cfg, log), log, cfg.NotifyWorkers, cfg.NotifyQueue, 30*time.Second)
	a.closers = append(a.closers, dispatcher.Close)

	insp, err := buildInspector(cfg, a)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	a.state = engine.NewState(clock.Now(), cfg.PortAlarmDailyLimit)
	a.monitor = monitor.New(monitor.Config{
		Host:         cfg.MonitorHost,
		Ports:        cfg.MonitorPorts,
		SourceWindow: cfg.SourceWindow(),
		StaleHours:   cfg.StaleHours,
		Thresholds:   cfg.FailLevels,
		Location:     loc,
	}, a.state, store, probe.NewPortScanner(probe.NewTCPChecker(cfg.SocketTimeout())), dispatcher, log)
	a.monitor.Clock = clock
	a.monitor.Inspector = insp

	a.scheduler = scheduler.New(log, clock, loc)
	tasks := a.monitor.Tasks()
	for name, spec := range cfg.Schedules.Map() {
		if err := a.scheduler.Add(name, spec, tasks[name]); err != nil {
			return nil, err
		}
	}

	ok = true
	return a, nil
}

// resolveHost fails when the monitored host does not resolve; every port
// check against it would otherwise spend the daily alarm budget.
func resolveHost(ctx context.Context, host string) error {
	st := probe.CheckDNS(ctx, host)
	if st.Resolves() {
		return nil
	}
	if st.ResolverError != "" {
		return fmt.Errorf("MONITOR_HOST %q does not resolve (%s): %s", host, st.Class, st.ResolverError)
	}
	return fmt.Errorf("MONITOR_HOST %q does not resolve (%s)", host, st.Class)
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger, a *app) (repo.IngestStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	var q datasource.Querier
	var err error
	switch cfg.DatabaseDriver {
	case "pgx":
		q, err = datasource.NewPG(ctx, cfg.DatabaseURL, log)
	default:
		q, err = datasource.OpenSQL(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, log)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	return repo.NewSQLStore(q, cfg.Schema(), cfg.QueryTimeout())
}

// buildNotifier fans out to every configured transport, or to the log when
// none is configured.
func buildNotifier(cfg config.Config, log *zap.Logger) notify.Notifier {
	var m notify.Multi
	email, err := notify.NewEmail(notify.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.AlertEmailTo,
	})
	switch {
	case err != nil:
		log.Error("notify_email_disabled", zap.Error(err))
	case email != nil:
		m = append(m, email)
	}
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		m = append(m, s)
	}
	if len(m) == 0 {
		log.Warn("notify_log_only", zap.String("reason", "no SMTP host/recipients or Slack webhook configured"))
		return notify.Log{Logger: log}
	}
	return m
}

func buildInspector(cfg config.Config, a *app) (*health.Inspector, error) {
	insp := &health.Inspector{Pattern: cfg.ProcessPattern, Group: cfg.KafkaGroup, Broker: "localhost:9092"}
	if cfg.ProcessPattern != "" {
		insp.Processes = health.HostProcesses{}
	}
	if len(cfg.KafkaBrokers) > 0 {
		insp.Broker = cfg.KafkaBrokers[0]
	}
	if cfg.KafkaGroup == "" {
		return insp, nil
	}
	switch {
	case len(cfg.KafkaBrokers) > 0:
		adm, err := health.NewKafkaAdmin(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, adm.Close)
		insp.Groups = adm
	case cfg.KafkaScriptPath != "":
		insp.Script = health.ShellScript{Path: cfg.KafkaScriptPath}
	}
	return insp, nil
}
