// Package monitor evaluates the ingestion pipeline's health signals on each
// scheduled tick and decides whether a notification is due.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/domain"
	"github.com/hamed0406/ingestwatch/internal/engine"
	"github.com/hamed0406/ingestwatch/internal/health"
	"github.com/hamed0406/ingestwatch/internal/metrics"
	"github.com/hamed0406/ingestwatch/internal/notify"
	"github.com/hamed0406/ingestwatch/internal/probe"
	"github.com/hamed0406/ingestwatch/internal/repo"
)

// Task names, as registered with the scheduler and accepted by the admin API.
const (
	TaskSources  = "sources"
	TaskPorts    = "ports"
	TaskDataFlow = "dataflow"
	TaskFailures = "failures"
	TaskReset    = "reset"
	TaskReport   = "report"
)

type Config struct {
	Host  string
	Ports []int

	// SourceWindow bounds how far back new sources are looked for.
	SourceWindow time.Duration
	// ActivityWindow is how far back an article counts as recent activity.
	ActivityWindow time.Duration
	// StaleHours is the outage length at which the data-flow alarm fires.
	StaleHours int64
	Thresholds domain.Thresholds
	// Location defines "today" for the failure count.
	Location *time.Location
}

func (c *Config) setDefaults() {
	if c.SourceWindow <= 0 {
		c.SourceWindow = 24 * time.Hour
	}
	if c.ActivityWindow <= 0 {
		c.ActivityWindow = time.Hour
	}
	if c.StaleHours <= 0 {
		c.StaleHours = 8
	}
	if c.Thresholds == (domain.Thresholds{}) {
		c.Thresholds = domain.Thresholds{L1: 20, L2: 50, L3: 100}
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Monitor owns the engine state and runs the checks against it.
type Monitor struct {
	Config    Config
	State     *engine.State
	Store     repo.IngestStore
	Scanner   *probe.PortScanner
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Clock     clockwork.Clock
	Inspector *health.Inspector // optional
}

func New(
	cfg Config,
	state *engine.State,
	store repo.IngestStore,
	scanner *probe.PortScanner,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Monitor {
	cfg.setDefaults()
	return &Monitor{
		Config:   cfg,
		State:    state,
		Store:    store,
		Scanner:  scanner,
		Notifier: notifier,
		Logger:   logger,
		Clock:    clockwork.NewRealClock(),
	}
}

// Tasks maps every task name to its entry point. A check that could not
// complete returns its error so manual runs can report it.
func (m *Monitor) Tasks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		TaskSources: func(ctx context.Context) error {
			_, err := m.CheckSources(ctx)
			return err
		},
		TaskPorts: func(ctx context.Context) error {
			_, err := m.CheckPorts(ctx)
			return err
		},
		TaskDataFlow: func(ctx context.Context) error {
			_, err := m.CheckDataFlow(ctx)
			return err
		},
		TaskFailures: func(ctx context.Context) error {
			_, err := m.CheckFailures(ctx)
			return err
		},
		TaskReset: func(ctx context.Context) error {
			m.ResetDaily(ctx)
			return nil
		},
		TaskReport: func(ctx context.Context) error {
			m.DailyReport(ctx)
			return nil
		},
	}
}

// tick returns a logger carrying the check name and a fresh trace id.
func (m *Monitor) tick(check string) *zap.Logger {
	return m.Logger.With(zap.String("check", check), zap.String("trace_id", uuid.NewString()))
}

func (m *Monitor) notify(ctx context.Context, log *zap.Logger, title, body string) {
	if err := m.Notifier.Send(ctx, title, body); err != nil {
		log.Error("notify_error", zap.String("title", title), zap.Error(err))
	}
}

func record(check string, o Outcome) {
	metrics.CheckRuns.WithLabelValues(check, string(o)).Inc()
}

// BootstrapWatermark moves the staleness watermark to the newest article in
// the store, so a restart during an outage does not hide it. When the store
// is empty or unreachable the watermark stays at process start.
func (m *Monitor) BootstrapWatermark(ctx context.Context) error {
	log := m.tick("watermark")
	at, ok, err := m.Store.LatestArticleTime(ctx)
	if err != nil {
		log.Warn("watermark_bootstrap_error", zap.Error(err))
		return err
	}
	if !ok {
		log.Info("watermark_bootstrap_empty", zap.Time("watermark", m.State.Watermark.Last()))
		return nil
	}
	m.State.Watermark.Set(at, m.Clock.Now())
	log.Info("watermark_bootstrapped", zap.Time("watermark", m.State.Watermark.Last()))
	return nil
}

// ResetDaily zeroes the failure ladder and the port alarm budget.
func (m *Monitor) ResetDaily(context.Context) {
	log := m.tick(TaskReset)
	prevLevel, prevAlarms := m.State.ResetDaily(m.Clock.Now())
	metrics.FailureLevel.Set(0)
	metrics.PortAlarmsToday.Set(0)
	record(TaskReset, OutcomeReset)
	log.Info("daily_reset",
		zap.Stringer("previous_level", prevLevel),
		zap.Int("previous_port_alarms", prevAlarms),
	)
}
