package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/domain"
	"github.com/hamed0406/ingestwatch/internal/metrics"
	"github.com/hamed0406/ingestwatch/internal/probe"
)

// Outcome is what one check invocation concluded.
type Outcome string

const (
	OutcomeFailed Outcome = "failed"

	OutcomeBootstrapped Outcome = "bootstrapped"
	OutcomeAdvanced     Outcome = "advanced"
	OutcomeIdle         Outcome = "idle"

	OutcomeActive Outcome = "active"
	OutcomeWarn   Outcome = "warn"
	OutcomeAlarm  Outcome = "alarm"

	OutcomeEscalated Outcome = "escalated"
	OutcomeUnchanged Outcome = "unchanged"

	OutcomeSkipped  Outcome = "skipped"
	OutcomeAllOK    Outcome = "ok"
	OutcomeFailures Outcome = "failures"

	OutcomeReset  Outcome = "reset"
	OutcomeReport Outcome = "report"
)

type SourceResult struct {
	Outcome Outcome
	Sources []domain.Source
	Cursor  int64
}

// CheckSources reports sources that appeared since the last tick. The first
// successful tick only bootstraps the cursor to the current maximum id.
func (m *Monitor) CheckSources(ctx context.Context) (SourceResult, error) {
	log := m.tick(TaskSources)

	if _, ok := m.State.Cursor.Get(); !ok {
		maxID, _, err := m.Store.MaxSourceID(ctx)
		if err != nil {
			record(TaskSources, OutcomeFailed)
			log.Error("source_check_error", zap.String("step", "max_id"), zap.Error(err))
			return SourceResult{Outcome: OutcomeFailed}, err
		}
		m.State.Cursor.Bootstrap(maxID)
		cur, _ := m.State.Cursor.Get()
		metrics.SourceCursor.Set(float64(cur))
		record(TaskSources, OutcomeBootstrapped)
		log.Info("source_check_bootstrapped", zap.Int64("cursor", cur))
		return SourceResult{Outcome: OutcomeBootstrapped, Cursor: cur}, nil
	}

	cursor, _ := m.State.Cursor.Get()
	now := m.Clock.Now()
	sources, err := m.Store.NewSources(ctx, cursor, now.Add(-m.Config.SourceWindow))
	if err != nil {
		record(TaskSources, OutcomeFailed)
		log.Error("source_check_error", zap.String("step", "new_sources"), zap.Int64("cursor", cursor), zap.Error(err))
		return SourceResult{Outcome: OutcomeFailed, Cursor: cursor}, err
	}
	if len(sources) == 0 {
		record(TaskSources, OutcomeIdle)
		log.Info("source_check_idle", zap.Int64("cursor", cursor))
		return SourceResult{Outcome: OutcomeIdle, Cursor: cursor}, nil
	}

	body := renderSources(sources, m.Config.SourceWindow)
	if ports := m.portSummary(ctx, log); ports != "" {
		body += "\n" + ports
	}
	m.notify(ctx, log, fmt.Sprintf("New sources (%d)", len(sources)), body)

	// rows arrive in descending id order, so sources[0] is the max; the
	// explicit scan keeps this correct if a store ignores the ordering
	maxID := sources[0].ID
	for _, s := range sources[1:] {
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	prev, cur := m.State.Cursor.Advance(maxID)
	metrics.SourceCursor.Set(float64(cur))
	record(TaskSources, OutcomeAdvanced)
	log.Info("source_check_advanced",
		zap.Int("new_sources", len(sources)),
		zap.Int64("previous_cursor", prev),
		zap.Int64("cursor", cur),
	)
	return SourceResult{Outcome: OutcomeAdvanced, Sources: sources, Cursor: cur}, nil
}

// portSummary probes the configured ports for inclusion in a report. It
// never touches the alarm budget.
func (m *Monitor) portSummary(ctx context.Context, log *zap.Logger) string {
	if m.Scanner == nil || m.Config.Host == "" || len(m.Config.Ports) == 0 {
		return ""
	}
	statuses, err := m.Scanner.Scan(ctx, m.Config.Host, m.Config.Ports)
	if err != nil {
		log.Warn("port_summary_error", zap.Error(err))
	}
	return renderPorts(statuses)
}

type DataFlowResult struct {
	Outcome Outcome
	Hours   int64
}

// CheckDataFlow detects a stalled pipeline. Once the outage reaches
// StaleHours the alarm is repeated on every tick until data flows again.
func (m *Monitor) CheckDataFlow(ctx context.Context) (DataFlowResult, error) {
	log := m.tick(TaskDataFlow)
	now := m.Clock.Now()

	n, err := m.Store.ArticleCountSince(ctx, now.Add(-m.Config.ActivityWindow))
	if err != nil {
		record(TaskDataFlow, OutcomeFailed)
		log.Error("dataflow_check_error", zap.Error(err))
		return DataFlowResult{Outcome: OutcomeFailed}, err
	}
	if n > 0 {
		m.State.Watermark.Touch(now)
		metrics.HoursSinceActivity.Set(0)
		record(TaskDataFlow, OutcomeActive)
		log.Debug("dataflow_active", zap.Int64("recent_articles", n))
		return DataFlowResult{Outcome: OutcomeActive}, nil
	}

	hours := m.State.Watermark.ElapsedHours(now)
	metrics.HoursSinceActivity.Set(float64(hours))
	if hours < m.Config.StaleHours {
		record(TaskDataFlow, OutcomeWarn)
		log.Warn("dataflow_stalled", zap.Int64("hours", hours), zap.Int64("alarm_at_hours", m.Config.StaleHours))
		return DataFlowResult{Outcome: OutcomeWarn, Hours: hours}, nil
	}

	last := m.State.Watermark.Last()
	m.notify(ctx, log, "Data flow stopped",
		fmt.Sprintf("Server: %s\nNo new articles for %d hours.\nLast activity: %s",
			m.Config.Host, hours, last.In(m.Config.Location).Format(time.RFC3339)))
	record(TaskDataFlow, OutcomeAlarm)
	log.Error("dataflow_alarm", zap.Int64("hours", hours), zap.Time("last_activity", last))
	return DataFlowResult{Outcome: OutcomeAlarm, Hours: hours}, nil
}

type FailureResult struct {
	Outcome Outcome
	Count   int64
	Level   domain.Level
}

// CheckFailures alerts when today's failure count reaches a level above the
// highest one already reported today.
func (m *Monitor) CheckFailures(ctx context.Context) (FailureResult, error) {
	log := m.tick(TaskFailures)

	count, err := m.Store.FailureCountSince(ctx, m.startOfDay())
	if err != nil {
		record(TaskFailures, OutcomeFailed)
		log.Error("failure_check_error", zap.Error(err))
		return FailureResult{Outcome: OutcomeFailed}, err
	}
	metrics.FailuresToday.Set(float64(count))

	level := m.Config.Thresholds.LevelFor(count)
	prev, escalated := m.State.Ladder.Escalate(level)
	if !escalated {
		record(TaskFailures, OutcomeUnchanged)
		log.Debug("failure_level_unchanged",
			zap.Int64("failures", count),
			zap.Stringer("level", level),
			zap.Stringer("reported", prev),
		)
		return FailureResult{Outcome: OutcomeUnchanged, Count: count, Level: level}, nil
	}

	title := fmt.Sprintf("Ingestion failures (%s)", level)
	body := fmt.Sprintf("Server: %s\nFailed articles today: %d.", m.Config.Host, count)
	if level == domain.Level3 {
		title = fmt.Sprintf("CRITICAL: ingestion failures (%s)", level)
		body += "\nInvestigate resources and service status immediately."
	}
	m.notify(ctx, log, title, body)

	metrics.FailureLevel.Set(float64(level))
	record(TaskFailures, OutcomeEscalated)
	log.Warn("failure_level_escalated",
		zap.Int64("failures", count),
		zap.Stringer("level", level),
		zap.Stringer("previous", prev),
	)
	return FailureResult{Outcome: OutcomeEscalated, Count: count, Level: level}, nil
}

func (m *Monitor) startOfDay() time.Time {
	now := m.Clock.Now().In(m.Config.Location)
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.Config.Location)
}

type PortResult struct {
	Outcome  Outcome
	Statuses []domain.PortStatus
	Problems []string
}

// CheckPorts probes every configured port, and the process and consumer
// group when all ports connect. Any problem yields one notification and
// spends one unit of the daily alarm budget. With the budget exhausted
// nothing is probed.
func (m *Monitor) CheckPorts(ctx context.Context) (PortResult, error) {
	log := m.tick(TaskPorts)

	if m.State.PortAlarm.Exhausted() {
		count, limit := m.State.PortAlarm.Count()
		record(TaskPorts, OutcomeSkipped)
		log.Debug("port_check_skipped", zap.Int("alarms_today", count), zap.Int("limit", limit))
		return PortResult{Outcome: OutcomeSkipped}, nil
	}

	statuses, err := m.Scanner.Scan(ctx, m.Config.Host, m.Config.Ports)
	if err != nil {
		log.Error("port_check_misconfigured", zap.Error(err))
	}
	var problems []string
	for _, st := range statuses {
		up := 0.0
		if st.Up {
			up = 1
		}
		metrics.PortUp.WithLabelValues(strconv.Itoa(st.Port)).Set(up)
		if !st.Up {
			problems = append(problems, fmt.Sprintf("port %d unreachable: %s", st.Port, st.Reason))
		}
	}

	if len(problems) == 0 && m.Inspector.Enabled() {
		report := m.Inspector.Inspect(ctx)
		problems = append(problems, report.Problems()...)
	}

	if len(problems) == 0 {
		record(TaskPorts, OutcomeAllOK)
		log.Info("port_check_ok", zap.Ints("ports", m.Config.Ports))
		return PortResult{Outcome: OutcomeAllOK, Statuses: statuses}, nil
	}

	m.notify(ctx, log, fmt.Sprintf("Server %s unhealthy", m.Config.Host),
		fmt.Sprintf("Server: %s\n%s\n\n%s", m.Config.Host, strings.Join(problems, "\n"), renderPorts(statuses)))
	spent := m.State.PortAlarm.Spend()
	metrics.PortAlarmsToday.Set(float64(spent))
	record(TaskPorts, OutcomeFailures)
	log.Error("port_check_failed",
		zap.Ints("failed_ports", probe.Failed(statuses)),
		zap.Strings("problems", problems),
		zap.Int("alarms_today", spent),
	)
	return PortResult{Outcome: OutcomeFailures, Statuses: statuses, Problems: problems}, nil
}
