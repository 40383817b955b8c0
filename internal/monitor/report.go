package monitor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/datasource"
	"github.com/hamed0406/ingestwatch/internal/domain"
)

func renderSources(sources []domain.Source, window time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New sources in the last %s\n", window)

	t := tablewriter.NewWriter(&b)
	t.SetHeader([]string{"ID", "Name", "Created", "Details"})
	t.SetAutoWrapText(false)
	for _, s := range sources {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Format(time.DateTime)
		}
		t.Append([]string{strconv.FormatInt(s.ID, 10), s.Name, created, fields(s.Fields)})
	}
	t.Render()
	return b.String()
}

// fields renders the extra columns of a source row in a stable order.
func fields(f map[string]any) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+datasource.String(f[k]))
	}
	return strings.Join(parts, " ")
}

func renderPorts(statuses []domain.PortStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Port status\n")
	t := tablewriter.NewWriter(&b)
	t.SetHeader([]string{"Host", "Port", "Status", "Latency ms", "Reason"})
	for _, st := range statuses {
		status := "DOWN"
		if st.Up {
			status = "UP"
		}
		t.Append([]string{
			st.Host,
			strconv.Itoa(st.Port),
			status,
			strconv.FormatFloat(st.LatencyMS, 'f', 1, 64),
			st.Reason,
		})
	}
	t.Render()
	return b.String()
}

func renderState(snap domain.Snapshot, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Monitor state\n")
	t := tablewriter.NewWriter(&b)
	t.SetHeader([]string{"Item", "Value"})
	cursor := "not bootstrapped"
	if snap.Cursor != nil {
		cursor = strconv.FormatInt(*snap.Cursor, 10)
	}
	t.AppendBulk([][]string{
		{"Source cursor", cursor},
		{"Last activity", snap.LastActivity.In(loc).Format(time.DateTime)},
		{"Failure level reported", snap.HighestLevel.String()},
		{"Port alarms today", fmt.Sprintf("%d/%d", snap.PortAlarmsToday, snap.PortAlarmLimit)},
	})
	t.Render()
	return b.String()
}

// DailyReport sends a status summary regardless of health: ports, process
// and consumer group, and the engine state.
func (m *Monitor) DailyReport(ctx context.Context) string {
	log := m.tick(TaskReport)
	now := m.Clock.Now().In(m.Config.Location)

	var b strings.Builder
	fmt.Fprintf(&b, "Daily health report %s\nServer: %s\n\n", now.Format(time.DateTime), m.Config.Host)
	if ports := m.portSummary(ctx, log); ports != "" {
		b.WriteString(ports)
		b.WriteString("\n")
	}
	healthy := true
	if m.Inspector.Enabled() {
		report := m.Inspector.Inspect(ctx)
		healthy = report.Healthy()
		b.WriteString(report.Text())
		b.WriteString("\n")
	}
	b.WriteString(renderState(m.State.Snapshot(), m.Config.Location))

	body := b.String()
	m.notify(ctx, log, "Daily health report", body)
	record(TaskReport, OutcomeReport)
	log.Info("daily_report_sent", zap.Bool("healthy", healthy))
	return body
}
