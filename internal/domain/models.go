package domain

import (
	"fmt"
	"time"
)

// Source is one upstream data source row discovered in the ingestion store.
type Source struct {
	ID        int64          `json:"id"`
	Name      string         `json:"source_name"`
	CreatedAt time.Time      `json:"created_at"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Level is a failure severity on the escalation ladder.
type Level int

const (
	LevelNone Level = iota
	Level1
	Level2
	Level3
)

func (l Level) String() string {
	return fmt.Sprintf("L%d", int(l))
}

// Thresholds are the ascending failure counts at which each level starts.
type Thresholds struct {
	L1 int64 `json:"l1" yaml:"l1"`
	L2 int64 `json:"l2" yaml:"l2"`
	L3 int64 `json:"l3" yaml:"l3"`
}

func (t Thresholds) Validate() error {
	if t.L1 <= 0 {
		return fmt.Errorf("failure threshold L1 must be > 0, got %d", t.L1)
	}
	if !(t.L1 < t.L2 && t.L2 < t.L3) {
		return fmt.Errorf("failure thresholds must ascend: L1=%d L2=%d L3=%d", t.L1, t.L2, t.L3)
	}
	return nil
}

// LevelFor maps a failure count onto the ladder.
func (t Thresholds) LevelFor(count int64) Level {
	switch {
	case count >= t.L3:
		return Level3
	case count >= t.L2:
		return Level2
	case count >= t.L1:
		return Level1
	default:
		return LevelNone
	}
}

// PortStatus is the outcome of probing one port.
type PortStatus struct {
	Host      string  `json:"host"`
	Port      int     `json:"port"`
	Up        bool    `json:"up"`
	LatencyMS float64 `json:"latency_ms"`
	Reason    string  `json:"reason,omitempty"`
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Cursor          *int64    `json:"cursor"`
	LastActivity    time.Time `json:"last_activity"`
	HighestLevel    Level     `json:"highest_level"`
	PortAlarmsToday int       `json:"port_alarms_today"`
	PortAlarmLimit  int       `json:"port_alarm_limit"`
	LastReset       time.Time `json:"last_reset,omitempty"`
}
