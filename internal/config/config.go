package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/ingestwatch/internal/domain"
	"github.com/hamed0406/ingestwatch/internal/monitor"
	"github.com/hamed0406/ingestwatch/internal/repo"
	"github.com/hamed0406/ingestwatch/internal/scheduler"
)

// Schedules holds one cron expression per task.
type Schedules struct {
	Sources  string `yaml:"sources"`
	Ports    string `yaml:"ports"`
	DataFlow string `yaml:"dataflow"`
	Failures string `yaml:"failures"`
	Reset    string `yaml:"reset"`
	Report   string `yaml:"report"`
}

// Map returns the schedules keyed by task name.
func (s Schedules) Map() map[string]string {
	return map[string]string{
		monitor.TaskSources:  s.Sources,
		monitor.TaskPorts:    s.Ports,
		monitor.TaskDataFlow: s.DataFlow,
		monitor.TaskFailures: s.Failures,
		monitor.TaskReset:    s.Reset,
		monitor.TaskReport:   s.Report,
	}
}

type Config struct {
	Addr          string   `yaml:"api_addr"` // API bind address, e.g. "127.0.0.1:8080" or ":8080" (Docker)
	LogDir        string   `yaml:"log_dir"`
	LogLevel      string   `yaml:"log_level"`
	AdminAPIKeys  []string `yaml:"admin_api_keys"`
	PublicAPIKeys []string `yaml:"public_api_keys"`
	CORSOrigins   []string `yaml:"cors_origins"` // empty allows all
	PublicRPM     int      `yaml:"public_rpm"`
	PublicBurst   int      `yaml:"public_burst"`
	AdminRPM      int      `yaml:"admin_rpm"`
	AdminBurst    int      `yaml:"admin_burst"`

	DatabaseURL    string `yaml:"database_url"`
	DatabaseDriver string `yaml:"database_driver"`
	QueryTimeoutMS int    `yaml:"query_timeout_ms"`
	SourcesTable   string `yaml:"sources_table"`
	ArticlesTable  string `yaml:"articles_table"`

	AlertEmailTo    []string `yaml:"alert_email_to"`
	SMTPHost        string   `yaml:"smtp_host"`
	SMTPPort        int      `yaml:"smtp_port"`
	SMTPUser        string   `yaml:"smtp_user"`
	SMTPPassword    string   `yaml:"smtp_password"`
	SMTPFrom        string   `yaml:"smtp_from"`
	SlackWebhookURL string   `yaml:"slack_webhook_url"`
	NotifyWorkers   int      `yaml:"notify_workers"`
	NotifyQueue     int      `yaml:"notify_queue"`

	MonitorHost         string            `yaml:"monitor_host"`
	MonitorPorts        []int             `yaml:"monitor_ports"`
	SocketTimeoutMS     int               `yaml:"socket_timeout_ms"`
	PortAlarmDailyLimit int               `yaml:"port_alarm_daily_limit"`
	StaleHours          int64             `yaml:"data_stop_threshold_hours"`
	SourceWindowHours   int               `yaml:"source_window_hours"`
	FailLevels          domain.Thresholds `yaml:"fail_levels"`

	ProcessPattern  string   `yaml:"process_pattern"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaGroup      string   `yaml:"kafka_group"`
	KafkaScriptPath string   `yaml:"kafka_script_path"`

	Timezone  string    `yaml:"timezone"`
	Schedules Schedules `yaml:"schedules"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:        "127.0.0.1:8080",
		LogDir:      "logs",
		LogLevel:    "info",
		PublicRPM:   120,
		PublicBurst: 60,
		AdminRPM:    30,
		AdminBurst:  10,

		DatabaseDriver: "pgx",
		QueryTimeoutMS: 10000,
		SourcesTable:   "sources",
		ArticlesTable:  "articles",

		SMTPPort:      587,
		NotifyWorkers: 2,
		NotifyQueue:   64,

		SocketTimeoutMS:     3000,
		PortAlarmDailyLimit: 5,
		StaleHours:          8,
		SourceWindowHours:   24,
		FailLevels:          domain.Thresholds{L1: 20, L2: 50, L3: 100},

		Schedules: Schedules{
			Sources:  "0 9 * * *",
			Ports:    "*/10 * * * *",
			DataFlow: "*/30 * * * *",
			Failures: "*/30 * * * *",
			Reset:    "0 0 * * *",
			Report:   "50 8 * * *",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv is Load for callers that handle validation themselves. Values
// that fail to parse keep their defaults.
func FromEnv() Config {
	cfg, _ := Load()
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("API_ADDR", &c.Addr)
	str("LOG_DIR", &c.LogDir)
	str("LOG_LEVEL", &c.LogLevel)
	list("ADMIN_API_KEYS", &c.AdminAPIKeys)
	list("PUBLIC_API_KEYS", &c.PublicAPIKeys)
	list("CORS_ORIGINS", &c.CORSOrigins)
	integer("PUBLIC_RPM", &c.PublicRPM)
	integer("PUBLIC_BURST", &c.PublicBurst)
	integer("ADMIN_RPM", &c.AdminRPM)
	integer("ADMIN_BURST", &c.AdminBurst)

	str("DATABASE_URL", &c.DatabaseURL)
	str("DATABASE_DRIVER", &c.DatabaseDriver)
	integer("QUERY_TIMEOUT_MS", &c.QueryTimeoutMS)
	str("SOURCES_TABLE", &c.SourcesTable)
	str("ARTICLES_TABLE", &c.ArticlesTable)

	list("ALERT_EMAIL_TO", &c.AlertEmailTo)
	str("SMTP_HOST", &c.SMTPHost)
	integer("SMTP_PORT", &c.SMTPPort)
	str("SMTP_USER", &c.SMTPUser)
	str("SMTP_PASSWORD", &c.SMTPPassword)
	str("SMTP_FROM", &c.SMTPFrom)
	str("SLACK_WEBHOOK_URL", &c.SlackWebhookURL)
	integer("NOTIFY_WORKERS", &c.NotifyWorkers)
	integer("NOTIFY_QUEUE", &c.NotifyQueue)

	str("MONITOR_HOST", &c.MonitorHost)
	if v := os.Getenv("MONITOR_PORTS"); v != "" {
		ports, err := parsePorts(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("MONITOR_PORTS: %w", err))
		} else {
			c.MonitorPorts = ports
		}
	}
	integer("SOCKET_TIMEOUT_MS", &c.SocketTimeoutMS)
	integer("PORT_ALARM_DAILY_LIMIT", &c.PortAlarmDailyLimit)
	int64v("DATA_STOP_THRESHOLD_HOURS", &c.StaleHours)
	integer("SOURCE_WINDOW_HOURS", &c.SourceWindowHours)
	int64v("FAIL_LEVEL_L1", &c.FailLevels.L1)
	int64v("FAIL_LEVEL_L2", &c.FailLevels.L2)
	int64v("FAIL_LEVEL_L3", &c.FailLevels.L3)

	str("PROCESS_PATTERN", &c.ProcessPattern)
	list("KAFKA_BROKERS", &c.KafkaBrokers)
	str("KAFKA_GROUP", &c.KafkaGroup)
	str("KAFKA_SCRIPT_PATH", &c.KafkaScriptPath)

	str("TIMEZONE", &c.Timezone)
	str("SCHEDULE_SOURCES", &c.Schedules.Sources)
	str("SCHEDULE_PORTS", &c.Schedules.Ports)
	str("SCHEDULE_DATAFLOW", &c.Schedules.DataFlow)
	str("SCHEDULE_FAILURES", &c.Schedules.Failures)
	str("SCHEDULE_RESET", &c.Schedules.Reset)
	str("SCHEDULE_REPORT", &c.Schedules.Report)

	return errs
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePorts(v string) ([]int, error) {
	var out []int
	for _, p := range splitList(v) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	if c.MonitorHost == "" {
		add(errors.New("MONITOR_HOST is required"))
	}
	if len(c.MonitorPorts) == 0 {
		add(errors.New("MONITOR_PORTS is required"))
	}
	if c.DatabaseURL == "" {
		add(errors.New("DATABASE_URL is required"))
	}
	for _, p := range c.MonitorPorts {
		if p <= 0 || p > 65535 {
			add(fmt.Errorf("monitor port %d is out of range [1, 65535]", p))
		}
	}
	if c.SocketTimeoutMS <= 0 {
		add(fmt.Errorf("SOCKET_TIMEOUT_MS must be > 0, got %d", c.SocketTimeoutMS))
	}
	if c.QueryTimeoutMS <= 0 {
		add(fmt.Errorf("QUERY_TIMEOUT_MS must be > 0, got %d", c.QueryTimeoutMS))
	}
	if c.PortAlarmDailyLimit < 1 {
		add(fmt.Errorf("PORT_ALARM_DAILY_LIMIT must be >= 1, got %d", c.PortAlarmDailyLimit))
	}
	if c.StaleHours <= 0 {
		add(fmt.Errorf("DATA_STOP_THRESHOLD_HOURS must be > 0, got %d", c.StaleHours))
	}
	if c.SourceWindowHours <= 0 {
		add(fmt.Errorf("SOURCE_WINDOW_HOURS must be > 0, got %d", c.SourceWindowHours))
	}
	add(c.FailLevels.Validate())

	switch c.DatabaseDriver {
	case "pgx", "postgres", "sqlite3":
	default:
		add(fmt.Errorf("DATABASE_DRIVER %q unknown: want pgx|postgres|sqlite3", c.DatabaseDriver))
	}
	add(c.Schema().Validate())
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		add(errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	if c.KafkaGroup != "" && len(c.KafkaBrokers) == 0 && c.KafkaScriptPath == "" {
		add(errors.New("KAFKA_GROUP needs KAFKA_BROKERS or KAFKA_SCRIPT_PATH"))
	}

	loc, err := c.Location()
	if err != nil {
		add(err)
	}
	for name, spec := range c.Schedules.Map() {
		if _, err := scheduler.ParseSpec(spec, loc); err != nil {
			add(fmt.Errorf("schedule %s: %w", name, err))
		}
	}
	return errs
}

// Location resolves Timezone; empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

func (c Config) SocketTimeout() time.Duration {
	return time.Duration(c.SocketTimeoutMS) * time.Millisecond
}

func (c Config) SourceWindow() time.Duration {
	return time.Duration(c.SourceWindowHours) * time.Hour
}

func (c Config) Schema() repo.Schema {
	return repo.Schema{SourcesTable: c.SourcesTable, ArticlesTable: c.ArticlesTable}
}
