package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/ingestwatch/internal/config"
	"github.com/hamed0406/ingestwatch/internal/probe"
)

func preflightCmd() *cobra.Command {
	var probePorts bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Validate configuration, resolve the monitored host and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			warn := func(msg string) { fmt.Fprintln(errOut, "⚠", msg) }
			ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

			cfg, err := config.Load()
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				for _, e := range multierr.Errors(err) {
					fmt.Fprintln(errOut, "✖", e)
				}
				return errors.New("preflight failed: configuration")
			}
			ok("configuration valid")

			if len(cfg.AdminAPIKeys) == 0 {
				warn("ADMIN_API_KEYS is empty (reset and manual runs are open to anyone).")
			}
			if len(cfg.PublicAPIKeys) == 0 {
				warn("PUBLIC_API_KEYS is empty (state is readable by anyone who can reach API_ADDR).")
			}
			ok("API_ADDR=" + cfg.Addr)

			ok("DATABASE_URL present (driver " + cfg.DatabaseDriver + ")")
			switch {
			case cfg.SMTPHost != "" && len(cfg.AlertEmailTo) > 0:
				ok(fmt.Sprintf("email alerts to %s via %s:%d", strings.Join(cfg.AlertEmailTo, ","), cfg.SMTPHost, cfg.SMTPPort))
			case cfg.SlackWebhookURL == "":
				warn("no SMTP or Slack configured; alerts will only be logged.")
			}
			if cfg.SlackWebhookURL != "" {
				ok("Slack webhook configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			dns := probe.CheckDNS(ctx, cfg.MonitorHost)
			if !dns.Resolves() {
				fmt.Fprintf(errOut, "✖ MONITOR_HOST %q does not resolve: %s %s\n", cfg.MonitorHost, dns.Class, dns.ResolverError)
				return errors.New("preflight failed: monitored host")
			}
			ok(fmt.Sprintf("MONITOR_HOST %s resolves to %v", cfg.MonitorHost, dns.IPs))

			schedules := cfg.Schedules.Map()
			names := make([]string, 0, len(schedules))
			for name := range schedules {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				ok(fmt.Sprintf("schedule %-9s %s", name, schedules[name]))
			}

			if probePorts {
				statuses, err := probe.NewPortScanner(probe.NewTCPChecker(cfg.SocketTimeout())).
					Scan(ctx, cfg.MonitorHost, cfg.MonitorPorts)
				if err != nil {
					return fmt.Errorf("preflight failed: %w", err)
				}
				for _, st := range statuses {
					if st.Up {
						ok(fmt.Sprintf("port %d connected in %.1f ms", st.Port, st.LatencyMS))
					} else {
						warn(fmt.Sprintf("port %d unreachable: %s", st.Port, st.Reason))
					}
				}
			}

			ok("preflight passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&probePorts, "probe", false, "also try to connect to every monitored port")
	return cmd
}
