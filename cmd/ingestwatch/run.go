package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/httpapi"
	apimw "github.com/hamed0406/ingestwatch/internal/httpapi/middleware"
	"github.com/hamed0406/ingestwatch/internal/logging"
	"github.com/hamed0406/ingestwatch/internal/monitor"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and the admin API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			_ = a.monitor.BootstrapWatermark(ctx)

			api := httpapi.NewServer(logger, a.state, a.scheduler, monitor.TaskReset)
			srv := &http.Server{
				Addr: cfg.Addr,
				Handler: api.Router(
					apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
					cfg.CORSOrigins,
					cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst,
				),
				ReadHeaderTimeout: 10 * time.Second,
			}
			srvErr := make(chan error, 1)
			go func() {
				logger.Info("api_listen", zap.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()

			done := make(chan struct{})
			go func() {
				a.scheduler.Run(ctx)
				close(done)
			}()

			select {
			case <-ctx.Done():
			case err = <-srvErr:
				logger.Error("api_listen_error", zap.Error(err))
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			<-done
			logger.Info("shutdown_complete")
			return err
		},
	}
}

func onceCmd() *cobra.Command {
	names := []string{
		monitor.TaskSources, monitor.TaskPorts, monitor.TaskDataFlow,
		monitor.TaskFailures, monitor.TaskReset, monitor.TaskReport,
	}
	sort.Strings(names)
	var cursor int64
	cmd := &cobra.Command{
		Use:       "once <check>",
		Short:     "Run one check a single time and exit (" + strings.Join(names, "|") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			// Close drains the notification queue before exit.
			defer a.Close()

			switch args[0] {
			case monitor.TaskDataFlow:
				_ = a.monitor.BootstrapWatermark(cmd.Context())
			case monitor.TaskSources:
				// without a starting cursor a fresh process can only bootstrap
				if cursor >= 0 {
					a.state.Cursor.Bootstrap(cursor)
				}
			}
			if err := a.scheduler.Trigger(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("check %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&cursor, "cursor", -1, "last seen source id for the sources check")
	return cmd
}
