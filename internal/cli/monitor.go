package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/V4T54L/medallion/internal/adapter/dashboard"
	"github.com/V4T54L/medallion/internal/bootstrap"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/config"
	"github.com/V4T54L/medallion/internal/pkg/logger"
	"github.com/V4T54L/medallion/internal/usecase"
)

type monitorFlags struct {
	refresh    time.Duration
	iterations int
	once       bool
	noColor    bool
	jsonOutput bool
}

// NewMonitorCommand returns the command that polls pipeline status and
// renders it for an operator.
func NewMonitorCommand() *cobra.Command {
	var f monitorFlags
	cmd := &cobra.Command{
		Use:           "monitor",
		Short:         "Watch uploads, layers, stage runs and the stage queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel).With("component", "monitor")

			uc, cleanup, err := newMonitor(cmd, cfg, log)
			if err != nil {
				log.Error("failed to start monitor", "error", err)
				return err
			}
			defer cleanup()

			opts := f.watchOptions(cfg)
			render := dashboard.NewRenderer(cmd.OutOrStdout(), f.noColor).Render
			if f.jsonOutput {
				render = jsonRenderer(cmd)
			}
			if err := uc.Watch(cmd.Context(), opts, render); err != nil {
				log.Error("monitor stopped", "error", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&f.refresh, "refresh", 0, "refresh interval (defaults to MONITOR_REFRESH)")
	flags.IntVar(&f.iterations, "iterations", 0, "number of refreshes, 0 for no limit")
	flags.BoolVar(&f.once, "once", false, "take a single snapshot and exit")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colors and screen clearing")
	flags.BoolVar(&f.jsonOutput, "json", false, "print snapshots as JSON lines")
	return cmd
}

func (f monitorFlags) watchOptions(cfg *config.Config) usecase.WatchOptions {
	opts := usecase.WatchOptions{
		Refresh:     f.refresh,
		Iterations:  f.iterations,
		MaxFailures: cfg.MonitorMaxFailures,
	}
	if opts.Refresh <= 0 {
		opts.Refresh = cfg.MonitorRefresh
	}
	if f.once {
		opts.Iterations = 1
	}
	if opts.Iterations <= 0 {
		opts.Iterations = math.MaxInt32
	}
	return opts
}

// newMonitor wires every optional status source that is configured. Sources
// that cannot be reached are left out with a warning.
func newMonitor(cmd *cobra.Command, cfg *config.Config, log *slog.Logger) (*usecase.MonitorUseCase, func(), error) {
	ctx := cmd.Context()
	lake, err := bootstrap.OpenLake(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.Warn("run ledger unavailable", "error", err)
		ledger = &bootstrap.Ledger{}
	}
	cleanup := []func(){ledger.Close}

	var queue domain.QueueAdminRepository
	if cfg.RedisAddr != "" {
		client, err := bootstrap.OpenRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("stage queue unavailable", "error", err)
		} else {
			queue = bootstrap.OpenQueueAdmin(cfg, client, log)
			cleanup = append(cleanup, func() { client.Close() })
		}
	}

	var jobs domain.JobStatusReader
	if cfg.StageLauncher == config.LauncherGlue {
		launcher, err := bootstrap.GlueLauncher(cfg, lake, log)
		if err != nil {
			log.Warn("glue job status unavailable", "error", err)
		} else {
			jobs = launcher
		}
	}

	uc := usecase.NewMonitorUseCase(lake.Store, ledger.Runs, queue, jobs, bootstrap.Locations(cfg), log)
	return uc, func() {
		for _, c := range cleanup {
			c()
		}
	}, nil
}

func jsonRenderer(cmd *cobra.Command) func(usecase.Snapshot, error) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return func(snap usecase.Snapshot, err error) {
		if err != nil {
			enc.Encode(map[string]string{"error": err.Error()})
			return
		}
		if encErr := enc.Encode(snap); encErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), encErr)
		}
	}
}
