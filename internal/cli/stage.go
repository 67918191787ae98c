// Package cli holds the cobra commands behind the one-shot binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/V4T54L/medallion/internal/adapter/metrics"
	"github.com/V4T54L/medallion/internal/bootstrap"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/config"
	"github.com/V4T54L/medallion/internal/pkg/logger"
	"github.com/V4T54L/medallion/internal/usecase"
)

type stageFlags struct {
	runID       string
	bucket      string
	database    string
	sourceKey   string
	dataLayer   string
	triggerTime string
	environment string
}

// NewStageCommand returns the command that runs stage once. Its flags match
// the job arguments the trigger passes, and unknown flags added by the job
// runtime are ignored.
func NewStageCommand(stage domain.Stage) *cobra.Command {
	var f stageFlags
	cmd := &cobra.Command{
		Use:           string(stage),
		Short:         fmt.Sprintf("Run the %s stage once", stage),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel).With("stage", string(stage))
			if err := runStage(cmd.Context(), cfg, log, f.invocation(stage, cfg)); err != nil {
				log.Error("stage failed", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.FParseErrWhitelist.UnknownFlags = true

	flags := cmd.Flags()
	flags.StringVar(&f.runID, "run_id", "", "run identifier (generated when empty)")
	flags.StringVar(&f.bucket, "bucket", "", "lake bucket (defaults to LAKE_BUCKET)")
	flags.StringVar(&f.database, "database", "", "catalog database (defaults to LAKE_DATABASE)")
	flags.StringVar(&f.sourceKey, "source_key", "", "object key that triggered the run")
	flags.StringVar(&f.dataLayer, "data_layer", "", "layer of the triggering object")
	flags.StringVar(&f.triggerTime, "trigger_time", "", "RFC 3339 time of the triggering upload")
	flags.StringVar(&f.environment, "environment", "", "deployment environment (defaults to ENVIRONMENT)")
	return cmd
}

func (f stageFlags) invocation(stage domain.Stage, cfg *config.Config) domain.StageInvocation {
	inv := domain.StageInvocation{
		ID:          f.runID,
		Stage:       stage,
		Bucket:      orDefault(f.bucket, cfg.LakeBucket),
		Database:    orDefault(f.database, cfg.LakeDatabase),
		Key:         f.sourceKey,
		DataLayer:   domain.DataLayer(f.dataLayer),
		Environment: orDefault(f.environment, cfg.Environment),
		TriggerTime: time.Now().UTC(),
	}
	if t, err := time.Parse(time.RFC3339Nano, f.triggerTime); err == nil {
		inv.TriggerTime = t.UTC()
	}
	if inv.DataLayer == "" && inv.Key != "" {
		inv.DataLayer = domain.ClassifyKey(inv.Key)
	}
	return inv
}

func runStage(ctx context.Context, cfg *config.Config, log *slog.Logger, inv domain.StageInvocation) error {
	lake, err := bootstrap.OpenLakeFor(cfg, inv.Bucket, log)
	if err != nil {
		return err
	}
	ledger, err := bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer ledger.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg)

	stages, err := bootstrap.Stages(cfg, lake.Store, ledger.Daily, log)
	if err != nil {
		return err
	}
	runner := usecase.NewStageRunner(stages, ledger.Runs, m, log).BindBucket(lake.Bucket)

	res, runErr := runner.Execute(ctx, inv)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := metrics.Push(pushCtx, cfg.PushgatewayURL, "medallion_stage", reg, map[string]string{"stage": string(inv.Stage)})
		cancel()
		if err != nil {
			log.Warn("failed to push metrics", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	log.Info("stage finished",
		"run_id", res.RunID,
		"no_op", res.NoOp,
		"input", res.InputRecords,
		"rejected", res.Rejected,
		"duplicates", res.Duplicates,
		"output", res.OutputRecords,
	)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
