package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// StageRunner dispatches invocations to their stage and records every run in
// the ledger and the metrics.
type StageRunner struct {
	stages   map[domain.Stage]Stage
	runs     domain.RunRepository
	observer ResultObserver
	logger   *slog.Logger
	now      func() time.Time
	bucket   string
}

// NewStageRunner creates a runner. runs and observer may be nil.
func NewStageRunner(stages map[domain.Stage]Stage, runs domain.RunRepository, observer ResultObserver, logger *slog.Logger) *StageRunner {
	return &StageRunner{
		stages:   stages,
		runs:     runs,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// BindBucket makes the runner refuse invocations naming a bucket other than
// the one its stages read and write.
func (r *StageRunner) BindBucket(bucket string) *StageRunner {
	r.bucket = bucket
	return r
}

// Execute runs the stage named by inv. Ledger failures are logged and never
// change the outcome of the stage.
func (r *StageRunner) Execute(ctx context.Context, inv domain.StageInvocation) (domain.StageResult, error) {
	stage, ok := r.stages[inv.Stage]
	if !ok {
		return domain.StageResult{Stage: inv.Stage}, fmt.Errorf("%w: %q", domain.ErrUnknownStage, inv.Stage)
	}
	if r.bucket != "" && inv.Bucket != "" && inv.Bucket != r.bucket {
		return domain.StageResult{Stage: inv.Stage}, fmt.Errorf("%w: stages run on %q, invocation names %q", domain.ErrBucketMismatch, r.bucket, inv.Bucket)
	}

	started := r.now().UTC()
	run := domain.StageRun{
		ID:         inv.ID,
		Stage:      inv.Stage,
		Status:     domain.RunRunning,
		TriggerKey: inv.Key,
		StartedAt:  started,
	}
	if run.ID == "" {
		run.ID = fmt.Sprintf("%s-%d", inv.Stage, started.UnixNano())
	}
	if r.runs != nil {
		if err := r.runs.StartRun(ctx, run); err != nil {
			r.logger.Warn("failed to record run start", "run_id", run.ID, "error", err)
		}
	}

	r.logger.Info("stage started", "stage", inv.Stage, "run_id", run.ID, "key", inv.Key)
	res, err := stage.Run(ctx, inv)
	finished := r.now().UTC()

	run.CompletedAt = &finished
	run.InputCount = res.InputRecords
	run.OutputCount = res.OutputRecords
	run.Status = domain.RunSucceeded
	if err != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = err.Error()
	}
	if r.runs != nil {
		// The stage may have consumed ctx; the ledger write still has to land.
		if ferr := r.runs.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			r.logger.Warn("failed to record run finish", "run_id", run.ID, "error", ferr)
		}
	}
	if r.observer != nil {
		r.observer.ObserveResult(res, run.Status, finished.Sub(started))
	}

	if err != nil {
		r.logger.Error("stage failed", "stage", inv.Stage, "run_id", run.ID, "error", err, "duration", finished.Sub(started))
		return res, err
	}
	r.logger.Info("stage finished",
		"stage", inv.Stage,
		"run_id", run.ID,
		"no_op", res.NoOp,
		"input", res.InputRecords,
		"output", res.OutputRecords,
		"duration", finished.Sub(started),
	)
	return res, nil
}
