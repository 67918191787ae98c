package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

const (
	defaultBatchSize = 10
	defaultClaimIdle = 30 * time.Minute
)

// WorkerUseCase consumes stage invocations from the queue and runs them.
type WorkerUseCase struct {
	queue     domain.StageQueue
	runner    *StageRunner
	logger    *slog.Logger
	consumer  string
	batchSize int
	claimIdle time.Duration
}

// NewWorkerUseCase creates a new worker for the given consumer name.
func NewWorkerUseCase(queue domain.StageQueue, runner *StageRunner, logger *slog.Logger, consumer string) *WorkerUseCase {
	return &WorkerUseCase{
		queue:     queue,
		runner:    runner,
		logger:    logger,
		consumer:  consumer,
		batchSize: defaultBatchSize,
		claimIdle: defaultClaimIdle,
	}
}

// Recover takes over invocations another worker left unacknowledged and
// runs them. It returns how many were handled.
func (uc *WorkerUseCase) Recover(ctx context.Context) (int, error) {
	invs, err := uc.queue.ClaimStale(ctx, uc.consumer, uc.claimIdle, int64(uc.batchSize))
	if err != nil {
		uc.logger.Error("failed to claim stale invocations", "error", err)
		return 0, err
	}
	if len(invs) > 0 {
		uc.logger.Info("claimed stale invocations", "count", len(invs))
	}
	return uc.handle(ctx, invs)
}

// ProcessBatch reads a batch of invocations, runs each stage and
// acknowledges it. Failed runs are parked in the dead-letter stream before
// the acknowledgement so that no invocation is lost.
func (uc *WorkerUseCase) ProcessBatch(ctx context.Context) (int, error) {
	invs, err := uc.queue.ReadInvocations(ctx, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read stage invocations", "error", err)
		return 0, err
	}
	if len(invs) == 0 {
		return 0, nil // No new invocations, not an error
	}
	uc.logger.Debug("read batch of invocations", "count", len(invs))
	return uc.handle(ctx, invs)
}

func (uc *WorkerUseCase) handle(ctx context.Context, invs []domain.StageInvocation) (int, error) {
	handled := 0
	for _, inv := range invs {
		if _, err := uc.runner.Execute(ctx, inv); err != nil {
			if dlqErr := uc.queue.MoveToDLQ(ctx, inv, err); dlqErr != nil {
				// Left pending; another worker reclaims it later.
				uc.logger.Error("failed to move invocation to DLQ", "error", dlqErr, "invocation_id", inv.ID)
				return handled, dlqErr
			}
			uc.logger.Warn("invocation moved to DLQ", "invocation_id", inv.ID, "stage", inv.Stage, "error", err)
		}
		if err := uc.queue.Acknowledge(ctx, inv.StreamMessageID); err != nil {
			uc.logger.Error("failed to acknowledge invocation", "error", err, "invocation_id", inv.ID)
			return handled, err
		}
		handled++
	}
	return handled, nil
}

// Run processes batches until ctx is cancelled, starting with a recovery pass.
func (uc *WorkerUseCase) Run(ctx context.Context) error {
	if _, err := uc.Recover(ctx); err != nil && ctx.Err() == nil {
		uc.logger.Warn("recovery pass failed, continuing", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("worker stopping")
			return nil
		default:
		}
		if _, err := uc.ProcessBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Avoid a hot loop while the queue is unreachable.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}
}
