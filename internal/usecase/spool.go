package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/medallion/internal/domain"
)

// InvocationSpool keeps invocations the launcher could not hand over.
type InvocationSpool interface {
	Write(ctx context.Context, inv domain.StageInvocation) error
	Replay(ctx context.Context, fn func(domain.StageInvocation) error) (int, error)
	Truncate(ctx context.Context) error
}

// SpoolingLauncher wraps a launcher and spools invocations locally while it
// fails. Drain hands them over once the launcher recovers. A drain that fails
// midway replays from the start next time, so an invocation may be launched
// twice; stages tolerate that.
type SpoolingLauncher struct {
	next   domain.StageLauncher
	spool  InvocationSpool
	logger *slog.Logger

	mu sync.Mutex
}

// NewSpoolingLauncher creates a launcher that falls back to spool.
func NewSpoolingLauncher(next domain.StageLauncher, spool InvocationSpool, logger *slog.Logger) *SpoolingLauncher {
	return &SpoolingLauncher{next: next, spool: spool, logger: logger.With("component", "spooling_launcher")}
}

// Launch tries the wrapped launcher and spools inv when it fails. The
// invocation counts as accepted once it is spooled.
func (l *SpoolingLauncher) Launch(ctx context.Context, inv domain.StageInvocation) (string, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	runID, err := l.next.Launch(ctx, inv)
	if err == nil {
		return runID, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if spoolErr := l.spool.Write(ctx, inv); spoolErr != nil {
		return "", errors.Join(err, fmt.Errorf("failed to spool invocation: %w", spoolErr))
	}
	l.logger.Warn("launcher unavailable, invocation spooled", "invocation_id", inv.ID, "stage", inv.Stage, "key", inv.Key, "error", err)
	return inv.ID, nil
}

// Drain replays every spooled invocation into the wrapped launcher and
// clears the spool when all of them were accepted.
func (l *SpoolingLauncher) Drain(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.spool.Replay(ctx, func(inv domain.StageInvocation) error {
		_, err := l.next.Launch(ctx, inv)
		return err
	})
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := l.spool.Truncate(ctx); err != nil {
		return n, fmt.Errorf("failed to truncate spool after drain: %w", err)
	}
	l.logger.Info("spool drained", "invocations", n)
	return n, nil
}

// Run drains the spool every interval until ctx is done.
func (l *SpoolingLauncher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Drain(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("spool drain failed, will retry", "error", err)
			}
		}
	}
}
