// Package poll runs bounded wait loops: every loop has a deadline, a maximum
// number of attempts and an exponentially growing delay between attempts.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a loop runs out of attempts or time before
// its condition holds.
var ErrTimeout = errors.New("poll: condition not met before deadline")

// Backoff bounds a polling loop.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
	Timeout     time.Duration
}

// Delay returns the wait before the given attempt (0-based). The first
// attempt waits Initial and each later one grows by Multiplier, capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= mult
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Condition reports whether the awaited state has been reached. A non-nil
// error stops the loop immediately.
type Condition func(ctx context.Context, attempt int) (bool, error)

// Until evaluates cond until it reports true, it fails, the attempts are
// exhausted, the timeout elapses or ctx is cancelled. The first evaluation
// happens without delay.
func Until(ctx context.Context, b Backoff, cond Condition) error {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(b.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return wrapDone(ctx, attempt)
			case <-timer.C:
			}
		}
		done, err := cond(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrTimeout, attempts)
}

func wrapDone(ctx context.Context, attempt int) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %d attempts: %v", ErrTimeout, attempt, ctx.Err())
	}
	return ctx.Err()
}
