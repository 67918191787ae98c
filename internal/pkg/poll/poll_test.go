package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestUntil(t *testing.T) {
	fast := Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}

	t.Run("Succeeds after retries", func(t *testing.T) {
		calls := 0
		err := Until(context.Background(), fast, func(ctx context.Context, attempt int) (bool, error) {
			calls++
			return attempt == 2, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Exhausts attempts", func(t *testing.T) {
		calls := 0
		err := Until(context.Background(), fast, func(ctx context.Context, attempt int) (bool, error) {
			calls++
			return false, nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if calls != 5 {
			t.Errorf("expected 5 calls, got %d", calls)
		}
	})

	t.Run("Condition error stops the loop", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := Until(context.Background(), fast, func(ctx context.Context, attempt int) (bool, error) {
			calls++
			return false, boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Errorf("expected boom after one call, got %v after %d", err, calls)
		}
	})

	t.Run("Deadline", func(t *testing.T) {
		slow := Backoff{Initial: time.Hour, MaxAttempts: 3, Timeout: 10 * time.Millisecond}
		err := Until(context.Background(), slow, func(ctx context.Context, attempt int) (bool, error) {
			return false, nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Backoff{Initial: time.Hour, MaxAttempts: 3}
		err := Until(ctx, slow, func(ctx context.Context, attempt int) (bool, error) {
			cancel()
			return false, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
