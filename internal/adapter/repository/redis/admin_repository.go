package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/medallion/internal/domain"
)

// AdminRepository implements domain.QueueAdminRepository for the stage queue.
type AdminRepository struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
	group     string
}

// NewAdminRepository creates a new Redis admin repository.
func NewAdminRepository(client *redis.Client, logger *slog.Logger, stream, dlqStream, group string) *AdminRepository {
	return &AdminRepository{
		client:    client,
		logger:    logger.With("component", "queue_admin"),
		stream:    stream,
		dlqStream: dlqStream,
		group:     group,
	}
}

// Status reports stream length, pending count, consumers and dead letters.
func (r *AdminRepository) Status(ctx context.Context) (domain.QueueStatus, error) {
	status := domain.QueueStatus{Stream: r.stream}

	pipe := r.client.Pipeline()
	lenCmd := pipe.XLen(ctx, r.stream)
	dlqCmd := pipe.XLen(ctx, r.dlqStream)
	if _, err := pipe.Exec(ctx); err != nil {
		return status, fmt.Errorf("failed to read queue lengths: %w", err)
	}
	status.Length = lenCmd.Val()
	status.DeadLetters = dlqCmd.Val()

	groups, err := r.GroupInfo(ctx)
	if err != nil {
		return status, err
	}
	for _, g := range groups {
		if g.Name == r.group {
			status.Pending = g.Pending
			status.Consumers = g.Consumers
		}
	}
	return status, nil
}

// GroupInfo retrieves information about all consumer groups of the stage stream.
func (r *AdminRepository) GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	groups, err := r.client.XInfoGroups(ctx, r.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", r.stream, err)
	}

	result := make([]domain.ConsumerGroupInfo, len(groups))
	for i, g := range groups {
		result[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return result, nil
}

// PendingInvocations lists invocations delivered but not yet acknowledged.
func (r *AdminRepository) PendingInvocations(ctx context.Context, count int64) ([]domain.PendingInvocation, error) {
	messages, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.stream,
		Group:  r.group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending invocations: %w", err)
	}

	result := make([]domain.PendingInvocation, len(messages))
	for i, m := range messages {
		result[i] = domain.PendingInvocation{
			ID:         m.ID,
			Consumer:   m.Consumer,
			IdleTime:   m.Idle,
			RetryCount: m.RetryCount,
		}
	}
	return result, nil
}

// DeadLetters returns the newest parked invocations, newest first.
func (r *AdminRepository) DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetter, error) {
	messages, err := r.client.XRevRangeN(ctx, r.dlqStream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	result := make([]domain.DeadLetter, 0, len(messages))
	for _, msg := range messages {
		result = append(result, r.deadLetter(msg))
	}
	return result, nil
}

// TrimDeadLetters keeps at most maxLen entries in the dead-letter stream.
func (r *AdminRepository) TrimDeadLetters(ctx context.Context, maxLen int64) (int64, error) {
	n, err := r.client.XTrimMaxLen(ctx, r.dlqStream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim dead letters: %w", err)
	}
	return n, nil
}

func (r *AdminRepository) deadLetter(msg redis.XMessage) domain.DeadLetter {
	dl := domain.DeadLetter{ID: msg.ID}
	if payload, ok := msg.Values[payloadField].(string); ok {
		if err := json.Unmarshal([]byte(payload), &dl.Invocation); err != nil {
			r.logger.Warn("failed to unmarshal dead letter", "message_id", msg.ID, "error", err)
		}
	}
	if reason, ok := msg.Values["error"].(string); ok {
		dl.Error = reason
	}
	if failedAt, ok := msg.Values["failed_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, failedAt); err == nil {
			dl.FailedAt = ts
		}
	}
	return dl
}
