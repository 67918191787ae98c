package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/medallion/internal/domain"
)

const (
	payloadField = "payload"
	readBlock    = 2 * time.Second
)

// StageQueue implements domain.StageQueue on a Redis Stream consumed by a
// single consumer group. Failed invocations are copied to a dead-letter stream.
type StageQueue struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
	group     string
}

// NewStageQueue creates the queue and ensures the consumer group exists.
func NewStageQueue(ctx context.Context, client *redis.Client, logger *slog.Logger, stream, dlqStream, group string) (*StageQueue, error) {
	q := &StageQueue{
		client:    client,
		logger:    logger.With("component", "stage_queue", "stream", stream),
		stream:    stream,
		dlqStream: dlqStream,
		group:     group,
	}
	if err := q.setupConsumerGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *StageQueue) setupConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group %s: %w", q.group, err)
	}
	return nil
}

// Enqueue adds an invocation to the stream.
func (q *StageQueue) Enqueue(ctx context.Context, inv domain.StageInvocation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal stage invocation: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{payloadField: payload, "stage": string(inv.Stage)},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD stage invocation: %w", err)
	}
	return nil
}

// ReadInvocations blocks briefly for new invocations. It returns no
// invocations and no error when the stream is idle.
func (q *StageQueue) ReadInvocations(ctx context.Context, consumer string, count int) ([]domain.StageInvocation, error) {
	args := &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP stage invocations: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return q.decodeMessages(ctx, streams[0].Messages), nil
}

// Acknowledge marks invocations as handled.
func (q *StageQueue) Acknowledge(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK stage invocations: %w", err)
	}
	return nil
}

// MoveToDLQ copies a failed invocation and its cause to the dead-letter stream.
func (q *StageQueue) MoveToDLQ(ctx context.Context, inv domain.StageInvocation, cause error) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation for DLQ: %w", err)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	args := &redis.XAddArgs{
		Stream: q.dlqStream,
		Values: map[string]interface{}{
			payloadField:      payload,
			"error":           reason,
			"original_stream": q.stream,
			"original_msg_id": inv.StreamMessageID,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to DLQ: %w", err)
	}
	q.logger.Warn("moved invocation to DLQ", "invocation_id", inv.ID, "stage", inv.Stage, "error", reason)
	return nil
}

// ClaimStale takes over invocations another consumer read but never
// acknowledged, e.g. because its process died mid-run.
func (q *StageQueue) ClaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]domain.StageInvocation, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invocations: %w", err)
	}

	var ids []string
	for _, p := range pending {
		if p.Consumer != consumer {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale invocations: %w", err)
	}
	q.logger.Info("claimed stale invocations", "count", len(claimed))
	return q.decodeMessages(ctx, claimed), nil
}

// decodeMessages parses stream entries. Entries that cannot be parsed are
// acknowledged and dropped so they are not redelivered forever.
func (q *StageQueue) decodeMessages(ctx context.Context, messages []redis.XMessage) []domain.StageInvocation {
	out := make([]domain.StageInvocation, 0, len(messages))
	for _, msg := range messages {
		inv, err := decodeInvocation(msg)
		if err != nil {
			q.logger.Warn("dropping unreadable stage invocation", "message_id", msg.ID, "error", err)
			if ackErr := q.Acknowledge(ctx, msg.ID); ackErr != nil {
				q.logger.Error("failed to acknowledge unreadable invocation", "message_id", msg.ID, "error", ackErr)
			}
			continue
		}
		out = append(out, inv)
	}
	return out
}

func decodeInvocation(msg redis.XMessage) (domain.StageInvocation, error) {
	var inv domain.StageInvocation
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		return inv, errors.New("message has no payload field")
	}
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return inv, fmt.Errorf("invalid invocation payload: %w", err)
	}
	inv.StreamMessageID = msg.ID
	return inv, nil
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
