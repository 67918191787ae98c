// Package notify consumes object-store upload notifications from Kafka, the
// queue target MinIO and S3 bridges publish bucket events to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/poll"
	"github.com/V4T54L/medallion/internal/usecase"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// UploadHandler launches the stage for one upload.
type UploadHandler interface {
	Handle(ctx context.Context, n domain.UploadNotification) (usecase.TriggerResult, error)
}

// Options configure a Consumer.
type Options struct {
	Brokers []string
	Topic   string
	GroupID string
	// Retry bounds redelivery of a message whose stage launch failed.
	Retry poll.Backoff
}

// Consumer reads notifications from a topic and hands them to the trigger.
// Offsets are committed only after a message was handled, so a crash
// replays at most the message in flight.
type Consumer struct {
	reader  MessageReader
	handler UploadHandler
	retry   poll.Backoff
	logger  *slog.Logger
}

// NewConsumer creates a consumer group reader on opts.Topic.
func NewConsumer(opts Options, handler UploadHandler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		Topic:    opts.Topic,
		GroupID:  opts.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewConsumerWithReader(reader, handler, opts.Retry, logger)
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(reader MessageReader, handler UploadHandler, retry poll.Backoff, logger *slog.Logger) *Consumer {
	return &Consumer{reader: reader, handler: handler, retry: retry, logger: logger}
}

// Run consumes until ctx is cancelled. It returns an error when fetching or
// committing fails, or when a message still cannot be handled after the
// retry budget; the message is then left uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("notification consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("notification consumer stopping")
				return nil
			}
			return fmt.Errorf("failed to fetch notification: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("notify").Start(ctx, "ConsumeNotification")
	defer span.End()
	span.SetAttributes(
		attribute.String("topic", msg.Topic),
		attribute.Int("partition", msg.Partition),
		attribute.Int64("offset", msg.Offset),
	)

	pending, err := usecase.ParseNotifications(msg.Value)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNotification) {
			c.logger.Warn("skipping invalid notification", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			return nil
		}
		return err
	}
	span.SetAttributes(attribute.Int("records", len(pending)))

	// Records whose stage launched are not relaunched on retry.
	err = poll.Until(ctx, c.retry, func(ctx context.Context, attempt int) (bool, error) {
		var failed []domain.UploadNotification
		for _, n := range pending {
			if _, err := c.handler.Handle(ctx, n); err != nil {
				c.logger.Error("failed to handle upload", "offset", msg.Offset, "key", n.Key, "attempt", attempt+1, "error", err)
				failed = append(failed, n)
			}
		}
		if len(failed) == 0 {
			c.logger.Debug("notification handled", "offset", msg.Offset, "records", len(pending))
			return true, nil
		}
		pending = failed
		return false, nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notification at offset %d not handled: %w", msg.Offset, err)
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
