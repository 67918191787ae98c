package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V4T54L/medallion/internal/domain"
)

// s3Event is the subset of an S3 (or MinIO) event notification we read.
type s3Event struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseNotifications accepts an S3 event notification or a single flat
// {bucket,key,size} object. Keys in S3 events are URL-encoded and are
// decoded here.
func ParseNotifications(body []byte) ([]domain.UploadNotification, error) {
	var ev s3Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if len(ev.Records) > 0 {
		out := make([]domain.UploadNotification, 0, len(ev.Records))
		for i, rec := range ev.Records {
			key, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				key = rec.S3.Object.Key
			}
			if key == "" {
				return nil, fmt.Errorf("%w: record %d has no object key", domain.ErrInvalidNotification, i)
			}
			out = append(out, domain.UploadNotification{Bucket: rec.S3.Bucket.Name, Key: key, Size: rec.S3.Object.Size})
		}
		return out, nil
	}

	var flat domain.UploadNotification
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if flat.Key == "" {
		return nil, fmt.Errorf("%w: no object key", domain.ErrInvalidNotification)
	}
	return []domain.UploadNotification{flat}, nil
}

// NotificationObserver counts handled notifications.
type NotificationObserver interface {
	ObserveNotification(layer domain.DataLayer)
}

// TriggerOptions are the defaults stamped on every invocation.
type TriggerOptions struct {
	Bucket      string
	Database    string
	Environment string
}

// TriggerResult reports what a notification caused.
type TriggerResult struct {
	Bucket    string           `json:"bucket"`
	Key       string           `json:"key"`
	DataLayer domain.DataLayer `json:"data_layer"`
	Stage     domain.Stage     `json:"stage,omitempty"`
	Launched  bool             `json:"launched"`
	LaunchID  string           `json:"launch_id,omitempty"`
}

// TriggerUseCase starts the next pipeline stage for uploaded objects.
type TriggerUseCase struct {
	launcher domain.StageLauncher
	observer NotificationObserver
	opts     TriggerOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewTriggerUseCase creates a new TriggerUseCase. observer may be nil.
func NewTriggerUseCase(launcher domain.StageLauncher, observer NotificationObserver, opts TriggerOptions, logger *slog.Logger) *TriggerUseCase {
	return &TriggerUseCase{
		launcher: launcher,
		observer: observer,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle classifies one upload and launches the stage that consumes its
// layer. Gold and unknown keys launch nothing.
func (uc *TriggerUseCase) Handle(ctx context.Context, n domain.UploadNotification) (TriggerResult, error) {
	ctx, span := otel.Tracer("trigger").Start(ctx, "HandleUpload")
	defer span.End()

	bucket := n.Bucket
	if bucket == "" {
		bucket = uc.opts.Bucket
	}
	layer := domain.ClassifyKey(n.Key)
	res := TriggerResult{Bucket: bucket, Key: n.Key, DataLayer: layer}
	span.SetAttributes(attribute.String("key", n.Key), attribute.String("data_layer", string(layer)))
	if uc.observer != nil {
		uc.observer.ObserveNotification(layer)
	}

	stage, ok := domain.NextStage(layer)
	if !ok {
		uc.logger.Info("upload does not start a stage", "bucket", bucket, "key", n.Key, "data_layer", layer)
		return res, nil
	}
	res.Stage = stage

	inv := domain.StageInvocation{
		ID:          uuid.NewString(),
		Stage:       stage,
		Bucket:      bucket,
		Database:    uc.opts.Database,
		Key:         n.Key,
		Size:        n.Size,
		DataLayer:   layer,
		TriggerTime: uc.now().UTC(),
		Environment: uc.opts.Environment,
	}
	launchID, err := uc.launcher.Launch(ctx, inv)
	if err != nil {
		return res, spanError(span, fmt.Errorf("failed to launch %s for %s: %w", stage, n.Key, err))
	}
	res.Launched = true
	res.LaunchID = launchID
	uc.logger.Info("stage launched", "stage", stage, "key", n.Key, "size", n.Size, "launch_id", launchID)
	return res, nil
}

// HandleEvent parses a notification body and handles each upload in order,
// stopping at the first launch failure.
func (uc *TriggerUseCase) HandleEvent(ctx context.Context, body []byte) ([]TriggerResult, error) {
	notifications, err := ParseNotifications(body)
	if err != nil {
		return nil, err
	}
	results := make([]TriggerResult, 0, len(notifications))
	for _, n := range notifications {
		res, err := uc.Handle(ctx, n)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// QueueLauncher implements domain.StageLauncher by enqueueing the invocation
// for a worker.
type QueueLauncher struct {
	queue domain.StageQueue
}

// NewQueueLauncher creates a launcher over queue.
func NewQueueLauncher(queue domain.StageQueue) *QueueLauncher {
	return &QueueLauncher{queue: queue}
}

// Launch enqueues inv and returns its id.
func (l *QueueLauncher) Launch(ctx context.Context, inv domain.StageInvocation) (string, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if err := l.queue.Enqueue(ctx, inv); err != nil {
		return "", err
	}
	return inv.ID, nil
}
