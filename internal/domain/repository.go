package domain

import (
	"context"
	"time"
)

// ObjectStore is a hierarchical blob store with prefix listing.
// This abstracts away the specific implementations (e.g., S3, local disk).
type ObjectStore interface {
	// List returns the objects under prefix. On failure it may return the
	// objects listed before the error together with the error.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Get reads a whole object. Missing keys yield ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put publishes a whole object. Readers never observe a partial object.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// StageQueue carries stage invocations from the trigger to the worker.
type StageQueue interface {
	// Enqueue adds an invocation to the durable queue.
	Enqueue(ctx context.Context, inv StageInvocation) error

	// ReadInvocations reads a batch of invocations for a consumer.
	ReadInvocations(ctx context.Context, consumer string, count int) ([]StageInvocation, error)

	// Acknowledge marks invocations as handled.
	Acknowledge(ctx context.Context, messageIDs ...string) error

	// MoveToDLQ parks a failed invocation with its failure cause.
	MoveToDLQ(ctx context.Context, inv StageInvocation, cause error) error

	// ClaimStale takes over invocations left pending by another consumer for
	// at least minIdle.
	ClaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]StageInvocation, error)
}

// QueueAdminRepository exposes queue inspection and maintenance.
type QueueAdminRepository interface {
	Status(ctx context.Context) (QueueStatus, error)
	GroupInfo(ctx context.Context) ([]ConsumerGroupInfo, error)
	PendingInvocations(ctx context.Context, count int64) ([]PendingInvocation, error)
	DeadLetters(ctx context.Context, count int64) ([]DeadLetter, error)
	TrimDeadLetters(ctx context.Context, maxLen int64) (int64, error)
}

// RunRepository is the ledger of stage runs.
type RunRepository interface {
	StartRun(ctx context.Context, run StageRun) error
	FinishRun(ctx context.Context, run StageRun) error
	LatestRuns(ctx context.Context, limit int) ([]StageRun, error)
}

// DailyMetricRepository stores daily metrics keyed by event date.
// Implementations merge incoming partial-day rollups into existing rows.
type DailyMetricRepository interface {
	UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error
	ListDailyMetrics(ctx context.Context, from, to time.Time) ([]DailyMetric, error)
}

// StageLauncher starts a pipeline stage for an invocation and returns an
// identifier of the started run or queued message.
type StageLauncher interface {
	Launch(ctx context.Context, inv StageInvocation) (string, error)
}

// JobStatusReader reports the latest run of each managed stage job.
type JobStatusReader interface {
	LatestJobRuns(ctx context.Context) ([]JobStatus, error)
}
