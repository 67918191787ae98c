package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/poll"
)

const (
	recentUploads     = 5
	recentRuns        = 10
	recentDeadLetters = 5
)

// LayerStats summarises the objects under one lake location.
type LayerStats struct {
	Location     string    `json:"location"`
	Files        int       `json:"files"`
	Bytes        int64     `json:"bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Snapshot is one observation of every pipeline component. Errors holds a
// message per component that could not be read.
type Snapshot struct {
	TakenAt       time.Time           `json:"taken_at"`
	RecentUploads []domain.ObjectInfo `json:"recent_uploads"`
	Silver        LayerStats          `json:"silver"`
	GoldDaily     LayerStats          `json:"gold_daily"`
	GoldSessions  LayerStats          `json:"gold_sessions"`
	Runs          []domain.StageRun   `json:"runs,omitempty"`
	Queue         *domain.QueueStatus `json:"queue,omitempty"`
	DeadLetters   []domain.DeadLetter `json:"dead_letters,omitempty"`
	Jobs          []domain.JobStatus  `json:"jobs,omitempty"`
	Errors        map[string]string   `json:"errors,omitempty"`
}

// MonitorUseCase gathers pipeline status for an operator. Every collaborator
// except the object store is optional.
type MonitorUseCase struct {
	store  domain.ObjectStore
	runs   domain.RunRepository
	queue  domain.QueueAdminRepository
	jobs   domain.JobStatusReader
	locs   Locations
	logger *slog.Logger
	now    func() time.Time
}

// NewMonitorUseCase creates a new MonitorUseCase.
func NewMonitorUseCase(store domain.ObjectStore, runs domain.RunRepository, queue domain.QueueAdminRepository, jobs domain.JobStatusReader, locs Locations, logger *slog.Logger) *MonitorUseCase {
	return &MonitorUseCase{
		store:  store,
		runs:   runs,
		queue:  queue,
		jobs:   jobs,
		locs:   locs,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot reads the status of every component. It fails only when the lake
// itself cannot be listed; other failures are reported in Snapshot.Errors.
func (uc *MonitorUseCase) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: uc.now().UTC(), Errors: make(map[string]string)}

	bronze, err := uc.store.List(ctx, uc.locs.Bronze)
	if err != nil {
		return snap, fmt.Errorf("failed to list bronze uploads: %w", err)
	}
	snap.RecentUploads = latestObjects(bronze, recentUploads)

	snap.Silver = uc.layerStats(ctx, uc.locs.Silver, snap.Errors)
	snap.GoldDaily = uc.layerStats(ctx, uc.locs.GoldDaily, snap.Errors)
	snap.GoldSessions = uc.layerStats(ctx, uc.locs.GoldSessions, snap.Errors)

	if uc.runs != nil {
		runs, err := uc.runs.LatestRuns(ctx, recentRuns)
		if err != nil {
			snap.Errors["runs"] = err.Error()
		}
		snap.Runs = runs
	}
	if uc.queue != nil {
		status, err := uc.queue.Status(ctx)
		if err != nil {
			snap.Errors["queue"] = err.Error()
		} else {
			snap.Queue = &status
		}
		dead, err := uc.queue.DeadLetters(ctx, recentDeadLetters)
		if err != nil {
			snap.Errors["dead_letters"] = err.Error()
		}
		snap.DeadLetters = dead
	}
	if uc.jobs != nil {
		jobs, err := uc.jobs.LatestJobRuns(ctx)
		if err != nil {
			snap.Errors["jobs"] = err.Error()
		}
		snap.Jobs = jobs
	}
	return snap, nil
}

func (uc *MonitorUseCase) layerStats(ctx context.Context, location string, errs map[string]string) LayerStats {
	stats := LayerStats{Location: location}
	objects, err := uc.store.List(ctx, location)
	if err != nil {
		errs[location] = err.Error()
	}
	for _, obj := range objects {
		stats.Files++
		stats.Bytes += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return stats
}

// latestObjects returns up to n objects, newest first.
func latestObjects(objects []domain.ObjectInfo, n int) []domain.ObjectInfo {
	sorted := append([]domain.ObjectInfo(nil), objects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// WatchOptions bound a monitoring session.
type WatchOptions struct {
	Refresh time.Duration
	// Iterations caps the number of refreshes.
	Iterations int
	// MaxFailures is the number of consecutive failed snapshots tolerated.
	MaxFailures int
}

// ErrTooManyFailures is returned by Watch when snapshots keep failing.
var ErrTooManyFailures = errors.New("monitor: too many consecutive failures")

// Watch takes a snapshot every opts.Refresh and hands it to render until ctx
// is cancelled or the iterations are used up.
func (uc *MonitorUseCase) Watch(ctx context.Context, opts WatchOptions, render func(Snapshot, error)) error {
	failures := 0
	b := poll.Backoff{Initial: opts.Refresh, Max: opts.Refresh, Multiplier: 1, MaxAttempts: opts.Iterations}
	err := poll.Until(ctx, b, func(ctx context.Context, attempt int) (bool, error) {
		snap, err := uc.Snapshot(ctx)
		render(snap, err)
		if err != nil {
			failures++
			uc.logger.Warn("monitor snapshot failed", "error", err, "consecutive_failures", failures)
			if opts.MaxFailures > 0 && failures >= opts.MaxFailures {
				return false, fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
			return false, nil
		}
		failures = 0
		return false, nil
	})
	switch {
	case err == nil, errors.Is(err, poll.ErrTimeout), errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
