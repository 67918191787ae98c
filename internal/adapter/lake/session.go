// Package lake stores the silver and gold datasets as partitioned,
// Snappy-compressed Parquet files on an object store.
package lake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/medallion/internal/domain"
)

// Session is the handle a stage run uses for all lake I/O. It is created at
// the start of a run and closed when the run ends.
type Session struct {
	RunID     string
	StartedAt time.Time

	store   domain.ObjectStore
	logger  *slog.Logger
	written []string
}

// NewSession opens a session over store with a fresh run id.
func NewSession(store domain.ObjectStore, logger *slog.Logger) *Session {
	runID := uuid.NewString()
	return &Session{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		store:     store,
		logger:    logger.With("component", "lake", "run_id", runID),
	}
}

// Close ends the session.
func (s *Session) Close() {
	s.logger.Debug("lake session closed", "files_written", len(s.written), "elapsed", time.Since(s.StartedAt))
}

// Written returns the keys of the data files published in this session.
func (s *Session) Written() []string {
	return append([]string(nil), s.written...)
}

// Rollback deletes every data file published in this session, newest first,
// so a failed run leaves the lake as it found it. Keys that could not be
// deleted stay tracked and are reported in the error.
func (s *Session) Rollback(ctx context.Context) error {
	if len(s.written) == 0 {
		return nil
	}
	// Deletes must run even when the run failed because ctx ended.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	var kept []string
	for i := len(s.written) - 1; i >= 0; i-- {
		key := s.written[i]
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to roll back %s: %w", key, err))
			kept = append(kept, key)
		}
	}
	s.logger.Warn("rolled back data files", "files", len(s.written), "failed", len(kept))
	s.written = kept
	return errors.Join(errs...)
}

// List returns the objects under prefix. A failed listing may still return
// the objects read before the failure.
func (s *Session) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	return s.store.List(ctx, prefix)
}

// Exists reports whether any object lives under prefix.
func (s *Session) Exists(ctx context.Context, prefix string) (bool, error) {
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return false, err
	}
	return len(objects) > 0, nil
}

// ReadBronze loads and parses one bronze batch. The second return value
// counts malformed lines.
func (s *Session) ReadBronze(ctx context.Context, key string) ([]domain.Record, int, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return DecodeBronze(data)
}

// AppendSilver publishes silver rows as new files under location.
func (s *Session) AppendSilver(ctx context.Context, location string, events []domain.ValidEvent) ([]string, error) {
	rows := make([]silverRow, len(events))
	for i, ev := range events {
		rows[i] = silverFromEvent(ev)
	}
	return appendRows(ctx, s, location, rows)
}

// ReadSilver loads every silver row under location.
func (s *Session) ReadSilver(ctx context.Context, location string) ([]domain.ValidEvent, error) {
	rows, err := readRows[silverRow](ctx, s, location)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ValidEvent, len(rows))
	for i, r := range rows {
		out[i] = r.event()
	}
	return out, nil
}

// SilverEventIDs returns the event ids already stored under location.
func (s *Session) SilverEventIDs(ctx context.Context, location string) (map[string]struct{}, error) {
	rows, err := readRows[silverRow](ctx, s, location)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.EventID] = struct{}{}
	}
	return ids, nil
}

// AppendDaily publishes daily metric rows as new files under location.
func (s *Session) AppendDaily(ctx context.Context, location string, metrics []domain.DailyMetric) ([]string, error) {
	rows := make([]dailyRow, len(metrics))
	for i, m := range metrics {
		rows[i] = dailyFromMetric(m)
	}
	return appendRows(ctx, s, location, rows)
}

// ReadDaily loads every daily metric row under location as written, one row
// per date per run. An absent location yields no rows.
func (s *Session) ReadDaily(ctx context.Context, location string) ([]domain.DailyMetric, error) {
	rows, err := readRows[dailyRow](ctx, s, location)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyMetric, len(rows))
	for i, r := range rows {
		out[i] = r.metric()
	}
	return out, nil
}

// AppendSessions publishes session metric rows as new files under location.
func (s *Session) AppendSessions(ctx context.Context, location string, metrics []domain.SessionMetric) ([]string, error) {
	rows := make([]sessionRow, len(metrics))
	for i, m := range metrics {
		rows[i] = sessionFromMetric(m)
	}
	return appendRows(ctx, s, location, rows)
}

// ReadSessions loads every session metric row under location.
func (s *Session) ReadSessions(ctx context.Context, location string) ([]domain.SessionMetric, error) {
	rows, err := readRows[sessionRow](ctx, s, location)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionMetric, len(rows))
	for i, r := range rows {
		out[i] = r.metric()
	}
	return out, nil
}

// CountRows sums the row counts recorded in the footers of every data file
// under location.
func (s *Session) CountRows(ctx context.Context, location string) (int64, error) {
	keys, err := s.dataFiles(ctx, location)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			return 0, err
		}
		n, err := numRows(data)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		total += n
	}
	return total, nil
}

func (s *Session) dataFiles(ctx context.Context, location string) ([]string, error) {
	objects, err := s.store.List(ctx, dirPrefix(location))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", location, err)
	}
	var keys []string
	for _, obj := range objects {
		if isDataFile(obj.Key) {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// appendRows writes one file per partition. Each file is encoded fully in
// memory before a single Put, so a failure never leaves a truncated file.
// Files already published stay in place when a later partition fails; the
// caller undoes them with Rollback.
func appendRows[R interface{ partition() partition }](ctx context.Context, s *Session, location string, rows []R) ([]string, error) {
	order, groups := groupByPartition(rows)
	keys := make([]string, 0, len(order))
	for _, p := range order {
		data, err := encode(groups[p])
		if err != nil {
			return keys, fmt.Errorf("partition %s: %w", p.path(), err)
		}
		key := partKey(location, p, s.RunID)
		if err := s.store.Put(ctx, key, data); err != nil {
			return keys, fmt.Errorf("failed to publish %s: %w", key, err)
		}
		keys = append(keys, key)
		s.written = append(s.written, key)
		s.logger.Debug("data file published", "key", key, "rows", len(groups[p]), "bytes", len(data))
	}
	return keys, nil
}

func readRows[R any](ctx context.Context, s *Session, location string) ([]R, error) {
	keys, err := s.dataFiles(ctx, location)
	if err != nil {
		return nil, err
	}
	var out []R
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		rows, err := decode[R](data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
