// Package wal spools stage invocations to local segment files while the
// stage queue cannot accept them, and replays them once it can.
package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".log"
	dirPerm       = 0755
	filePerm      = 0644
)

// ErrSpoolFull is returned when a write would exceed the total size limit.
var ErrSpoolFull = errors.New("invocation spool is full")

// Spool is an append-only log of stage invocations split into segments.
type Spool struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu          sync.Mutex
	current     *os.File
	currentSize int64
	totalSize   int64
	seq         int64
}

// NewSpool opens the spool in dir, continuing the newest existing segment.
func NewSpool(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}
	s := &Spool{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "invocation_spool", "dir", dir),
	}
	if err := s.openLatestSegment(); err != nil {
		return nil, err
	}
	return s, nil
}

// Write appends inv and syncs it to disk.
func (s *Spool) Write(ctx context.Context, inv domain.StageInvocation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal stage invocation for spool: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalSize+int64(len(data)) > s.maxTotalSize {
		return fmt.Errorf("%w: %d of %d bytes used", ErrSpoolFull, s.totalSize, s.maxTotalSize)
	}
	if s.current == nil {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	n, err := s.current.Write(data)
	s.currentSize += int64(n)
	s.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to spool segment: %w", err)
	}
	if err := s.current.Sync(); err != nil {
		return fmt.Errorf("failed to sync spool segment: %w", err)
	}

	if s.currentSize >= s.maxSegmentSize {
		if err := s.rotate(); err != nil {
			s.logger.Error("failed to rotate spool segment", "error", err)
		}
	}
	return nil
}

// Replay calls fn for every spooled invocation in write order and returns
// how many were handed over. It stops at the first error from fn; spooled
// entries stay on disk until Truncate.
func (s *Spool) Replay(ctx context.Context, fn func(domain.StageInvocation) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.segments()
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, path := range segments {
		n, err := s.replaySegment(ctx, path, fn)
		replayed += n
		if err != nil {
			return replayed, err
		}
	}
	if replayed > 0 {
		s.logger.Info("spool replayed", "segments", len(segments), "invocations", replayed)
	}
	return replayed, nil
}

func (s *Spool) replaySegment(ctx context.Context, path string, fn func(domain.StageInvocation) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open spool segment %s: %w", path, err)
	}
	defer f.Close()

	replayed := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		var inv domain.StageInvocation
		if err := json.Unmarshal(scanner.Bytes(), &inv); err != nil {
			// A torn final line from a crash mid-write.
			s.logger.Warn("skipping unreadable spool entry", "segment", filepath.Base(path), "error", err)
			continue
		}
		if err := fn(inv); err != nil {
			return replayed, fmt.Errorf("spool replay stopped at invocation %s: %w", inv.ID, err)
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, fmt.Errorf("failed to scan spool segment %s: %w", path, err)
	}
	return replayed, nil
}

// Truncate removes every segment and starts an empty one.
func (s *Spool) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	segments, err := s.segments()
	if err != nil {
		return err
	}
	for _, path := range segments {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove spool segment %s: %w", path, err)
		}
	}
	s.totalSize = 0
	return s.rotate()
}

// Size returns the bytes currently spooled.
func (s *Spool) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

// Close closes the current segment.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

func (s *Spool) rotate() error {
	if s.current != nil {
		if err := s.current.Close(); err != nil {
			s.logger.Error("failed to close spool segment", "error", err)
		}
		s.current = nil
	}

	// Names sort in creation order even when the clock does not advance.
	s.seq++
	name := fmt.Sprintf("%s%020d-%06d%s", segmentPrefix, time.Now().UnixNano(), s.seq, segmentSuffix)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create spool segment %s: %w", path, err)
	}
	s.current = f
	s.currentSize = 0
	s.logger.Debug("rotated spool segment", "segment", name)
	return nil
}

func (s *Spool) openLatestSegment() error {
	segments, err := s.segments()
	if err != nil {
		return err
	}
	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat spool segment %s: %w", path, err)
		}
		s.totalSize += info.Size()
	}
	if len(segments) == 0 {
		return s.rotate()
	}

	latest := segments[len(segments)-1]
	info, err := os.Stat(latest)
	if err != nil {
		return fmt.Errorf("failed to stat spool segment %s: %w", latest, err)
	}
	if info.Size() >= s.maxSegmentSize {
		return s.rotate()
	}
	f, err := os.OpenFile(latest, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open spool segment %s: %w", latest, err)
	}
	s.current = f
	s.currentSize = info.Size()
	if s.totalSize > 0 {
		s.logger.Info("opened existing spool", "segments", len(segments), "bytes", s.totalSize)
	}
	return nil
}

func (s *Spool) segments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}
	var segments []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, filepath.Join(s.dir, name))
		}
	}
	sort.Strings(segments)
	return segments, nil
}
