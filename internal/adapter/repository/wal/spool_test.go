package wal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/medallion/internal/domain"
)

func setupTestSpool(t *testing.T, dir string, maxSegmentSize, maxTotalSize int64) *Spool {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	spool, err := NewSpool(dir, maxSegmentSize, maxTotalSize, logger)
	if err != nil {
		t.Fatalf("failed to create spool: %v", err)
	}
	t.Cleanup(func() { spool.Close() })
	return spool
}

func invocation(key string) domain.StageInvocation {
	return domain.StageInvocation{
		ID:          uuid.NewString(),
		Stage:       domain.StageBronzeToSilver,
		Bucket:      "lake",
		Key:         key,
		DataLayer:   domain.LayerBronze,
		TriggerTime: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func replayAll(t *testing.T, s *Spool) []domain.StageInvocation {
	t.Helper()
	var out []domain.StageInvocation
	if _, err := s.Replay(context.Background(), func(inv domain.StageInvocation) error {
		out = append(out, inv)
		return nil
	}); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	return out
}

func TestSpool_WriteAndReplayAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	spool := setupTestSpool(t, dir, 1024, 10*1024)

	invs := []domain.StageInvocation{
		invocation("bronze/logs_20240315_103000.json"),
		invocation("bronze/logs_20240315_104000.json"),
		invocation("bronze/logs_20240315_105000.json"),
	}
	for _, inv := range invs {
		if err := spool.Write(context.Background(), inv); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	spool.Close()

	reopened := setupTestSpool(t, dir, 1024, 10*1024)
	if reopened.Size() == 0 {
		t.Error("expected the reopened spool to account for existing segments")
	}
	got := replayAll(t, reopened)
	if len(got) != len(invs) {
		t.Fatalf("expected %d replayed invocations, got %d", len(invs), len(got))
	}
	for i := range invs {
		if got[i].ID != invs[i].ID || got[i].Key != invs[i].Key || !got[i].TriggerTime.Equal(invs[i].TriggerTime) {
			t.Errorf("replayed invocation %d = %+v, want %+v", i, got[i], invs[i])
		}
	}
}

func TestSpool_SegmentRotationKeepsOrder(t *testing.T) {
	spool := setupTestSpool(t, t.TempDir(), 200, 64*1024)

	var keys []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("bronze/logs_20240315_10%02d00.json", i)
		keys = append(keys, key)
		if err := spool.Write(context.Background(), invocation(key)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	segments, err := spool.segments()
	if err != nil {
		t.Fatalf("segments() error = %v", err)
	}
	if len(segments) < 2 {
		t.Errorf("expected at least 2 segments, got %d", len(segments))
	}
	got := replayAll(t, spool)
	for i, inv := range got {
		if inv.Key != keys[i] {
			t.Fatalf("replay order broken at %d: got %s, want %s", i, inv.Key, keys[i])
		}
	}
}

func TestSpool_ReplayStopsOnError(t *testing.T) {
	spool := setupTestSpool(t, t.TempDir(), 1024, 10*1024)
	for i := 0; i < 3; i++ {
		spool.Write(context.Background(), invocation(fmt.Sprintf("bronze/%d.json", i)))
	}

	queueDown := errors.New("queue down")
	calls := 0
	n, err := spool.Replay(context.Background(), func(inv domain.StageInvocation) error {
		calls++
		if calls == 2 {
			return queueDown
		}
		return nil
	})
	if !errors.Is(err, queueDown) {
		t.Fatalf("expected replay error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invocation handed over, got %d", n)
	}
	if got := replayAll(t, spool); len(got) != 3 {
		t.Errorf("expected every entry to stay spooled, got %d", len(got))
	}
}

func TestSpool_SkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	spool := setupTestSpool(t, dir, 1024, 10*1024)
	spool.Write(context.Background(), invocation("bronze/a.json"))
	spool.Close()

	segments, _ := spool.segments()
	f, err := os.OpenFile(segments[len(segments)-1], os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	f.WriteString(`{"id":"torn","sta`)
	f.Close()

	reopened := setupTestSpool(t, dir, 1024, 10*1024)
	if got := replayAll(t, reopened); len(got) != 1 || got[0].Key != "bronze/a.json" {
		t.Errorf("expected only the intact entry, got %+v", got)
	}
}

func TestSpool_Truncate(t *testing.T) {
	spool := setupTestSpool(t, t.TempDir(), 1024, 1024)
	if err := spool.Write(context.Background(), invocation("bronze/a.json")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if err := spool.Truncate(context.Background()); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}

	segments, _ := spool.segments()
	if len(segments) != 1 {
		t.Fatalf("expected 1 empty segment after truncate, got %d", len(segments))
	}
	if info, _ := os.Stat(segments[0]); info.Size() != 0 {
		t.Errorf("expected the new segment to be empty, size is %d", info.Size())
	}
	if spool.Size() != 0 {
		t.Errorf("expected size 0 after truncate, got %d", spool.Size())
	}
	if got := replayAll(t, spool); len(got) != 0 {
		t.Errorf("expected nothing to replay, got %d", len(got))
	}
}

func TestSpool_MaxTotalSize(t *testing.T) {
	inv := invocation("bronze/logs_20240315_103000.json")
	line, _ := json.Marshal(inv)
	spool := setupTestSpool(t, t.TempDir(), 64, int64(2*(len(line)+1)))

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = spool.Write(context.Background(), inv)
	}
	if !errors.Is(err, ErrSpoolFull) {
		t.Fatalf("expected ErrSpoolFull, got %v", err)
	}
	if got := replayAll(t, spool); len(got) != 2 {
		t.Errorf("expected 2 spooled invocations, got %d", len(got))
	}
}

func TestSpool_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "README"), []byte("not a segment"), filePerm)
	spool := setupTestSpool(t, dir, 1024, 1024)
	if got := replayAll(t, spool); len(got) != 0 {
		t.Errorf("expected nothing to replay, got %d", len(got))
	}
}
