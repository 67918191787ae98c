package dashboard

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/usecase"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Errorf("HumanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"Zero", time.Time{}, "Never"},
		{"Seconds", now.Add(-30 * time.Second), "Just now"},
		{"Minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"Hours", now.Add(-3 * time.Hour), "09:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.in, now); got != tt.want {
				t.Errorf("RelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	snap := usecase.Snapshot{
		TakenAt: now,
		RecentUploads: []domain.ObjectInfo{
			{Key: "bronze/logs_20240315_115800.json", Size: 2048, LastModified: now.Add(-2 * time.Minute)},
		},
		Silver:    usecase.LayerStats{Location: "silver/", Files: 3, Bytes: 4096, LastModified: now},
		GoldDaily: usecase.LayerStats{Location: "gold/daily_metrics/"},
		Queue:     &domain.QueueStatus{Stream: "stage_invocations", Length: 4, DeadLetters: 1},
		Runs: []domain.StageRun{
			{ID: "r1", Stage: domain.StageBronzeToSilver, Status: domain.RunFailed, ErrorMessage: "boom", StartedAt: now},
		},
		Jobs:   []domain.JobStatus{{Job: "medallion-silver-to-gold", State: "SUCCEEDED"}},
		Errors: map[string]string{"jobs": "throttled"},
	}

	var buf bytes.Buffer
	NewRenderer(&buf, true).Render(snap, nil)
	out := buf.String()

	for _, want := range []string{
		"MEDALLION PIPELINE MONITOR",
		"bronze/logs_20240315_115800.json",
		"2.0 KB",
		"2m ago",
		"silver",
		"3 files",
		"Never",
		"dead letters 1",
		"FAILED",
		"boom",
		"medallion-silver-to-gold",
		"jobs: throttled",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("expected no escape sequences with colors disabled")
	}
}

func TestRender_SnapshotError(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, true).Render(usecase.Snapshot{}, errors.New("access denied"))

	if !strings.Contains(buf.String(), "Snapshot failed: access denied") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if strings.Contains(buf.String(), "Layers") {
		t.Error("expected no sections after a failed snapshot")
	}
}
