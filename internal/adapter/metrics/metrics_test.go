package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/medallion/internal/domain"
)

func TestObserveResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	wm := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	m.ObserveResult(domain.StageResult{
		Stage:         domain.StageBronzeToSilver,
		InputRecords:  1000,
		Rejected:      50,
		Duplicates:    20,
		OutputRecords: 930,
		Watermark:     wm,
	}, domain.RunSucceeded, 2*time.Second)

	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("bronze_to_silver", "output")); got != 930 {
		t.Errorf("expected 930 output records, got %v", got)
	}
	if got := testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("bronze_to_silver", "SUCCEEDED")); got != 1 {
		t.Errorf("expected 1 succeeded run, got %v", got)
	}
	if got := testutil.ToFloat64(m.GoldWatermark); got != float64(wm.Unix()) {
		t.Errorf("expected watermark %d, got %v", wm.Unix(), got)
	}
}

func TestNilMetricsAreIgnored(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveResult(domain.StageResult{}, domain.RunFailed, time.Second)
	m.ObserveNotification(domain.LayerBronze)
}

func TestObserveNotification(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry())
	m.ObserveNotification(domain.LayerSilver)
	m.ObserveNotification(domain.LayerSilver)
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("silver")); got != 2 {
		t.Errorf("expected 2 silver notifications, got %v", got)
	}
}
