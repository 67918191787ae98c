package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/V4T54L/medallion/internal/domain"
)

// PipelineMetrics holds all Prometheus metrics for the pipeline binaries.
type PipelineMetrics struct {
	RecordsTotal       *prometheus.CounterVec
	StageRunsTotal     *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	GoldWatermark      prometheus.Gauge
	NotificationsTotal *prometheus.CounterVec
}

// NewPipelineMetrics initializes the metrics and registers them on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Subsystem: "stage",
			Name:      "records_total",
			Help:      "Records seen by a stage, by outcome.",
		}, []string{"stage", "outcome"}), // outcome: input, rejected, duplicate, output
		StageRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Completed stage runs by final status.",
		}, []string{"stage", "status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medallion",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of stage runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		GoldWatermark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "medallion",
			Subsystem: "gold",
			Name:      "watermark_unixtime",
			Help:      "Processing timestamp of the newest silver row aggregated into gold.",
		}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Subsystem: "trigger",
			Name:      "notifications_total",
			Help:      "Upload notifications handled, by data layer.",
		}, []string{"layer"}),
	}
}

// ObserveResult records the counters of a finished stage run.
func (m *PipelineMetrics) ObserveResult(res domain.StageResult, status domain.RunStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	stage := string(res.Stage)
	m.RecordsTotal.WithLabelValues(stage, "input").Add(float64(res.InputRecords))
	m.RecordsTotal.WithLabelValues(stage, "rejected").Add(float64(res.Rejected))
	m.RecordsTotal.WithLabelValues(stage, "duplicate").Add(float64(res.Duplicates))
	m.RecordsTotal.WithLabelValues(stage, "output").Add(float64(res.OutputRecords))
	m.StageRunsTotal.WithLabelValues(stage, string(status)).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if !res.Watermark.IsZero() {
		m.GoldWatermark.Set(float64(res.Watermark.UnixMicro()) / 1e6)
	}
}

// ObserveNotification counts a handled upload notification.
func (m *PipelineMetrics) ObserveNotification(layer domain.DataLayer) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(string(layer)).Inc()
}
