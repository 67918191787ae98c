package domain

import "time"

// RunStatus is the lifecycle state of a stage run.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// StageResult summarises one execution of a stage. Counts are zero when the
// stage had nothing to do.
type StageResult struct {
	Stage         Stage     `json:"stage"`
	RunID         string    `json:"run_id"`
	SourceKey     string    `json:"source_key,omitempty"`
	InputRecords  int       `json:"input_records"`
	Rejected      int       `json:"rejected"`
	Duplicates    int       `json:"duplicates"`
	OutputRecords int       `json:"output_records"`
	DailyMetrics  int       `json:"daily_metrics"`
	SessionRows   int       `json:"session_metrics"`
	NoOp          bool      `json:"no_op"`
	Watermark     time.Time `json:"watermark,omitempty"`
}

// StageRun is a ledger entry for one stage execution.
type StageRun struct {
	ID           string     `json:"id"`
	Stage        Stage      `json:"stage"`
	Status       RunStatus  `json:"status"`
	TriggerKey   string     `json:"trigger_key,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	InputCount   int        `json:"input_count"`
	OutputCount  int        `json:"output_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r StageRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ObjectInfo describes one object returned by a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
