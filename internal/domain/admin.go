package domain

import "time"

// QueueStatus reports the depth of the stage queue.
type QueueStatus struct {
	Stream      string `json:"stream"`
	Length      int64  `json:"length"`
	Pending     int64  `json:"pending"`
	Consumers   int64  `json:"consumers"`
	DeadLetters int64  `json:"dead_letters"`
}

// ConsumerGroupInfo represents information about a stage queue consumer group.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingInvocation is an invocation delivered to a worker but not yet acknowledged.
type PendingInvocation struct {
	ID         string        `json:"id"`
	Consumer   string        `json:"consumer"`
	IdleTime   time.Duration `json:"idle_time_ms"`
	RetryCount int64         `json:"retry_count"`
}

// DeadLetter is an invocation that failed and was parked.
type DeadLetter struct {
	ID         string          `json:"id"`
	Invocation StageInvocation `json:"invocation"`
	Error      string          `json:"error"`
	FailedAt   time.Time       `json:"failed_at"`
}

// JobStatus is the state of the latest run of a managed ETL job.
type JobStatus struct {
	Job          string     `json:"job"`
	RunID        string     `json:"run_id"`
	State        string     `json:"state"`
	StartedOn    time.Time  `json:"started_on"`
	CompletedOn  *time.Time `json:"completed_on,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
