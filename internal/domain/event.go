package domain

import "time"

// Record is a bronze record exactly as it was decoded from a newline-delimited
// JSON batch. Keys are discovered at runtime; RawEvent is its typed form.
type Record map[string]any

// RawEvent is the typed form of a bronze web-server log record. Every field is
// optional: a nil pointer means the field was absent, null, or could not be
// converted to the field's type.
type RawEvent struct {
	EventID        *string
	EventTS        *time.Time
	SessionID      *string
	ClientIP       *string
	Method         *string
	Path           *string
	Status         *int
	BytesSent      *int64
	ResponseTimeMS *int
	Referrer       *string
	UserAgent      *string
	UserID         *string
	CacheStatus    *string
	CDNEdge        *string
	DBQueryTimeMS  *int
	RequestID      *string
}

// ValidEvent is a silver-layer record: a RawEvent that passed validation,
// stripped of client_ip, and enriched with derived indicator and partition
// fields. Optional source fields stay optional.
type ValidEvent struct {
	EventID        string
	EventTS        time.Time
	SessionID      *string
	Method         string
	Path           string
	Status         int
	BytesSent      int64
	ResponseTimeMS int
	Referrer       string
	UserAgent      *string
	UserID         *string
	CacheStatus    *string
	CDNEdge        *string
	DBQueryTimeMS  *int
	RequestID      *string

	IsClientError   bool
	IsServerError   bool
	IsSuccess       bool
	IsRedirect      bool
	IsSlow          bool
	IsFast          bool
	IsLargeResponse bool
	IsSmallResponse bool
	EventDate       time.Time
	Year            int
	Month           int
	Day             int
	UserSession     string
	SessionDate     time.Time
	SessionHour     int
	ProcessingTS    time.Time
	ProcessingSeq   int64
}

// DailyMetric is one gold-layer daily rollup row. A date may appear in more
// than one row because every run appends the rollup of the rows it saw.
type DailyMetric struct {
	EventDate         time.Time
	TotalRequests     int64
	UniqueUsers       int64
	AvgResponseTime   float64
	TotalResponseTime int64
	TotalBytesSent    int64
	ClientErrorCount  int64
	ServerErrorCount  int64
	SuccessCount      int64
	RedirectCount     int64
	SlowRequests      int64
	FastRequests      int64
	LargeResponses    int64
	SmallResponses    int64
	ProcessingTS      time.Time
	ProcessingSeq     int64

	ErrorRate              float64
	SuccessRate            float64
	AvgResponseTimeSeconds float64
	PerformanceGrade       string
	AvailabilityScore      float64

	Year  int
	Month int
	Day   int
}

// SessionMetric is one gold-layer session rollup row.
type SessionMetric struct {
	UserSession       string
	PageViews         int64
	SessionStart      time.Time
	SessionEnd        time.Time
	UniquePages       int64
	TotalResponseTime int64
	SessionDate       time.Time
	Year              int
	Month             int
	Day               int
}
