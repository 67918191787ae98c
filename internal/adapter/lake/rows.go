package lake

import (
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// Timestamps are stored as microseconds since the epoch and dates as days
// since the epoch, matching the precision of the processing watermark.

type silverRow struct {
	EventID             string  `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventTS             int64   `parquet:"name=event_ts, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	SessionID           *string `parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Method              string  `parquet:"name=method, type=BYTE_ARRAY, convertedtype=UTF8"`
	Path                string  `parquet:"name=path, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status              int32   `parquet:"name=status, type=INT32"`
	BytesSent           int64   `parquet:"name=bytes_sent, type=INT64"`
	ResponseTimeMS      int32   `parquet:"name=response_time_ms, type=INT32"`
	Referrer            string  `parquet:"name=referrer, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserAgent           *string `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	UserID              *string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CacheStatus         *string `parquet:"name=cache_status, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CDNEdge             *string `parquet:"name=cdn_edge, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	DBQueryTimeMS       *int32  `parquet:"name=db_query_time_ms, type=INT32, repetitiontype=OPTIONAL"`
	RequestID           *string `parquet:"name=request_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IsClientError       bool    `parquet:"name=is_client_error, type=BOOLEAN"`
	IsServerError       bool    `parquet:"name=is_server_error, type=BOOLEAN"`
	IsSuccess           bool    `parquet:"name=is_success, type=BOOLEAN"`
	IsRedirect          bool    `parquet:"name=is_redirect, type=BOOLEAN"`
	IsSlow              bool    `parquet:"name=is_slow, type=BOOLEAN"`
	IsFast              bool    `parquet:"name=is_fast, type=BOOLEAN"`
	IsLargeResponse     bool    `parquet:"name=is_large_response, type=BOOLEAN"`
	IsSmallResponse     bool    `parquet:"name=is_small_response, type=BOOLEAN"`
	EventDate           int32   `parquet:"name=event_date, type=INT32, convertedtype=DATE"`
	UserSession         string  `parquet:"name=user_session, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionDate         int32   `parquet:"name=session_date, type=INT32, convertedtype=DATE"`
	SessionHour         int32   `parquet:"name=session_hour, type=INT32"`
	ProcessingTimestamp int64   `parquet:"name=processing_timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ProcessingSeq       int64   `parquet:"name=processing_seq, type=INT64"`
	Year                int32   `parquet:"name=year, type=INT32"`
	Month               int32   `parquet:"name=month, type=INT32"`
	Day                 int32   `parquet:"name=day, type=INT32"`
}

type dailyRow struct {
	EventDate              int32   `parquet:"name=event_date, type=INT32, convertedtype=DATE"`
	TotalRequests          int64   `parquet:"name=total_requests, type=INT64"`
	UniqueUsers            int64   `parquet:"name=unique_users, type=INT64"`
	AvgResponseTime        float64 `parquet:"name=avg_response_time, type=DOUBLE"`
	TotalResponseTime      int64   `parquet:"name=total_response_time, type=INT64"`
	TotalBytesSent         int64   `parquet:"name=total_bytes_sent, type=INT64"`
	ClientErrorCount       int64   `parquet:"name=client_error_count, type=INT64"`
	ServerErrorCount       int64   `parquet:"name=server_error_count, type=INT64"`
	SuccessCount           int64   `parquet:"name=success_count, type=INT64"`
	RedirectCount          int64   `parquet:"name=redirect_count, type=INT64"`
	SlowRequests           int64   `parquet:"name=slow_requests, type=INT64"`
	FastRequests           int64   `parquet:"name=fast_requests, type=INT64"`
	LargeResponses         int64   `parquet:"name=large_responses, type=INT64"`
	SmallResponses         int64   `parquet:"name=small_responses, type=INT64"`
	ProcessingTimestamp    int64   `parquet:"name=processing_timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ProcessingSeq          int64   `parquet:"name=processing_seq, type=INT64"`
	ErrorRate              float64 `parquet:"name=error_rate, type=DOUBLE"`
	SuccessRate            float64 `parquet:"name=success_rate, type=DOUBLE"`
	AvgResponseTimeSeconds float64 `parquet:"name=avg_response_time_seconds, type=DOUBLE"`
	PerformanceGrade       string  `parquet:"name=performance_grade, type=BYTE_ARRAY, convertedtype=UTF8"`
	AvailabilityScore      float64 `parquet:"name=availability_score, type=DOUBLE"`
	Year                   int32   `parquet:"name=year, type=INT32"`
	Month                  int32   `parquet:"name=month, type=INT32"`
	Day                    int32   `parquet:"name=day, type=INT32"`
}

type sessionRow struct {
	UserSession       string `parquet:"name=user_session, type=BYTE_ARRAY, convertedtype=UTF8"`
	PageViews         int64  `parquet:"name=page_views, type=INT64"`
	SessionStart      int64  `parquet:"name=session_start, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	SessionEnd        int64  `parquet:"name=session_end, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	UniquePages       int64  `parquet:"name=unique_pages, type=INT64"`
	TotalResponseTime int64  `parquet:"name=total_response_time, type=INT64"`
	SessionDate       int32  `parquet:"name=session_date, type=INT32, convertedtype=DATE"`
	Year              int32  `parquet:"name=year, type=INT32"`
	Month             int32  `parquet:"name=month, type=INT32"`
	Day               int32  `parquet:"name=day, type=INT32"`
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func toDays(t time.Time) int32 {
	y, m, d := t.UTC().Date()
	return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func fromDays(v int32) time.Time { return time.Unix(int64(v)*86400, 0).UTC() }

func int32Ptr(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}

func intPtr(p *int32) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

func silverFromEvent(ev domain.ValidEvent) silverRow {
	return silverRow{
		EventID:             ev.EventID,
		EventTS:             toMicros(ev.EventTS),
		SessionID:           ev.SessionID,
		Method:              ev.Method,
		Path:                ev.Path,
		Status:              int32(ev.Status),
		BytesSent:           ev.BytesSent,
		ResponseTimeMS:      int32(ev.ResponseTimeMS),
		Referrer:            ev.Referrer,
		UserAgent:           ev.UserAgent,
		UserID:              ev.UserID,
		CacheStatus:         ev.CacheStatus,
		CDNEdge:             ev.CDNEdge,
		DBQueryTimeMS:       int32Ptr(ev.DBQueryTimeMS),
		RequestID:           ev.RequestID,
		IsClientError:       ev.IsClientError,
		IsServerError:       ev.IsServerError,
		IsSuccess:           ev.IsSuccess,
		IsRedirect:          ev.IsRedirect,
		IsSlow:              ev.IsSlow,
		IsFast:              ev.IsFast,
		IsLargeResponse:     ev.IsLargeResponse,
		IsSmallResponse:     ev.IsSmallResponse,
		EventDate:           toDays(ev.EventDate),
		UserSession:         ev.UserSession,
		SessionDate:         toDays(ev.SessionDate),
		SessionHour:         int32(ev.SessionHour),
		ProcessingTimestamp: toMicros(ev.ProcessingTS),
		ProcessingSeq:       ev.ProcessingSeq,
		Year:                int32(ev.Year),
		Month:               int32(ev.Month),
		Day:                 int32(ev.Day),
	}
}

func (r silverRow) event() domain.ValidEvent {
	return domain.ValidEvent{
		EventID:         r.EventID,
		EventTS:         fromMicros(r.EventTS),
		SessionID:       r.SessionID,
		Method:          r.Method,
		Path:            r.Path,
		Status:          int(r.Status),
		BytesSent:       r.BytesSent,
		ResponseTimeMS:  int(r.ResponseTimeMS),
		Referrer:        r.Referrer,
		UserAgent:       r.UserAgent,
		UserID:          r.UserID,
		CacheStatus:     r.CacheStatus,
		CDNEdge:         r.CDNEdge,
		DBQueryTimeMS:   intPtr(r.DBQueryTimeMS),
		RequestID:       r.RequestID,
		IsClientError:   r.IsClientError,
		IsServerError:   r.IsServerError,
		IsSuccess:       r.IsSuccess,
		IsRedirect:      r.IsRedirect,
		IsSlow:          r.IsSlow,
		IsFast:          r.IsFast,
		IsLargeResponse: r.IsLargeResponse,
		IsSmallResponse: r.IsSmallResponse,
		EventDate:       fromDays(r.EventDate),
		Year:            int(r.Year),
		Month:           int(r.Month),
		Day:             int(r.Day),
		UserSession:     r.UserSession,
		SessionDate:     fromDays(r.SessionDate),
		SessionHour:     int(r.SessionHour),
		ProcessingTS:    fromMicros(r.ProcessingTimestamp),
		ProcessingSeq:   r.ProcessingSeq,
	}
}

func (r silverRow) partition() partition {
	return partition{Year: int(r.Year), Month: int(r.Month), Day: int(r.Day)}
}

func dailyFromMetric(m domain.DailyMetric) dailyRow {
	return dailyRow{
		EventDate:              toDays(m.EventDate),
		TotalRequests:          m.TotalRequests,
		UniqueUsers:            m.UniqueUsers,
		AvgResponseTime:        m.AvgResponseTime,
		TotalResponseTime:      m.TotalResponseTime,
		TotalBytesSent:         m.TotalBytesSent,
		ClientErrorCount:       m.ClientErrorCount,
		ServerErrorCount:       m.ServerErrorCount,
		SuccessCount:           m.SuccessCount,
		RedirectCount:          m.RedirectCount,
		SlowRequests:           m.SlowRequests,
		FastRequests:           m.FastRequests,
		LargeResponses:         m.LargeResponses,
		SmallResponses:         m.SmallResponses,
		ProcessingTimestamp:    toMicros(m.ProcessingTS),
		ProcessingSeq:          m.ProcessingSeq,
		ErrorRate:              m.ErrorRate,
		SuccessRate:            m.SuccessRate,
		AvgResponseTimeSeconds: m.AvgResponseTimeSeconds,
		PerformanceGrade:       m.PerformanceGrade,
		AvailabilityScore:      m.AvailabilityScore,
		Year:                   int32(m.Year),
		Month:                  int32(m.Month),
		Day:                    int32(m.Day),
	}
}

func (r dailyRow) metric() domain.DailyMetric {
	return domain.DailyMetric{
		EventDate:              fromDays(r.EventDate),
		TotalRequests:          r.TotalRequests,
		UniqueUsers:            r.UniqueUsers,
		AvgResponseTime:        r.AvgResponseTime,
		TotalResponseTime:      r.TotalResponseTime,
		TotalBytesSent:         r.TotalBytesSent,
		ClientErrorCount:       r.ClientErrorCount,
		ServerErrorCount:       r.ServerErrorCount,
		SuccessCount:           r.SuccessCount,
		RedirectCount:          r.RedirectCount,
		SlowRequests:           r.SlowRequests,
		FastRequests:           r.FastRequests,
		LargeResponses:         r.LargeResponses,
		SmallResponses:         r.SmallResponses,
		ProcessingTS:           fromMicros(r.ProcessingTimestamp),
		ProcessingSeq:          r.ProcessingSeq,
		ErrorRate:              r.ErrorRate,
		SuccessRate:            r.SuccessRate,
		AvgResponseTimeSeconds: r.AvgResponseTimeSeconds,
		PerformanceGrade:       r.PerformanceGrade,
		AvailabilityScore:      r.AvailabilityScore,
		Year:                   int(r.Year),
		Month:                  int(r.Month),
		Day:                    int(r.Day),
	}
}

func (r dailyRow) partition() partition {
	return partition{Year: int(r.Year), Month: int(r.Month), Day: int(r.Day)}
}

func sessionFromMetric(m domain.SessionMetric) sessionRow {
	return sessionRow{
		UserSession:       m.UserSession,
		PageViews:         m.PageViews,
		SessionStart:      toMicros(m.SessionStart),
		SessionEnd:        toMicros(m.SessionEnd),
		UniquePages:       m.UniquePages,
		TotalResponseTime: m.TotalResponseTime,
		SessionDate:       toDays(m.SessionDate),
		Year:              int32(m.Year),
		Month:             int32(m.Month),
		Day:               int32(m.Day),
	}
}

func (r sessionRow) metric() domain.SessionMetric {
	return domain.SessionMetric{
		UserSession:       r.UserSession,
		PageViews:         r.PageViews,
		SessionStart:      fromMicros(r.SessionStart),
		SessionEnd:        fromMicros(r.SessionEnd),
		UniquePages:       r.UniquePages,
		TotalResponseTime: r.TotalResponseTime,
		SessionDate:       fromDays(r.SessionDate),
		Year:              int(r.Year),
		Month:             int(r.Month),
		Day:               int(r.Day),
	}
}

func (r sessionRow) partition() partition {
	return partition{Year: int(r.Year), Month: int(r.Month), Day: int(r.Day)}
}
