package etl

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// timestampLayouts are tried in order when typing event_ts. Layouts without a
// zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Cast types a reconciled bronze record. Values that cannot be converted to
// the field's type become absent, the same outcome as a null in the source.
func Cast(rec domain.Record) domain.RawEvent {
	return domain.RawEvent{
		EventID:        asString(rec["event_id"]),
		EventTS:        asTime(rec["event_ts"]),
		SessionID:      asString(rec["session_id"]),
		ClientIP:       asString(rec["client_ip"]),
		Method:         asString(rec["method"]),
		Path:           asString(rec["path"]),
		Status:         asInt(rec["status"]),
		BytesSent:      asInt64(rec["bytes_sent"]),
		ResponseTimeMS: asInt(rec["response_time_ms"]),
		Referrer:       asString(rec["referrer"]),
		UserAgent:      asString(rec["user_agent"]),
		UserID:         asString(rec["user_id"]),
		CacheStatus:    asString(rec["cache_status"]),
		CDNEdge:        asString(rec["cdn_edge"]),
		DBQueryTimeMS:  asInt(rec["db_query_time_ms"]),
		RequestID:      asString(rec["request_id"]),
	}
}

// CastBatch types every record of a batch, preserving order.
func CastBatch(batch []domain.Record) []domain.RawEvent {
	out := make([]domain.RawEvent, len(batch))
	for i, rec := range batch {
		out[i] = Cast(rec)
	}
	return out
}

func asString(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case json.Number:
		s := t.String()
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(t)
		return &s
	case int64:
		s := strconv.FormatInt(t, 10)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	default:
		return nil
	}
}

func asInt64(v any) *int64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		n := int64(t)
		return &n
	case int64:
		return &t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return &n
		}
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func asInt(v any) *int {
	n := asInt64(v)
	if n == nil || *n > math.MaxInt32 || *n < math.MinInt32 {
		return nil
	}
	i := int(*n)
	return &i
}

func asTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
