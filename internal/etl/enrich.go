package etl

import (
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// Enrichment thresholds.
const (
	SlowResponseMS     = 1000
	FastResponseMS     = 100
	LargeResponseBytes = 100000
	SmallResponseBytes = 1000

	// DefaultReferrer replaces a missing referrer.
	DefaultReferrer = "direct"
	// AnonymousUser keys sessions of requests without a user_id.
	AnonymousUser = "anonymous"

	sessionHourLayout = "2006-01-02-15"
)

// Enrich derives the silver record from a validated event. processedAt is
// the wall-clock time of the transformation and seq the row's position in the
// run; together they form the watermark of the row. Enrich must only be called
// on events accepted by Validate.
func Enrich(ev domain.RawEvent, processedAt time.Time, seq int64) domain.ValidEvent {
	status := derefInt(ev.Status)
	rt := derefInt(ev.ResponseTimeMS)
	bytes := derefInt64(ev.BytesSent)
	ts := derefTime(ev.EventTS).UTC()
	date := truncateDay(ts)

	referrer := DefaultReferrer
	if ev.Referrer != nil {
		referrer = *ev.Referrer
	}

	user := AnonymousUser
	if ev.UserID != nil {
		user = *ev.UserID
	}

	return domain.ValidEvent{
		EventID:        derefString(ev.EventID),
		EventTS:        ts,
		SessionID:      ev.SessionID,
		Method:         derefString(ev.Method),
		Path:           derefString(ev.Path),
		Status:         status,
		BytesSent:      bytes,
		ResponseTimeMS: rt,
		Referrer:       referrer,
		UserAgent:      ev.UserAgent,
		UserID:         ev.UserID,
		CacheStatus:    ev.CacheStatus,
		CDNEdge:        ev.CDNEdge,
		DBQueryTimeMS:  ev.DBQueryTimeMS,
		RequestID:      ev.RequestID,

		IsClientError:   status >= 400 && status <= 499,
		IsServerError:   status >= 500 && status <= 599,
		IsSuccess:       status >= 200 && status <= 299,
		IsRedirect:      status >= 300 && status <= 399,
		IsSlow:          rt > SlowResponseMS,
		IsFast:          rt < FastResponseMS,
		IsLargeResponse: bytes > LargeResponseBytes,
		IsSmallResponse: bytes < SmallResponseBytes,
		EventDate:       date,
		Year:            date.Year(),
		Month:           int(date.Month()),
		Day:             date.Day(),
		UserSession:     user + "_" + ts.Format(sessionHourLayout),
		SessionDate:     date,
		SessionHour:     ts.Hour(),
		ProcessingTS:    processedAt.UTC().Truncate(time.Microsecond),
		ProcessingSeq:   seq,
	}
}

// EnrichBatch enriches a validated batch. All rows share processedAt and are
// numbered in input order.
func EnrichBatch(events []domain.RawEvent, processedAt time.Time) []domain.ValidEvent {
	out := make([]domain.ValidEvent, len(events))
	for i, ev := range events {
		out[i] = Enrich(ev, processedAt, int64(i))
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefTime(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return *p
}
