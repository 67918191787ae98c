package etl

import (
	"math"
	"sort"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

type dailyAcc struct {
	metric domain.DailyMetric
	users  map[string]struct{}
}

// AggregateDaily rolls silver rows up by event_date. Each output row carries
// the greatest processing position of its contributing rows so that the next
// run can derive its watermark. Rows are returned in date order.
func AggregateDaily(events []domain.ValidEvent) []domain.DailyMetric {
	groups := make(map[time.Time]*dailyAcc)
	for _, ev := range events {
		date := truncateDay(ev.EventDate)
		acc, ok := groups[date]
		if !ok {
			acc = &dailyAcc{
				metric: domain.DailyMetric{EventDate: date},
				users:  make(map[string]struct{}),
			}
			groups[date] = acc
		}
		m := &acc.metric
		m.TotalRequests++
		if ev.UserID != nil {
			acc.users[*ev.UserID] = struct{}{}
		}
		m.TotalResponseTime += int64(ev.ResponseTimeMS)
		m.TotalBytesSent += ev.BytesSent
		m.ClientErrorCount += b2i(ev.IsClientError)
		m.ServerErrorCount += b2i(ev.IsServerError)
		m.SuccessCount += b2i(ev.IsSuccess)
		m.RedirectCount += b2i(ev.IsRedirect)
		m.SlowRequests += b2i(ev.IsSlow)
		m.FastRequests += b2i(ev.IsFast)
		m.LargeResponses += b2i(ev.IsLargeResponse)
		m.SmallResponses += b2i(ev.IsSmallResponse)

		pos := Watermark{Timestamp: m.ProcessingTS, Seq: m.ProcessingSeq}
		if m.ProcessingTS.IsZero() || pos.Precedes(ev.ProcessingTS, ev.ProcessingSeq) {
			m.ProcessingTS = ev.ProcessingTS
			m.ProcessingSeq = ev.ProcessingSeq
		}
	}

	out := make([]domain.DailyMetric, 0, len(groups))
	for _, acc := range groups {
		m := acc.metric
		m.UniqueUsers = int64(len(acc.users))
		finishDaily(&m)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out
}

type sessionAcc struct {
	metric domain.SessionMetric
	pages  map[string]struct{}
}

// AggregateSessions rolls silver rows up by user_session. Sessions are
// partitioned by the date of their first event and returned in key order.
func AggregateSessions(events []domain.ValidEvent) []domain.SessionMetric {
	groups := make(map[string]*sessionAcc)
	for _, ev := range events {
		acc, ok := groups[ev.UserSession]
		if !ok {
			acc = &sessionAcc{
				metric: domain.SessionMetric{
					UserSession:  ev.UserSession,
					SessionStart: ev.EventTS,
					SessionEnd:   ev.EventTS,
				},
				pages: make(map[string]struct{}),
			}
			groups[ev.UserSession] = acc
		}
		m := &acc.metric
		m.PageViews++
		if ev.EventTS.Before(m.SessionStart) {
			m.SessionStart = ev.EventTS
		}
		if ev.EventTS.After(m.SessionEnd) {
			m.SessionEnd = ev.EventTS
		}
		acc.pages[ev.Path] = struct{}{}
		m.TotalResponseTime += int64(ev.ResponseTimeMS)
	}

	out := make([]domain.SessionMetric, 0, len(groups))
	for _, acc := range groups {
		m := acc.metric
		m.UniquePages = int64(len(acc.pages))
		m.SessionDate = truncateDay(m.SessionStart)
		m.Year, m.Month, m.Day = m.SessionDate.Year(), int(m.SessionDate.Month()), m.SessionDate.Day()
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserSession < out[j].UserSession })
	return out
}

// MergeDaily combines daily rows that share an event_date, as produced by
// repeated append-only runs, into one row per date. Counts and sums are added
// and the KPIs recomputed, never summed. UniqueUsers is added too and is
// therefore an upper bound when the same user appears in several runs.
func MergeDaily(rows []domain.DailyMetric) []domain.DailyMetric {
	merged := make(map[time.Time]*domain.DailyMetric)
	var order []time.Time
	for _, r := range rows {
		date := truncateDay(r.EventDate)
		m, ok := merged[date]
		if !ok {
			m = &domain.DailyMetric{EventDate: date}
			merged[date] = m
			order = append(order, date)
		}
		combineDaily(m, r)
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	out := make([]domain.DailyMetric, 0, len(order))
	for _, date := range order {
		m := *merged[date]
		finishDaily(&m)
		out = append(out, m)
	}
	return out
}

func combineDaily(dst *domain.DailyMetric, src domain.DailyMetric) {
	rt := src.TotalResponseTime
	if rt == 0 && src.AvgResponseTime > 0 {
		rt = int64(math.Round(src.AvgResponseTime * float64(src.TotalRequests)))
	}
	dst.TotalRequests += src.TotalRequests
	dst.UniqueUsers += src.UniqueUsers
	dst.TotalResponseTime += rt
	dst.TotalBytesSent += src.TotalBytesSent
	dst.ClientErrorCount += src.ClientErrorCount
	dst.ServerErrorCount += src.ServerErrorCount
	dst.SuccessCount += src.SuccessCount
	dst.RedirectCount += src.RedirectCount
	dst.SlowRequests += src.SlowRequests
	dst.FastRequests += src.FastRequests
	dst.LargeResponses += src.LargeResponses
	dst.SmallResponses += src.SmallResponses

	pos := Watermark{Timestamp: dst.ProcessingTS, Seq: dst.ProcessingSeq}
	if dst.ProcessingTS.IsZero() || pos.Precedes(src.ProcessingTS, src.ProcessingSeq) {
		dst.ProcessingTS = src.ProcessingTS
		dst.ProcessingSeq = src.ProcessingSeq
	}
}

// finishDaily derives the average, the KPIs and the partition keys.
func finishDaily(m *domain.DailyMetric) {
	if m.TotalRequests > 0 {
		m.AvgResponseTime = float64(m.TotalResponseTime) / float64(m.TotalRequests)
	} else {
		m.AvgResponseTime = 0
	}
	ApplyKPIs(m)
	m.Year, m.Month, m.Day = m.EventDate.Year(), int(m.EventDate.Month()), m.EventDate.Day()
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
