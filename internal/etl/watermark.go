package etl

import (
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// Watermark marks the newest silver row already folded into gold output.
// Seq breaks ties between rows that share a processing timestamp.
type Watermark struct {
	Timestamp time.Time
	Seq       int64
}

// IsZero reports whether w carries no position.
func (w Watermark) IsZero() bool {
	return w.Timestamp.IsZero()
}

// Precedes reports whether the position (ts, seq) lies strictly after w.
func (w Watermark) Precedes(ts time.Time, seq int64) bool {
	if ts.Equal(w.Timestamp) {
		return seq > w.Seq
	}
	return ts.After(w.Timestamp)
}

// HighWatermark returns the greatest processing position recorded in
// previously written daily metrics. It reports false when there is no prior
// output, i.e. on the first run.
func HighWatermark(rows []domain.DailyMetric) (Watermark, bool) {
	var (
		wm    Watermark
		found bool
	)
	for _, r := range rows {
		if r.ProcessingTS.IsZero() {
			continue
		}
		if !found || wm.Precedes(r.ProcessingTS, r.ProcessingSeq) {
			wm = Watermark{Timestamp: r.ProcessingTS, Seq: r.ProcessingSeq}
			found = true
		}
	}
	return wm, found
}

// FilterNew keeps the silver rows strictly after the watermark, in order.
// A zero watermark keeps everything.
func FilterNew(events []domain.ValidEvent, wm Watermark) []domain.ValidEvent {
	if wm.IsZero() {
		return events
	}
	out := make([]domain.ValidEvent, 0, len(events))
	for _, ev := range events {
		if wm.Precedes(ev.ProcessingTS, ev.ProcessingSeq) {
			out = append(out, ev)
		}
	}
	return out
}
