// Package etl holds the pure record-level and batch-level logic of the
// bronze→silver and silver→gold stages. Nothing in this package performs I/O.
package etl

import "github.com/V4T54L/medallion/internal/domain"

// ExpectedFields is the bronze column set every batch is reconciled against.
// client_ip is validated but never carried forward.
var ExpectedFields = []string{
	"event_id",
	"event_ts",
	"session_id",
	"method",
	"path",
	"status",
	"bytes_sent",
	"response_time_ms",
	"referrer",
	"user_agent",
	"user_id",
	"cache_status",
	"cdn_edge",
	"db_query_time_ms",
	"request_id",
}

// Columns returns the union of keys present in the batch.
func Columns(batch []domain.Record) map[string]struct{} {
	cols := make(map[string]struct{})
	for _, rec := range batch {
		for k := range rec {
			cols[k] = struct{}{}
		}
	}
	return cols
}

// Reconcile backfills every expected field that is absent from the batch's
// column set with a nil value on every record. Existing fields are never
// removed or renamed and record order is preserved. The input records are not
// modified; the returned slice holds copies when a backfill was needed.
// The second return value lists the backfilled fields in expected order.
func Reconcile(batch []domain.Record, expected []string) ([]domain.Record, []string) {
	cols := Columns(batch)

	var missing []string
	for _, field := range expected {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 || len(batch) == 0 {
		return batch, missing
	}

	out := make([]domain.Record, len(batch))
	for i, rec := range batch {
		cp := make(domain.Record, len(rec)+len(missing))
		for k, v := range rec {
			cp[k] = v
		}
		for _, field := range missing {
			cp[field] = nil
		}
		out[i] = cp
	}
	return out, missing
}
