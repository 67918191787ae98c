package etl

import (
	"testing"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

func TestNullCounts(t *testing.T) {
	full := rawEvent("a", 200)
	sparse := rawEvent("b", 200)
	sparse.UserID = nil
	sparse.CacheStatus = nil
	sparse.DBQueryTimeMS = nil

	counts := NullCounts(EnrichBatch([]domain.RawEvent{full, sparse}, time.Now()))

	want := map[string]int{
		"session_id":       0,
		"user_agent":       0,
		"user_id":          1,
		"cache_status":     1,
		"cdn_edge":         0,
		"db_query_time_ms": 1,
		"request_id":       0,
	}
	for col, n := range want {
		if counts[col] != n {
			t.Errorf("column %s: expected %d nulls, got %d", col, n, counts[col])
		}
	}
}
