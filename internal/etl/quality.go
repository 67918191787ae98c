package etl

import "github.com/V4T54L/medallion/internal/domain"

// NullCounts counts absent values per optional silver column. Required
// columns are guaranteed by validation and are not reported.
func NullCounts(events []domain.ValidEvent) map[string]int {
	counts := map[string]int{
		"session_id":       0,
		"user_agent":       0,
		"user_id":          0,
		"cache_status":     0,
		"cdn_edge":         0,
		"db_query_time_ms": 0,
		"request_id":       0,
	}
	for _, ev := range events {
		if ev.SessionID == nil {
			counts["session_id"]++
		}
		if ev.UserAgent == nil {
			counts["user_agent"]++
		}
		if ev.UserID == nil {
			counts["user_id"]++
		}
		if ev.CacheStatus == nil {
			counts["cache_status"]++
		}
		if ev.CDNEdge == nil {
			counts["cdn_edge"]++
		}
		if ev.DBQueryTimeMS == nil {
			counts["db_query_time_ms"]++
		}
		if ev.RequestID == nil {
			counts["request_id"]++
		}
	}
	return counts
}
