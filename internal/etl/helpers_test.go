package etl

import (
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

func ptr[T any](v T) *T { return &v }

var baseTS = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

// rawEvent returns a record that passes every validation rule.
func rawEvent(id string, status int) domain.RawEvent {
	return domain.RawEvent{
		EventID:        ptr(id),
		EventTS:        ptr(baseTS),
		SessionID:      ptr("sess_1"),
		ClientIP:       ptr("203.0.113.7"),
		Method:         ptr("GET"),
		Path:           ptr("/products/42"),
		Status:         ptr(status),
		BytesSent:      ptr(int64(5120)),
		ResponseTimeMS: ptr(250),
		UserAgent:      ptr("Mozilla/5.0"),
		UserID:         ptr("user_100001"),
		CacheStatus:    ptr("HIT"),
		CDNEdge:        ptr("edge-us-east-1"),
		DBQueryTimeMS:  ptr(12),
		RequestID:      ptr("req-" + id),
	}
}
