package etl

import "github.com/V4T54L/medallion/internal/domain"

// Validation bounds for bronze records.
const (
	MinStatus         = 100
	MaxStatus         = 599
	MaxResponseTimeMS = 30000
	MaxBytesSent      = 10_000_000
)

var allowedMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"PATCH":   {},
	"HEAD":    {},
	"OPTIONS": {},
}

// ValidationReport carries the row counts of a validation pass.
type ValidationReport struct {
	Input      int
	Rejected   int
	Duplicates int
	Output     int
}

// Validate reports whether a typed record is well-formed and business-valid.
// client_ip is checked here even though it is dropped from silver output.
func Validate(ev domain.RawEvent) bool {
	if ev.Status == nil || *ev.Status < MinStatus || *ev.Status > MaxStatus {
		return false
	}
	if ev.Method == nil {
		return false
	}
	if _, ok := allowedMethods[*ev.Method]; !ok {
		return false
	}
	if ev.ResponseTimeMS == nil || *ev.ResponseTimeMS <= 0 || *ev.ResponseTimeMS > MaxResponseTimeMS {
		return false
	}
	if ev.BytesSent == nil || *ev.BytesSent < 0 || *ev.BytesSent > MaxBytesSent {
		return false
	}
	if ev.EventTS == nil {
		return false
	}
	if ev.Path == nil || *ev.Path == "" || *ev.Path == "//" {
		return false
	}
	if ev.ClientIP == nil || *ev.ClientIP == "" {
		return false
	}
	return true
}

// Deduplicate keeps the first occurrence of every event_id in input order.
// Records without an event_id share one key, so at most one of them survives.
// It returns the kept records and the number dropped.
func Deduplicate(events []domain.RawEvent) ([]domain.RawEvent, int) {
	seen := make(map[string]struct{}, len(events))
	var (
		out     = make([]domain.RawEvent, 0, len(events))
		nullKey bool
	)
	for _, ev := range events {
		if ev.EventID == nil {
			if nullKey {
				continue
			}
			nullKey = true
			out = append(out, ev)
			continue
		}
		if _, dup := seen[*ev.EventID]; dup {
			continue
		}
		seen[*ev.EventID] = struct{}{}
		out = append(out, ev)
	}
	return out, len(events) - len(out)
}

// FilterValid drops records failing Validate, then removes duplicate
// event_ids. Rejections are counted, never surfaced individually.
func FilterValid(events []domain.RawEvent) ([]domain.RawEvent, ValidationReport) {
	report := ValidationReport{Input: len(events)}

	valid := make([]domain.RawEvent, 0, len(events))
	for _, ev := range events {
		if Validate(ev) {
			valid = append(valid, ev)
		}
	}
	report.Rejected = len(events) - len(valid)

	deduped, dups := Deduplicate(valid)
	report.Duplicates = dups
	report.Output = len(deduped)
	return deduped, report
}

// ExcludeSeen drops records whose event_id is already in seen, keeping
// event_ids unique across appends. A record without an event_id matches the
// empty id, which is how such records are stored. It returns the kept records
// and the number dropped.
func ExcludeSeen(events []domain.RawEvent, seen map[string]struct{}) ([]domain.RawEvent, int) {
	if len(seen) == 0 {
		return events, 0
	}
	out := make([]domain.RawEvent, 0, len(events))
	for _, ev := range events {
		id := ""
		if ev.EventID != nil {
			id = *ev.EventID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, ev)
	}
	return out, len(events) - len(out)
}
