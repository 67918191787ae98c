package pii

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/V4T54L/medallion/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive query parameters in the URLs carried by log events.
type Redactor struct {
	paramsToRedact map[string]struct{} // lower-cased parameter names
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor for the given query parameter names.
// Matching is case-insensitive.
func NewRedactor(params []string, logger *slog.Logger) *Redactor {
	paramSet := make(map[string]struct{}, len(params))
	for _, p := range params {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			paramSet[p] = struct{}{}
		}
	}
	return &Redactor{
		paramsToRedact: paramSet,
		logger:         logger,
	}
}

// Redact modifies the event in place, replacing the values of sensitive query
// parameters in path and referrer. It reports whether anything was masked.
func (r *Redactor) Redact(ev *domain.RawEvent) bool {
	if len(r.paramsToRedact) == 0 {
		return false
	}
	redacted := false
	if ev.Path != nil {
		if s, ok := r.redactURL(*ev.Path); ok {
			ev.Path = &s
			redacted = true
		}
	}
	if ev.Referrer != nil {
		if s, ok := r.redactURL(*ev.Referrer); ok {
			ev.Referrer = &s
			redacted = true
		}
	}
	return redacted
}

// RedactBatch redacts every event and returns how many were changed.
func (r *Redactor) RedactBatch(events []domain.RawEvent) int {
	n := 0
	for i := range events {
		if r.Redact(&events[i]) {
			n++
		}
	}
	if n > 0 {
		r.logger.Info("redacted sensitive query parameters", "events", n)
	}
	return n
}

// redactURL rewrites the query string of raw keeping parameter order and
// the encoding of untouched pairs.
func (r *Redactor) redactURL(raw string) (string, bool) {
	i := strings.IndexByte(raw, '?')
	if i < 0 || i == len(raw)-1 {
		return raw, false
	}
	query, fragment := raw[i+1:], ""
	if j := strings.IndexByte(query, '#'); j >= 0 {
		query, fragment = query[:j], query[j:]
	}

	pairs := strings.Split(query, "&")
	changed := false
	for k, pair := range pairs {
		name, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if _, ok := r.paramsToRedact[strings.ToLower(name)]; ok {
			pairs[k] = strings.SplitN(pair, "=", 2)[0] + "=" + RedactedPlaceholder
			changed = true
		}
	}
	if !changed {
		return raw, false
	}
	return raw[:i+1] + strings.Join(pairs, "&") + fragment, true
}
