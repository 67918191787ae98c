package etl

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

const batchTimestampLayout = "20060102_150405"

// BatchPattern recognises bronze batch keys of the form
// <prefix>logs_<YYYYMMDD>_<HHMMSS>.json and extracts their timestamp.
type BatchPattern struct {
	re *regexp.Regexp
}

// DefaultBatchPattern matches batches written directly under bronze/.
var DefaultBatchPattern = MustBatchPattern("bronze/")

// NewBatchPattern builds a pattern for batches stored directly under prefix.
func NewBatchPattern(prefix string) (*BatchPattern, error) {
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `logs_(\d{8})_(\d{6})\.json$`)
	if err != nil {
		return nil, fmt.Errorf("invalid batch prefix %q: %w", prefix, err)
	}
	return &BatchPattern{re: re}, nil
}

// MustBatchPattern is like NewBatchPattern but panics on error.
func MustBatchPattern(prefix string) *BatchPattern {
	p, err := NewBatchPattern(prefix)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse returns the timestamp embedded in key. Keys that do not follow the
// convention, or carry an impossible date, report false.
func (p *BatchPattern) Parse(key string) (time.Time, bool) {
	m := p.re.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(batchTimestampLayout, m[1]+"_"+m[2])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// BatchFile is a bronze key with its parsed timestamp.
type BatchFile struct {
	Key       string
	Timestamp time.Time
}

// MatchBatches returns every key following the convention, newest first.
// Equal timestamps are ordered by key, greatest first.
func MatchBatches(keys []string, p *BatchPattern) []BatchFile {
	var files []BatchFile
	for _, key := range keys {
		if ts, ok := p.Parse(key); ok {
			files = append(files, BatchFile{Key: key, Timestamp: ts})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].Timestamp.Equal(files[j].Timestamp) {
			return files[i].Timestamp.After(files[j].Timestamp)
		}
		return files[i].Key > files[j].Key
	})
	return files
}

// SelectLatest picks the most recently produced batch. It reports false when
// no key matches, which callers treat as nothing to do.
func SelectLatest(keys []string, p *BatchPattern) (BatchFile, bool) {
	files := MatchBatches(keys, p)
	if len(files) == 0 {
		return BatchFile{}, false
	}
	return files[0], true
}
