package lake

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const dataFileSuffix = ".snappy.parquet"

type partition struct {
	Year, Month, Day int
}

func (p partition) path() string {
	return fmt.Sprintf("year=%d/month=%d/day=%d", p.Year, p.Month, p.Day)
}

func (p partition) less(o partition) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	if p.Month != o.Month {
		return p.Month < o.Month
	}
	return p.Day < o.Day
}

// dirPrefix makes location usable as a listing prefix that cannot match a
// sibling location sharing its name as a prefix.
func dirPrefix(location string) string {
	return strings.TrimSuffix(location, "/") + "/"
}

// partKey names a new data file. The run id groups the files of one run and
// the uuid keeps concurrent or repeated appends from colliding.
func partKey(location string, p partition, runID string) string {
	return dirPrefix(location) + p.path() + "/part-" + runID + "-" + uuid.NewString() + dataFileSuffix
}

func isDataFile(key string) bool {
	return strings.HasSuffix(key, ".parquet")
}

func groupByPartition[R interface{ partition() partition }](rows []R) ([]partition, map[partition][]R) {
	groups := make(map[partition][]R)
	var order []partition
	for _, r := range rows {
		p := r.partition()
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], r)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].less(order[j]) })
	return order, groups
}
