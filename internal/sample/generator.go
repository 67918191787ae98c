// Package sample generates realistic web-server log records for an
// e-commerce site, with a share of malformed records mixed in.
package sample

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/medallion/internal/domain"
)

// DefaultMessyRate is the share of records carrying invalid values.
const DefaultMessyRate = 0.05

type weighted[T any] struct {
	value  T
	weight float64
}

var (
	methods = []weighted[string]{
		{"GET", 75}, {"POST", 15}, {"PUT", 5}, {"DELETE", 2}, {"HEAD", 2}, {"OPTIONS", 1},
	}
	statuses = []weighted[int]{
		{200, 70}, {304, 12}, {404, 10}, {301, 3}, {302, 2}, {500, 1.5}, {503, 0.8}, {403, 0.5}, {401, 0.2},
	}
	cacheStatuses = []weighted[string]{
		{"HIT", 60}, {"MISS", 25}, {"BYPASS", 10}, {"EXPIRED", 5},
	}
	cdnEdges   = []string{"edge-us-east-1", "edge-us-west-2", "edge-eu-west-1", "edge-ap-southeast-1", "origin"}
	categories = []string{"electronics", "books", "clothing", "home", "sports"}
	searches   = []string{"laptop", "phone", "books", "clothes", "shoes"}
	referrers  = []string{
		"https://www.google.com/", "https://www.bing.com/", "https://www.facebook.com/",
		"https://t.co/", "https://news.ycombinator.com/",
	}
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
	}
)

// Generator produces log records. It is deterministic for a given seed and
// not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	MessyRate float64
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), MessyRate: DefaultMessyRate}
}

// Batch returns n records with event times spread evenly over
// [start, start+span).
func (g *Generator) Batch(n int, start time.Time, span time.Duration) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		offset := time.Duration(0)
		if n > 0 {
			offset = span * time.Duration(i) / time.Duration(n)
		}
		out[i] = g.Event(start.Add(offset))
	}
	return out
}

// Event returns one record stamped at ts.
func (g *Generator) Event(ts time.Time) domain.Record {
	if g.rng.Float64() < g.MessyRate {
		return g.messy(ts)
	}

	path := g.path()
	status := pick(g.rng, statuses)
	rec := domain.Record{
		"event_id":         g.uuid(),
		"event_ts":         ts.UTC().Format(time.RFC3339Nano),
		"session_id":       fmt.Sprintf("sess_%d_%d", ts.Unix(), 1000+g.rng.Intn(9000)),
		"client_ip":        g.publicIP(),
		"method":           pick(g.rng, methods),
		"path":             path,
		"status":           status,
		"bytes_sent":       g.bytesSent(path, status),
		"response_time_ms": g.responseTime(path, status),
		"user_agent":       userAgents[g.rng.Intn(len(userAgents))],
		"cache_status":     pick(g.rng, cacheStatuses),
		"cdn_edge":         cdnEdges[g.rng.Intn(len(cdnEdges))],
		"db_query_time_ms": g.dbQueryTime(path),
		"request_id":       fmt.Sprintf("req_%d", 1000000+g.rng.Intn(9000000)),
	}
	// 30% logged-in users.
	if g.rng.Float64() < 0.3 {
		rec["user_id"] = fmt.Sprintf("user_%d", 100000+g.rng.Intn(900000))
	}
	if g.rng.Float64() < 0.6 {
		rec["referrer"] = referrers[g.rng.Intn(len(referrers))]
	}
	return rec
}

// messy returns a record that fails validation.
func (g *Generator) messy(ts time.Time) domain.Record {
	rec := domain.Record{
		"event_id":         g.uuid(),
		"event_ts":         ts.UTC().Format(time.RFC3339Nano),
		"method":           oneOf(g.rng, "GET", "POST", "PUT", "DELETE", "INVALID", "OPTIONS"),
		"status":           oneOf(g.rng, 200, 404, 500, 503, 999, 0),
		"response_time_ms": oneOf(g.rng, 0, -1, 999999),
		"bytes_sent":       oneOf(g.rng, 0, -1, 999999999),
		"client_ip":        oneOf[any](g.rng, "0.0.0.0", "127.0.0.1", "invalid_ip", nil),
		"path":             oneOf[any](g.rng, "/", "//", nil, ""),
		"user_id":          oneOf[any](g.rng, nil, "", "SYSTEM", "BOT"),
		"cache_status":     "INVALID",
		"cdn_edge":         "UNKNOWN",
		"db_query_time_ms": -1,
	}
	return rec
}

func (g *Generator) uuid() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *Generator) path() string {
	switch r := g.rng.Intn(100); {
	case r < 15:
		return "/"
	case r < 27:
		return "/category/" + categories[g.rng.Intn(len(categories))]
	case r < 52:
		return fmt.Sprintf("/product/%d", 10000+g.rng.Intn(90000))
	case r < 62:
		return "/search?q=" + searches[g.rng.Intn(len(searches))]
	case r < 72:
		return "/cart"
	case r < 77:
		return "/checkout"
	case r < 92:
		return fmt.Sprintf("/api/v1/products/%d", 10000+g.rng.Intn(90000))
	default:
		return fmt.Sprintf("/static/img/%d.jpg", g.rng.Intn(500))
	}
}

func (g *Generator) responseTime(path string, status int) int {
	base := 80.0
	switch {
	case strings.HasPrefix(path, "/checkout"):
		base = 400
	case strings.HasPrefix(path, "/api/"):
		base = 150
	case strings.HasPrefix(path, "/search"):
		base = 250
	case strings.HasPrefix(path, "/static/"):
		base = 20
	}
	if status >= 500 {
		base *= 5
	}
	ms := int(base + g.rng.NormFloat64()*base/3)
	if ms < 1 {
		ms = 1
	}
	if ms > 30000 {
		ms = 30000
	}
	return ms
}

func (g *Generator) bytesSent(path string, status int) int {
	switch {
	case status == 304:
		return 0
	case status >= 400:
		return 512 + g.rng.Intn(2048)
	case strings.HasPrefix(path, "/static/"):
		return 50_000 + g.rng.Intn(400_000)
	case strings.HasPrefix(path, "/api/"):
		return 500 + g.rng.Intn(8_000)
	default:
		return 5_000 + g.rng.Intn(150_000)
	}
}

func (g *Generator) dbQueryTime(path string) int {
	for _, prefix := range []string{"/api/", "/search", "/cart", "/checkout"} {
		if strings.HasPrefix(path, prefix) {
			ms := int(50 + g.rng.NormFloat64()*20)
			if ms < 0 {
				ms = 0
			}
			return ms
		}
	}
	return 0
}

func (g *Generator) publicIP() string {
	first := []int{23, 45, 66, 98, 104, 142, 172, 185, 203}[g.rng.Intn(9)]
	return fmt.Sprintf("%d.%d.%d.%d", first, g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))
}

// BatchKey returns the bronze object key for a batch created at t.
func BatchKey(prefix string, t time.Time) string {
	return prefix + "logs_" + t.UTC().Format("20060102_150405") + ".json"
}

func pick[T any](rng *rand.Rand, choices []weighted[T]) T {
	total := 0.0
	for _, c := range choices {
		total += c.weight
	}
	r := rng.Float64() * total
	for _, c := range choices {
		if r < c.weight {
			return c.value
		}
		r -= c.weight
	}
	return choices[len(choices)-1].value
}

func oneOf[T any](rng *rand.Rand, choices ...T) T {
	return choices[rng.Intn(len(choices))]
}
