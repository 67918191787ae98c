package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/V4T54L/medallion/internal/adapter/lake"
	"github.com/V4T54L/medallion/internal/adapter/pii"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/domain/mocks"
	"github.com/V4T54L/medallion/internal/etl"
	"github.com/V4T54L/medallion/internal/sample"
)

var processedAt = time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC)

func cleanRecords(seed int64, n int) []domain.Record {
	g := sample.NewGenerator(seed)
	g.MessyRate = 0
	return g.Batch(n, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 24*time.Hour)
}

func TestBronzeToSilver_NoBronzeData(t *testing.T) {
	store := mocks.NewMockObjectStore()

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.NoOp {
		t.Error("expected a no-op result")
	}
	if len(store.PutKeys) != 0 {
		t.Errorf("expected nothing written, got %v", store.PutKeys)
	}
}

func TestBronzeToSilver_NoMatchingBatch(t *testing.T) {
	store := mocks.NewMockObjectStore()
	store.Objects["bronze/invalidname.json"] = []byte(`{"event_id":"a"}`)

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err != nil || !res.NoOp {
		t.Fatalf("expected a no-op, got %+v, %v", res, err)
	}
}

func TestBronzeToSilver_ListingFailure(t *testing.T) {
	store := mocks.NewMockObjectStore()
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cleanRecords(1, 5))
	store.ListErr = errors.New("connection reset")

	_, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err == nil {
		t.Fatal("expected an error when nothing could be listed")
	}
}

func TestBronzeToSilver_PartialListingDegrades(t *testing.T) {
	store := mocks.NewMockObjectStore()
	older := putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cleanRecords(1, 5))
	putBatch(store, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), cleanRecords(2, 5))
	store.ListErr = errors.New("page 2 timed out")
	store.ListErrPrefix = testLocs.Bronze
	store.ListPartial = 1

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err != nil {
		t.Fatalf("expected the stage to proceed on a partial listing, got %v", err)
	}
	if res.SourceKey != older {
		t.Errorf("expected selection from the partial listing %q, got %q", older, res.SourceKey)
	}
	if res.OutputRecords != 5 {
		t.Errorf("expected 5 silver rows, got %d", res.OutputRecords)
	}
}

// twoDayRecords returns n clean records on each of 15 and 16 March 2024.
func twoDayRecords(seed int64, n int) []domain.Record {
	g := sample.NewGenerator(seed)
	g.MessyRate = 0
	records := g.Batch(n, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), time.Hour)
	return append(records, g.Batch(n, time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC), time.Hour)...)
}

func TestBronzeToSilver_SelectsLatestBatch(t *testing.T) {
	store := mocks.NewMockObjectStore()
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cleanRecords(1, 3))
	latest := putBatch(store, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), cleanRecords(2, 7))

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceKey != latest || res.InputRecords != 7 || res.OutputRecords != 7 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestBronzeToSilver_MissingColumnsAreBackfilled(t *testing.T) {
	store := mocks.NewMockObjectStore()
	records := cleanRecords(3, 4)
	for _, rec := range records {
		delete(rec, "cdn_edge")
		delete(rec, "referrer")
	}
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records)

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OutputRecords != 4 {
		t.Fatalf("expected 4 rows, got %d", res.OutputRecords)
	}

	sess := lake.NewSession(store, discardLogger())
	events, err := sess.ReadSilver(context.Background(), testLocs.Silver)
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		if ev.CDNEdge != nil {
			t.Errorf("expected absent cdn_edge, got %q", *ev.CDNEdge)
		}
		if ev.Referrer != etl.DefaultReferrer {
			t.Errorf("expected referrer %q, got %q", etl.DefaultReferrer, ev.Referrer)
		}
	}
}

func TestBronzeToSilver_AllRejected(t *testing.T) {
	store := mocks.NewMockObjectStore()
	g := sample.NewGenerator(4)
	g.MessyRate = 1
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), g.Batch(10, processedAt, time.Hour))

	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rejected != 10 || res.OutputRecords != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(store.KeysWithPrefix(testLocs.Silver)) != 0 {
		t.Error("expected no silver file for an empty result")
	}
}

func TestBronzeToSilver_WriteFailure(t *testing.T) {
	store := mocks.NewMockObjectStore()
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cleanRecords(5, 3))
	store.PutErr = errors.New("bucket is read-only")

	_, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})

	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !errors.Is(err, store.PutErr) {
		t.Errorf("expected the store error to be wrapped, got %v", err)
	}
}

func TestBronzeToSilver_RerunOnSameBatchAppendsNothing(t *testing.T) {
	store := mocks.NewMockObjectStore()
	putBatch(store, time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC), cleanRecords(8, 100))

	first, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})
	if err != nil || first.OutputRecords != 100 {
		t.Fatalf("first run: %+v, %v", first, err)
	}
	second, err := newBronzeToSilver(store, processedAt.Add(time.Hour)).Run(context.Background(), domain.StageInvocation{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.NoOp || second.OutputRecords != 0 || second.Duplicates != 100 {
		t.Errorf("expected a no-op rerun counting 100 duplicates, got %+v", second)
	}

	events, err := lake.NewSession(store, discardLogger()).ReadSilver(context.Background(), testLocs.Silver)
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]int)
	for _, ev := range events {
		ids[ev.EventID]++
	}
	if len(events) != 100 || len(ids) != 100 {
		t.Errorf("expected 100 silver rows with distinct ids, got %d rows and %d ids", len(events), len(ids))
	}

	gold, err := NewSilverToGoldUseCase(store, nil, testLocs, discardLogger()).Run(context.Background(), domain.StageInvocation{})
	if err != nil || gold.OutputRecords != 100 {
		t.Errorf("expected gold to aggregate 100 rows, got %+v, %v", gold, err)
	}
}

func TestBronzeToSilver_OverlappingBatchAppendsOnlyNewEvents(t *testing.T) {
	store := mocks.NewMockObjectStore()
	records := cleanRecords(9, 30)
	putBatch(store, time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC), records[:20])
	if _, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{}); err != nil {
		t.Fatal(err)
	}

	// The next upload repeats ten events of the previous one.
	putBatch(store, time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), records[10:])
	res, err := newBronzeToSilver(store, processedAt.Add(time.Hour)).Run(context.Background(), domain.StageInvocation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OutputRecords != 10 || res.Duplicates != 10 {
		t.Errorf("expected 10 new and 10 already stored, got %+v", res)
	}
}

func TestBronzeToSilver_FailedAppendIsRolledBack(t *testing.T) {
	store := mocks.NewMockObjectStore()
	putBatch(store, time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC), twoDayRecords(10, 5))
	store.PutErr = errors.New("network down")
	store.PutErrPrefix = testLocs.Silver
	store.PutErrAfter = 1

	if _, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{}); !errors.Is(err, store.PutErr) {
		t.Fatalf("expected the write error, got %v", err)
	}
	if keys := store.KeysWithPrefix(testLocs.Silver); len(keys) != 0 {
		t.Fatalf("expected the published partition to be removed, got %v", keys)
	}

	store.PutErr = nil
	res, err := newBronzeToSilver(store, processedAt).Run(context.Background(), domain.StageInvocation{})
	if err != nil || res.OutputRecords != 10 {
		t.Errorf("expected the retry to write all 10 rows, got %+v, %v", res, err)
	}
}

func TestBronzeToSilver_RedactsQueryParameters(t *testing.T) {
	store := mocks.NewMockObjectStore()
	records := cleanRecords(6, 1)
	records[0]["path"] = "/login?email=jane@example.com"
	putBatch(store, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records)

	uc := NewBronzeToSilverUseCase(store, pii.NewRedactor([]string{"email"}, discardLogger()), testLocs, etl.DefaultBatchPattern, discardLogger())
	if _, err := uc.Run(context.Background(), domain.StageInvocation{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := lake.NewSession(store, discardLogger()).ReadSilver(context.Background(), testLocs.Silver)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Path != "/login?email=[REDACTED]" {
		t.Errorf("expected redacted path, got %+v", events)
	}
}
