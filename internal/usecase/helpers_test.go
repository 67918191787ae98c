package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/medallion/internal/adapter/lake"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/domain/mocks"
	"github.com/V4T54L/medallion/internal/etl"
	"github.com/V4T54L/medallion/internal/sample"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testLocs = Locations{
	Bronze:       "bronze/",
	Silver:       "silver/",
	GoldDaily:    "gold/daily_metrics/",
	GoldSessions: "gold/session_metrics/",
}

// putBatch stores records as a bronze batch named after batchTime.
func putBatch(store *mocks.MockObjectStore, batchTime time.Time, records []domain.Record) string {
	data, err := lake.EncodeBronze(records)
	if err != nil {
		panic(err)
	}
	key := sample.BatchKey(testLocs.Bronze, batchTime)
	store.Objects[key] = data
	return key
}

func newBronzeToSilver(store domain.ObjectStore, processedAt time.Time) *BronzeToSilverUseCase {
	uc := NewBronzeToSilverUseCase(store, nil, testLocs, etl.DefaultBatchPattern, discardLogger())
	uc.now = func() time.Time { return processedAt }
	return uc
}

// stubStage returns a canned result and counts its invocations.
type stubStage struct {
	mu    sync.Mutex
	res   domain.StageResult
	err   error
	calls []domain.StageInvocation
}

func (s *stubStage) Run(ctx context.Context, inv domain.StageInvocation) (domain.StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, inv)
	return s.res, s.err
}

type recordingObserver struct {
	results  []domain.StageResult
	statuses []domain.RunStatus
	layers   []domain.DataLayer
}

func (o *recordingObserver) ObserveResult(res domain.StageResult, status domain.RunStatus, elapsed time.Duration) {
	o.results = append(o.results, res)
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ObserveNotification(layer domain.DataLayer) {
	o.layers = append(o.layers, layer)
}
