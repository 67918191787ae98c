package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/medallion/internal/domain"
)

// MockObjectStore is an in-memory implementation of domain.ObjectStore for testing.
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	PutKeys []string

	// ListErr fails every listing. When ListPartial is positive, the first
	// ListPartial matching objects are returned alongside the error.
	ListErr     error
	ListPartial int
	// ListErrPrefix limits ListErr to listings under this prefix.
	ListErrPrefix string
	GetErr      error
	PutErr      error
	// PutErrAfter lets that many Puts succeed before PutErr applies.
	PutErrAfter int
	// PutErrPrefix limits PutErr to keys under this prefix.
	PutErrPrefix string
	DeleteErr    error
	DeletedKeys  []string
}

// NewMockObjectStore returns an empty store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var objects []domain.ObjectInfo
	for key, data := range m.Objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, domain.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Unix(0, 0).UTC()})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	if m.ListErr != nil && strings.HasPrefix(prefix, m.ListErrPrefix) {
		if m.ListPartial > 0 && m.ListPartial < len(objects) {
			return objects[:m.ListPartial], m.ListErr
		}
		if m.ListPartial > 0 {
			return objects, m.ListErr
		}
		return nil, m.ListErr
	}
	return objects, nil
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	data, ok := m.Objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil && strings.HasPrefix(key, m.PutErrPrefix) {
		if m.PutErrAfter <= 0 {
			return m.PutErr
		}
		m.PutErrAfter--
	}
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[key] = append([]byte(nil), data...)
	m.PutKeys = append(m.PutKeys, key)
	return nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Objects, key)
	m.DeletedKeys = append(m.DeletedKeys, key)
	return nil
}

// KeysWithPrefix returns the stored keys under prefix in order.
func (m *MockObjectStore) KeysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.Objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// MockStageQueue is a mock implementation of domain.StageQueue for testing.
type MockStageQueue struct {
	mu              sync.Mutex
	Enqueued        []domain.StageInvocation
	ReadBatchResult []domain.StageInvocation
	ClaimResult     []domain.StageInvocation
	AckedMessageIDs []string
	DLQInvocations  []domain.StageInvocation
	DLQCauses       []string
	EnqueueErr      error
	ReadErr         error
	AckErr          error
	DLQErr          error
	ClaimErr        error
}

func (m *MockStageQueue) Enqueue(ctx context.Context, inv domain.StageInvocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.Enqueued = append(m.Enqueued, inv)
	return nil
}

func (m *MockStageQueue) ReadInvocations(ctx context.Context, consumer string, count int) ([]domain.StageInvocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	batch := m.ReadBatchResult
	m.ReadBatchResult = nil
	return batch, nil
}

func (m *MockStageQueue) Acknowledge(ctx context.Context, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockStageQueue) MoveToDLQ(ctx context.Context, inv domain.StageInvocation, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQInvocations = append(m.DLQInvocations, inv)
	m.DLQCauses = append(m.DLQCauses, cause.Error())
	return nil
}

func (m *MockStageQueue) ClaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]domain.StageInvocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	claimed := m.ClaimResult
	m.ClaimResult = nil
	return claimed, nil
}

// MockQueueAdminRepository is a mock implementation of domain.QueueAdminRepository.
type MockQueueAdminRepository struct {
	StatusResult  domain.QueueStatus
	Groups        []domain.ConsumerGroupInfo
	Pending       []domain.PendingInvocation
	DeadLetterLog []domain.DeadLetter
	Trimmed       int64
	Err           error
}

func (m *MockQueueAdminRepository) Status(ctx context.Context) (domain.QueueStatus, error) {
	return m.StatusResult, m.Err
}

func (m *MockQueueAdminRepository) GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	return m.Groups, m.Err
}

func (m *MockQueueAdminRepository) PendingInvocations(ctx context.Context, count int64) ([]domain.PendingInvocation, error) {
	return m.Pending, m.Err
}

func (m *MockQueueAdminRepository) DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetter, error) {
	return m.DeadLetterLog, m.Err
}

func (m *MockQueueAdminRepository) TrimDeadLetters(ctx context.Context, maxLen int64) (int64, error) {
	return m.Trimmed, m.Err
}

// MockRunRepository is a mock implementation of domain.RunRepository for testing.
type MockRunRepository struct {
	mu        sync.Mutex
	Started   []domain.StageRun
	Finished  []domain.StageRun
	Latest    []domain.StageRun
	StartErr  error
	FinishErr error
	ListErr   error
}

func (m *MockRunRepository) StartRun(ctx context.Context, run domain.StageRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Started = append(m.Started, run)
	return nil
}

func (m *MockRunRepository) FinishRun(ctx context.Context, run domain.StageRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FinishErr != nil {
		return m.FinishErr
	}
	m.Finished = append(m.Finished, run)
	return nil
}

func (m *MockRunRepository) LatestRuns(ctx context.Context, limit int) ([]domain.StageRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if limit > 0 && limit < len(m.Latest) {
		return m.Latest[:limit], nil
	}
	return m.Latest, nil
}

// MockDailyMetricRepository is a mock implementation of domain.DailyMetricRepository.
type MockDailyMetricRepository struct {
	mu        sync.Mutex
	Upserted  []domain.DailyMetric
	Stored    []domain.DailyMetric
	UpsertErr error
	ListErr   error
}

func (m *MockDailyMetricRepository) UpsertDailyMetrics(ctx context.Context, rows []domain.DailyMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Upserted = append(m.Upserted, rows...)
	return nil
}

func (m *MockDailyMetricRepository) ListDailyMetrics(ctx context.Context, from, to time.Time) ([]domain.DailyMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Stored, nil
}

// MockStageLauncher is a mock implementation of domain.StageLauncher for testing.
type MockStageLauncher struct {
	mu       sync.Mutex
	Launched []domain.StageInvocation
	RunID    string
	Err      error
}

func (m *MockStageLauncher) Launch(ctx context.Context, inv domain.StageInvocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Launched = append(m.Launched, inv)
	return m.RunID, nil
}
