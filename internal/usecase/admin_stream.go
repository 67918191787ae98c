package usecase

import (
	"context"

	"github.com/V4T54L/medallion/internal/domain"
)

const (
	defaultAdminCount = 100
	maxAdminCount     = 1000
)

// AdminUseCase provides queue administration and the run ledger for the
// trigger's admin API. runs may be nil.
type AdminUseCase struct {
	repo domain.QueueAdminRepository
	runs domain.RunRepository
}

// NewAdminUseCase creates a new AdminUseCase.
func NewAdminUseCase(repo domain.QueueAdminRepository, runs domain.RunRepository) *AdminUseCase {
	return &AdminUseCase{repo: repo, runs: runs}
}

func (uc *AdminUseCase) QueueStatus(ctx context.Context) (domain.QueueStatus, error) {
	return uc.repo.Status(ctx)
}

func (uc *AdminUseCase) GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GroupInfo(ctx)
}

func (uc *AdminUseCase) PendingInvocations(ctx context.Context, count int64) ([]domain.PendingInvocation, error) {
	return uc.repo.PendingInvocations(ctx, clampCount(count))
}

func (uc *AdminUseCase) DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetter, error) {
	return uc.repo.DeadLetters(ctx, clampCount(count))
}

func (uc *AdminUseCase) TrimDeadLetters(ctx context.Context, maxLen int64) (int64, error) {
	if maxLen < 0 {
		maxLen = 0
	}
	return uc.repo.TrimDeadLetters(ctx, maxLen)
}

// LatestRuns returns recent stage runs, or ErrNotConfigured without a ledger.
func (uc *AdminUseCase) LatestRuns(ctx context.Context, limit int) ([]domain.StageRun, error) {
	if uc.runs == nil {
		return nil, domain.ErrNotConfigured
	}
	return uc.runs.LatestRuns(ctx, int(clampCount(int64(limit))))
}

func clampCount(count int64) int64 {
	if count <= 0 {
		return defaultAdminCount
	}
	if count > maxAdminCount {
		return maxAdminCount
	}
	return count
}
