package usecase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/medallion/internal/domain"
)

// Locations are the object-store prefixes of the lake layers.
type Locations struct {
	Bronze       string
	Silver       string
	GoldDaily    string
	GoldSessions string
}

// Stage runs one pipeline transformation for an invocation.
type Stage interface {
	Run(ctx context.Context, inv domain.StageInvocation) (domain.StageResult, error)
}

// ResultObserver receives the outcome of every stage run.
type ResultObserver interface {
	ObserveResult(res domain.StageResult, status domain.RunStatus, elapsed time.Duration)
}

// spanError marks span as failed and returns err unchanged.
func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
