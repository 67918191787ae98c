package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/domain/mocks"
)

func TestStageRunner_Execute(t *testing.T) {
	inv := domain.StageInvocation{ID: "inv-1", Stage: domain.StageBronzeToSilver, Key: "bronze/logs_20240101_000000.json"}

	t.Run("Success is recorded", func(t *testing.T) {
		runs := &mocks.MockRunRepository{}
		observer := &recordingObserver{}
		stage := &stubStage{res: domain.StageResult{Stage: domain.StageBronzeToSilver, InputRecords: 1000, OutputRecords: 930}}
		r := NewStageRunner(map[domain.Stage]Stage{domain.StageBronzeToSilver: stage}, runs, observer, discardLogger())

		res, err := r.Execute(context.Background(), inv)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.OutputRecords != 930 {
			t.Errorf("expected the stage result, got %+v", res)
		}
		if len(runs.Started) != 1 || runs.Started[0].ID != "inv-1" || runs.Started[0].Status != domain.RunRunning {
			t.Errorf("unexpected started runs %+v", runs.Started)
		}
		if len(runs.Finished) != 1 {
			t.Fatalf("expected 1 finished run, got %d", len(runs.Finished))
		}
		fin := runs.Finished[0]
		if fin.Status != domain.RunSucceeded || fin.InputCount != 1000 || fin.OutputCount != 930 || fin.CompletedAt == nil {
			t.Errorf("unexpected finished run %+v", fin)
		}
		if len(observer.statuses) != 1 || observer.statuses[0] != domain.RunSucceeded {
			t.Errorf("unexpected observed statuses %v", observer.statuses)
		}
	})

	t.Run("Failure is recorded and returned", func(t *testing.T) {
		runs := &mocks.MockRunRepository{}
		stage := &stubStage{err: errors.New("read failed")}
		r := NewStageRunner(map[domain.Stage]Stage{domain.StageBronzeToSilver: stage}, runs, nil, discardLogger())

		_, err := r.Execute(context.Background(), inv)

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if len(runs.Finished) != 1 || runs.Finished[0].Status != domain.RunFailed || runs.Finished[0].ErrorMessage != "read failed" {
			t.Errorf("unexpected finished runs %+v", runs.Finished)
		}
	})

	t.Run("Ledger failure does not fail the stage", func(t *testing.T) {
		runs := &mocks.MockRunRepository{StartErr: errors.New("pg down"), FinishErr: errors.New("pg down")}
		stage := &stubStage{}
		r := NewStageRunner(map[domain.Stage]Stage{domain.StageBronzeToSilver: stage}, runs, nil, discardLogger())

		if _, err := r.Execute(context.Background(), inv); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stage.calls) != 1 {
			t.Errorf("expected the stage to run, got %d calls", len(stage.calls))
		}
	})

	t.Run("Unknown stage", func(t *testing.T) {
		r := NewStageRunner(map[domain.Stage]Stage{}, nil, nil, discardLogger())
		if _, err := r.Execute(context.Background(), domain.StageInvocation{Stage: "compact"}); !errors.Is(err, domain.ErrUnknownStage) {
			t.Fatalf("expected ErrUnknownStage, got %v", err)
		}
	})

	t.Run("Invocation for another bucket", func(t *testing.T) {
		stage := &stubStage{}
		r := NewStageRunner(map[domain.Stage]Stage{domain.StageBronzeToSilver: stage}, nil, nil, discardLogger()).BindBucket("lake")

		if _, err := r.Execute(context.Background(), domain.StageInvocation{Stage: domain.StageBronzeToSilver, Bucket: "other"}); !errors.Is(err, domain.ErrBucketMismatch) {
			t.Fatalf("expected ErrBucketMismatch, got %v", err)
		}
		if _, err := r.Execute(context.Background(), domain.StageInvocation{Stage: domain.StageBronzeToSilver, Bucket: "lake"}); err != nil {
			t.Fatalf("expected the bound bucket to run, got %v", err)
		}
		if len(stage.calls) != 1 {
			t.Errorf("expected only the bound bucket to reach the stage, got %d calls", len(stage.calls))
		}
	})

	t.Run("Missing invocation id gets one", func(t *testing.T) {
		runs := &mocks.MockRunRepository{}
		r := NewStageRunner(map[domain.Stage]Stage{domain.StageSilverToGold: &stubStage{}}, runs, nil, discardLogger())
		if _, err := r.Execute(context.Background(), domain.StageInvocation{Stage: domain.StageSilverToGold}); err != nil {
			t.Fatal(err)
		}
		if runs.Started[0].ID == "" {
			t.Error("expected a generated run id")
		}
	})
}
