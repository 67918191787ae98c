package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/V4T54L/medallion/internal/domain"
)

// RunRepository implements domain.RunRepository on the stage_runs table.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new PostgreSQL run ledger.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger.With("component", "run_repository")}
}

// StartRun records a run as started.
func (r *RunRepository) StartRun(ctx context.Context, run domain.StageRun) error {
	query := `
		INSERT INTO stage_runs (id, stage, status, trigger_key, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, run.ID, string(run.Stage), string(run.Status), run.TriggerKey, run.StartedAt); err != nil {
		return fmt.Errorf("failed to record run start %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (r *RunRepository) FinishRun(ctx context.Context, run domain.StageRun) error {
	query := `
		UPDATE stage_runs
		SET status = $2, completed_at = $3, input_count = $4, output_count = $5, error_message = $6
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, run.ID, string(run.Status), run.CompletedAt, run.InputCount, run.OutputCount, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to record run finish %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Warn("finished run was never started", "run_id", run.ID)
	}
	return nil
}

// LatestRuns returns the most recently started runs, newest first.
func (r *RunRepository) LatestRuns(ctx context.Context, limit int) ([]domain.StageRun, error) {
	query := `
		SELECT id, stage, status, trigger_key, started_at, completed_at, input_count, output_count, error_message
		FROM stage_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.StageRun
	for rows.Next() {
		var (
			run         domain.StageRun
			stage       string
			status      string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&run.ID, &stage, &status, &run.TriggerKey, &run.StartedAt, &completedAt,
			&run.InputCount, &run.OutputCount, &run.ErrorMessage); err != nil {
			return nil, err
		}
		run.Stage = domain.Stage(stage)
		run.Status = domain.RunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
