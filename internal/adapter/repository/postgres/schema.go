package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS stage_runs (
	id            TEXT PRIMARY KEY,
	stage         TEXT NOT NULL,
	status        TEXT NOT NULL,
	trigger_key   TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	input_count   BIGINT NOT NULL DEFAULT 0,
	output_count  BIGINT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS stage_runs_started_at_idx ON stage_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS daily_metrics (
	event_date                DATE PRIMARY KEY,
	total_requests            BIGINT NOT NULL,
	unique_users              BIGINT NOT NULL,
	avg_response_time         DOUBLE PRECISION NOT NULL,
	total_response_time       BIGINT NOT NULL,
	total_bytes_sent          BIGINT NOT NULL,
	client_error_count        BIGINT NOT NULL,
	server_error_count        BIGINT NOT NULL,
	success_count             BIGINT NOT NULL,
	redirect_count            BIGINT NOT NULL,
	slow_requests             BIGINT NOT NULL,
	fast_requests             BIGINT NOT NULL,
	large_responses           BIGINT NOT NULL,
	small_responses           BIGINT NOT NULL,
	processing_timestamp      TIMESTAMPTZ NOT NULL,
	processing_seq            BIGINT NOT NULL,
	error_rate                DOUBLE PRECISION NOT NULL,
	success_rate              DOUBLE PRECISION NOT NULL,
	avg_response_time_seconds DOUBLE PRECISION NOT NULL,
	performance_grade         TEXT NOT NULL,
	availability_score        DOUBLE PRECISION NOT NULL,
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables used by the run ledger and the daily
// metrics store if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure postgres schema: %w", err)
	}
	return nil
}
