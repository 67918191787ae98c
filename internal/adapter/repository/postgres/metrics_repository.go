package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/etl"
)

const dateLayout = "2006-01-02"

var dailyColumns = []string{
	"event_date", "total_requests", "unique_users", "avg_response_time", "total_response_time",
	"total_bytes_sent", "client_error_count", "server_error_count", "success_count", "redirect_count",
	"slow_requests", "fast_requests", "large_responses", "small_responses", "processing_timestamp",
	"processing_seq", "error_rate", "success_rate", "avg_response_time_seconds", "performance_grade",
	"availability_score",
}

// DailyMetricRepository implements domain.DailyMetricRepository on the
// daily_metrics table, one row per event_date.
type DailyMetricRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDailyMetricRepository creates a new PostgreSQL daily metrics store.
func NewDailyMetricRepository(db *sql.DB, logger *slog.Logger) *DailyMetricRepository {
	return &DailyMetricRepository{db: db, logger: logger.With("component", "daily_metric_repository")}
}

// UpsertDailyMetrics merges incoming rollups into the stored rows for the
// same dates. Existing rows are locked, combined with the incoming ones using
// the same merge as the Parquet read path, and written back through a
// temporary table with COPY.
func (r *DailyMetricRepository) UpsertDailyMetrics(ctx context.Context, rows []domain.DailyMetric) error {
	if len(rows) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	dates := make([]string, 0, len(rows))
	for _, m := range rows {
		dates = append(dates, m.EventDate.UTC().Format(dateLayout))
	}
	existing, err := r.selectForUpdate(ctx, txn, dates)
	if err != nil {
		return err
	}
	merged := etl.MergeDaily(append(existing, rows...))

	tempTableName := "daily_metrics_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE daily_metrics INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return fmt.Errorf("failed to create import table: %w", err)
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, dailyColumns...))
	if err != nil {
		return err
	}
	for _, m := range merged {
		_, err = stmt.ExecContext(ctx,
			m.EventDate.UTC().Format(dateLayout), m.TotalRequests, m.UniqueUsers, m.AvgResponseTime, m.TotalResponseTime,
			m.TotalBytesSent, m.ClientErrorCount, m.ServerErrorCount, m.SuccessCount, m.RedirectCount,
			m.SlowRequests, m.FastRequests, m.LargeResponses, m.SmallResponses, m.ProcessingTS,
			m.ProcessingSeq, m.ErrorRate, m.SuccessRate, m.AvgResponseTimeSeconds, m.PerformanceGrade,
			m.AvailabilityScore,
		)
		if err != nil {
			// Close the statement to avoid connection issues
			_ = stmt.Close()
			return err
		}
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	upsertQuery := `
		INSERT INTO daily_metrics (` + columnList() + `)
		SELECT ` + columnList() + ` FROM ` + tempTableName + `
		ON CONFLICT (event_date) DO UPDATE SET ` + updateList() + `, updated_at = NOW();
	`
	if _, err := txn.ExecContext(ctx, upsertQuery); err != nil {
		return fmt.Errorf("failed to upsert daily metrics: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Info("daily metrics upserted", "dates", len(merged))
	return nil
}

// ListDailyMetrics returns stored rows with from <= event_date <= to in date order.
func (r *DailyMetricRepository) ListDailyMetrics(ctx context.Context, from, to time.Time) ([]domain.DailyMetric, error) {
	query := `SELECT ` + columnList() + ` FROM daily_metrics WHERE event_date BETWEEN $1 AND $2 ORDER BY event_date`
	rows, err := r.db.QueryContext(ctx, query, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()
	return scanDaily(rows)
}

func (r *DailyMetricRepository) selectForUpdate(ctx context.Context, txn *sql.Tx, dates []string) ([]domain.DailyMetric, error) {
	query := `SELECT ` + columnList() + ` FROM daily_metrics WHERE event_date = ANY($1::date[]) FOR UPDATE`
	rows, err := txn.QueryContext(ctx, query, pq.Array(dates))
	if err != nil {
		return nil, fmt.Errorf("failed to lock daily metrics: %w", err)
	}
	defer rows.Close()
	return scanDaily(rows)
}

func scanDaily(rows *sql.Rows) ([]domain.DailyMetric, error) {
	var out []domain.DailyMetric
	for rows.Next() {
		var m domain.DailyMetric
		if err := rows.Scan(
			&m.EventDate, &m.TotalRequests, &m.UniqueUsers, &m.AvgResponseTime, &m.TotalResponseTime,
			&m.TotalBytesSent, &m.ClientErrorCount, &m.ServerErrorCount, &m.SuccessCount, &m.RedirectCount,
			&m.SlowRequests, &m.FastRequests, &m.LargeResponses, &m.SmallResponses, &m.ProcessingTS,
			&m.ProcessingSeq, &m.ErrorRate, &m.SuccessRate, &m.AvgResponseTimeSeconds, &m.PerformanceGrade,
			&m.AvailabilityScore,
		); err != nil {
			return nil, err
		}
		m.EventDate = m.EventDate.UTC()
		m.ProcessingTS = m.ProcessingTS.UTC()
		m.Year, m.Month, m.Day = m.EventDate.Year(), int(m.EventDate.Month()), m.EventDate.Day()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func columnList() string {
	s := ""
	for i, c := range dailyColumns {
		if i > 0 {
			s += ", "
		}
		s += c
	}
	return s
}

func updateList() string {
	s := ""
	for _, c := range dailyColumns[1:] {
		if s != "" {
			s += ", "
		}
		s += c + " = EXCLUDED." + c
	}
	return s
}
