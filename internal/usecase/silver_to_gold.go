package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V4T54L/medallion/internal/adapter/lake"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/etl"
)

// SilverToGoldUseCase aggregates the silver rows newer than the gold
// watermark into daily and session metrics.
type SilverToGoldUseCase struct {
	store   domain.ObjectStore
	metrics domain.DailyMetricRepository
	locs    Locations
	logger  *slog.Logger
}

// NewSilverToGoldUseCase creates the silver to gold stage. metrics may be nil,
// in which case daily rows are only appended to the lake.
func NewSilverToGoldUseCase(store domain.ObjectStore, metrics domain.DailyMetricRepository, locs Locations, logger *slog.Logger) *SilverToGoldUseCase {
	return &SilverToGoldUseCase{
		store:   store,
		metrics: metrics,
		locs:    locs,
		logger:  logger.With("stage", string(domain.StageSilverToGold)),
	}
}

// Run aggregates new silver rows. Missing silver data or no rows past the
// watermark is a successful no-op.
func (uc *SilverToGoldUseCase) Run(ctx context.Context, inv domain.StageInvocation) (domain.StageResult, error) {
	ctx, span := otel.Tracer("silver-to-gold").Start(ctx, "SilverToGold")
	defer span.End()

	sess := lake.NewSession(uc.store, uc.logger)
	defer sess.Close()

	res := domain.StageResult{Stage: domain.StageSilverToGold, RunID: sess.RunID}
	logger := uc.logger.With("run_id", sess.RunID, "trigger_key", inv.Key)
	span.SetAttributes(attribute.String("run_id", sess.RunID))

	// 1. Load silver
	exists, err := sess.Exists(ctx, uc.locs.Silver)
	if err != nil {
		return res, spanError(span, fmt.Errorf("failed to check silver data: %w", err))
	}
	if !exists {
		logger.Info("no silver data found, nothing to do", "prefix", uc.locs.Silver)
		res.NoOp = true
		return res, nil
	}
	events, err := sess.ReadSilver(ctx, uc.locs.Silver)
	if err != nil {
		return res, spanError(span, fmt.Errorf("failed to read silver data: %w", err))
	}
	res.InputRecords = len(events)

	// 2. Keep rows past the gold watermark
	existing, err := sess.ReadDaily(ctx, uc.locs.GoldDaily)
	if err != nil {
		return res, spanError(span, fmt.Errorf("failed to read gold watermark: %w", err))
	}
	fresh := events
	if wm, ok := etl.HighWatermark(existing); ok {
		fresh = etl.FilterNew(events, wm)
		res.Watermark = wm.Timestamp
		logger.Info("incremental load", "watermark", wm.Timestamp, "watermark_seq", wm.Seq, "input", len(events), "new", len(fresh))
	} else {
		logger.Info("no gold data yet, aggregating all silver rows", "input", len(events))
	}
	if len(fresh) == 0 {
		logger.Info("no new silver rows since last run")
		res.NoOp = true
		return res, nil
	}

	nulls := etl.NullCounts(fresh)
	attrs := make([]any, 0, 2*len(nulls))
	for col, n := range nulls {
		attrs = append(attrs, col, n)
	}
	logger.Info("null counts", attrs...)

	// 3. Aggregate and append. Daily rows carry the watermark, so they are
	// written last and any failure removes what this run published.
	daily := etl.AggregateDaily(fresh)
	sessions := etl.AggregateSessions(fresh)

	if _, err := sess.AppendSessions(ctx, uc.locs.GoldSessions, sessions); err != nil {
		return res, spanError(span, uc.rollback(ctx, sess, logger, fmt.Errorf("failed to write session metrics: %w", err)))
	}
	if _, err := sess.AppendDaily(ctx, uc.locs.GoldDaily, daily); err != nil {
		return res, spanError(span, uc.rollback(ctx, sess, logger, fmt.Errorf("failed to write daily metrics: %w", err)))
	}
	res.OutputRecords = len(fresh)
	res.DailyMetrics = len(daily)
	res.SessionRows = len(sessions)
	if wm, ok := etl.HighWatermark(daily); ok {
		res.Watermark = wm.Timestamp
	}
	logger.Info("gold data written", "aggregated", len(fresh), "daily_metrics", len(daily), "session_metrics", len(sessions))

	if uc.metrics != nil {
		if err := uc.metrics.UpsertDailyMetrics(ctx, daily); err != nil {
			logger.Error("failed to upsert daily metrics, lake data is unaffected", "error", err)
		}
	}

	uc.logTotals(ctx, sess, logger)
	return res, nil
}

// rollback undoes the run's published files and returns cause. A failed
// rollback is joined to cause, since leftover sessions would be counted again.
func (uc *SilverToGoldUseCase) rollback(ctx context.Context, sess *lake.Session, logger *slog.Logger, cause error) error {
	if err := sess.Rollback(ctx); err != nil {
		logger.Error("failed to roll back partial gold append", "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

func (uc *SilverToGoldUseCase) logTotals(ctx context.Context, sess *lake.Session, logger *slog.Logger) {
	dailyRows, err := sess.CountRows(ctx, uc.locs.GoldDaily)
	if err != nil {
		logger.Warn("could not count daily metric rows", "error", err)
		return
	}
	sessionRows, err := sess.CountRows(ctx, uc.locs.GoldSessions)
	if err != nil {
		logger.Warn("could not count session metric rows", "error", err)
		return
	}
	logger.Info("gold layer totals", "daily_metric_rows", dailyRows, "session_metric_rows", sessionRows)
}
