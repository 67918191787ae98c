package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V4T54L/medallion/internal/adapter/lake"
	"github.com/V4T54L/medallion/internal/adapter/pii"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/etl"
)

// BronzeToSilverUseCase turns the latest raw bronze batch into typed,
// validated and enriched silver rows.
type BronzeToSilverUseCase struct {
	store    domain.ObjectStore
	redactor *pii.Redactor
	locs     Locations
	pattern  *etl.BatchPattern
	logger   *slog.Logger
	now      func() time.Time
}

// NewBronzeToSilverUseCase creates the bronze to silver stage. redactor may be nil.
func NewBronzeToSilverUseCase(store domain.ObjectStore, redactor *pii.Redactor, locs Locations, pattern *etl.BatchPattern, logger *slog.Logger) *BronzeToSilverUseCase {
	return &BronzeToSilverUseCase{
		store:    store,
		redactor: redactor,
		locs:     locs,
		pattern:  pattern,
		logger:   logger.With("stage", string(domain.StageBronzeToSilver)),
		now:      time.Now,
	}
}

// Run processes one bronze batch. Missing bronze data is a successful no-op.
func (uc *BronzeToSilverUseCase) Run(ctx context.Context, inv domain.StageInvocation) (domain.StageResult, error) {
	ctx, span := otel.Tracer("bronze-to-silver").Start(ctx, "BronzeToSilver")
	defer span.End()

	sess := lake.NewSession(uc.store, uc.logger)
	defer sess.Close()

	res := domain.StageResult{Stage: domain.StageBronzeToSilver, RunID: sess.RunID}
	logger := uc.logger.With("run_id", sess.RunID, "trigger_key", inv.Key)
	span.SetAttributes(attribute.String("run_id", sess.RunID))

	// 1. Find the latest batch
	objects, err := sess.List(ctx, uc.locs.Bronze)
	if err != nil {
		if len(objects) == 0 {
			return res, spanError(span, fmt.Errorf("failed to list bronze batches: %w", err))
		}
		logger.Warn("bronze listing incomplete, selecting from partial listing", "listed", len(objects), "error", err)
	}
	if len(objects) == 0 {
		logger.Info("no bronze data found, nothing to do", "prefix", uc.locs.Bronze)
		res.NoOp = true
		return res, nil
	}
	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	latest, ok := etl.SelectLatest(keys, uc.pattern)
	if !ok {
		logger.Info("no bronze batch matches the naming convention", "objects", len(objects))
		res.NoOp = true
		return res, nil
	}
	res.SourceKey = latest.Key
	span.SetAttributes(attribute.String("source_key", latest.Key))

	// 2. Read and reconcile
	records, malformed, err := sess.ReadBronze(ctx, latest.Key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			logger.Warn("selected bronze batch disappeared, nothing to do", "key", latest.Key)
			res.NoOp = true
			return res, nil
		}
		return res, spanError(span, fmt.Errorf("failed to read bronze batch %s: %w", latest.Key, err))
	}
	res.InputRecords = len(records)
	logger.Info("bronze batch loaded", "key", latest.Key, "batch_time", latest.Timestamp, "input", len(records), "malformed", malformed)

	records, missing := etl.Reconcile(records, etl.ExpectedFields)
	if len(missing) > 0 {
		logger.Info("backfilled missing columns", "fields", missing)
	}

	// 3. Type, validate and deduplicate
	valid, report := etl.FilterValid(etl.CastBatch(records))
	res.Rejected = report.Rejected
	res.Duplicates = report.Duplicates
	logger.Info("validation complete",
		"input", report.Input,
		"rejected", report.Rejected,
		"duplicates", report.Duplicates,
		"output", report.Output,
	)
	if len(valid) == 0 {
		logger.Warn("no valid records in batch, nothing written", "key", latest.Key)
		return res, nil
	}

	// 4. Drop events already in silver, so a re-run or redelivered
	// invocation appends nothing twice
	stored, err := sess.SilverEventIDs(ctx, uc.locs.Silver)
	if err != nil {
		return res, spanError(span, fmt.Errorf("failed to read stored silver event ids: %w", err))
	}
	valid, already := etl.ExcludeSeen(valid, stored)
	res.Duplicates += already
	if len(valid) == 0 {
		logger.Info("bronze batch already in silver, nothing to do", "key", latest.Key, "already_stored", already)
		res.NoOp = true
		return res, nil
	}
	if already > 0 {
		logger.Info("skipped events already in silver", "already_stored", already, "remaining", len(valid))
	}

	if uc.redactor != nil {
		uc.redactor.RedactBatch(valid)
	}

	// 5. Enrich and append
	events := etl.EnrichBatch(valid, uc.now().UTC())
	files, err := sess.AppendSilver(ctx, uc.locs.Silver, events)
	if err != nil {
		err = fmt.Errorf("failed to write silver data: %w", err)
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			logger.Error("failed to roll back partial silver append", "error", rbErr)
			err = errors.Join(err, rbErr)
		}
		return res, spanError(span, err)
	}
	res.OutputRecords = len(events)
	logger.Info("silver data written", "output", len(events), "files", len(files))

	if total, err := sess.CountRows(ctx, uc.locs.Silver); err != nil {
		logger.Warn("could not count silver rows", "error", err)
	} else {
		logger.Info("silver layer total", "rows", total)
	}
	return res, nil
}
