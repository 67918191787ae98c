// Package bootstrap wires configuration into the adapters shared by the
// medallion binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws/session"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/medallion/internal/adapter/glue"
	"github.com/V4T54L/medallion/internal/adapter/objectstore/localstore"
	"github.com/V4T54L/medallion/internal/adapter/objectstore/s3store"
	"github.com/V4T54L/medallion/internal/adapter/pii"
	"github.com/V4T54L/medallion/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/medallion/internal/adapter/repository/redis"
	"github.com/V4T54L/medallion/internal/adapter/repository/wal"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/etl"
	"github.com/V4T54L/medallion/internal/pkg/config"
	"github.com/V4T54L/medallion/internal/pkg/poll"
	"github.com/V4T54L/medallion/internal/usecase"
)

// Lake is the object store holding every layer. Session is set only for the
// S3 backend and is reused by other AWS clients.
type Lake struct {
	Bucket  string
	Store   domain.ObjectStore
	Session *session.Session
}

// OpenLake opens the lake in LAKE_BUCKET.
func OpenLake(cfg *config.Config, logger *slog.Logger) (Lake, error) {
	return OpenLakeFor(cfg, "", logger)
}

// OpenLakeFor opens the lake in bucket, or in LAKE_BUCKET when bucket is
// empty. The local backend holds only LAKE_BUCKET and rejects any other.
func OpenLakeFor(cfg *config.Config, bucket string, logger *slog.Logger) (Lake, error) {
	if bucket == "" {
		bucket = cfg.LakeBucket
	}
	switch cfg.LakeBackend {
	case config.BackendLocal:
		if bucket != cfg.LakeBucket {
			return Lake{}, fmt.Errorf("%w: local lake %s holds %q, not %q", domain.ErrBucketMismatch, cfg.LakeLocalDir, cfg.LakeBucket, bucket)
		}
		store, err := localstore.New(cfg.LakeLocalDir, logger)
		if err != nil {
			return Lake{}, err
		}
		return Lake{Bucket: bucket, Store: store}, nil
	default:
		sess, err := s3store.NewSession(cfg.AWSRegion, cfg.S3Endpoint, cfg.S3ForcePathStyle)
		if err != nil {
			return Lake{}, err
		}
		return Lake{Bucket: bucket, Store: s3store.New(sess, bucket, logger), Session: sess}, nil
	}
}

// Locations returns the configured layer prefixes.
func Locations(cfg *config.Config) usecase.Locations {
	return usecase.Locations{
		Bronze:       cfg.BronzePrefix,
		Silver:       cfg.SilverPrefix,
		GoldDaily:    cfg.GoldDailyPrefix,
		GoldSessions: cfg.GoldSessionPrefix,
	}
}

// Backoff returns the polling bounds from configuration.
func Backoff(cfg *config.Config) poll.Backoff {
	return poll.Backoff{
		Initial:     cfg.PollInitialInterval,
		Max:         cfg.PollMaxInterval,
		Multiplier:  2,
		MaxAttempts: cfg.PollMaxAttempts,
		Timeout:     cfg.PollTimeout,
	}
}

// Ledger holds the optional Postgres repositories. With POSTGRES_URL unset
// every field is nil.
type Ledger struct {
	DB    *sql.DB
	Runs  domain.RunRepository
	Daily domain.DailyMetricRepository
}

// OpenLedger connects to Postgres and ensures the schema when configured.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Ledger, error) {
	if !cfg.PostgresEnabled() {
		logger.Info("POSTGRES_URL not set, run ledger disabled")
		return &Ledger{}, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to postgres")
	return &Ledger{
		DB:    db,
		Runs:  postgres.NewRunRepository(db, logger),
		Daily: postgres.NewDailyMetricRepository(db, logger),
	}, nil
}

// Close releases the connection pool.
func (l *Ledger) Close() {
	if l.DB != nil {
		l.DB.Close()
	}
}

// OpenRedis connects to the stage queue server.
func OpenRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if err := cfg.RequireRedis(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return client, nil
}

// OpenStageQueue creates the stage queue on client.
func OpenStageQueue(ctx context.Context, cfg *config.Config, client *redis.Client, logger *slog.Logger) (*redisrepo.StageQueue, error) {
	return redisrepo.NewStageQueue(ctx, client, logger, cfg.StageStream, cfg.StageDLQStream, cfg.StageConsumerGroup)
}

// SpoolLauncher wraps next with the on-disk invocation spool. The returned
// close func releases the spool.
func SpoolLauncher(cfg *config.Config, next domain.StageLauncher, logger *slog.Logger) (*usecase.SpoolingLauncher, func() error, error) {
	spool, err := wal.NewSpool(cfg.SpoolDir, cfg.SpoolMaxSegmentSize, cfg.SpoolMaxTotalSize, logger)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewSpoolingLauncher(next, spool, logger), spool.Close, nil
}

// OpenQueueAdmin creates the queue admin repository on client.
func OpenQueueAdmin(cfg *config.Config, client *redis.Client, logger *slog.Logger) *redisrepo.AdminRepository {
	return redisrepo.NewAdminRepository(client, logger, cfg.StageStream, cfg.StageDLQStream, cfg.StageConsumerGroup)
}

// Stages builds both pipeline stages. daily may be nil.
func Stages(cfg *config.Config, store domain.ObjectStore, daily domain.DailyMetricRepository, logger *slog.Logger) (map[domain.Stage]usecase.Stage, error) {
	locs := Locations(cfg)
	pattern, err := etl.NewBatchPattern(locs.Bronze)
	if err != nil {
		return nil, err
	}
	redactor := pii.NewRedactor(cfg.RedactParams, logger)
	return map[domain.Stage]usecase.Stage{
		domain.StageBronzeToSilver: usecase.NewBronzeToSilverUseCase(store, redactor, locs, pattern, logger),
		domain.StageSilverToGold:   usecase.NewSilverToGoldUseCase(store, daily, locs, logger),
	}, nil
}

// GlueLauncher creates the Glue launcher, reusing the lake's AWS session
// when there is one.
func GlueLauncher(cfg *config.Config, lake Lake, logger *slog.Logger) (*glue.Launcher, error) {
	sess := lake.Session
	if sess == nil {
		var err error
		sess, err = s3store.NewSession(cfg.AWSRegion, cfg.S3Endpoint, cfg.S3ForcePathStyle)
		if err != nil {
			return nil, err
		}
	}
	return glue.New(sess, glue.Options{
		CrawlerName: cfg.GlueCrawlerName,
		Jobs: map[domain.Stage]string{
			domain.StageBronzeToSilver: cfg.GlueSilverJob,
			domain.StageSilverToGold:   cfg.GlueGoldJob,
		},
		Backoff: Backoff(cfg),
	}, logger), nil
}
