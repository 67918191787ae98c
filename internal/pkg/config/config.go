package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Lake backends.
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Stage launchers.
const (
	LauncherQueue = "queue"
	LauncherGlue  = "glue"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`

	LakeBucket   string `env:"LAKE_BUCKET" envDefault:"medallion-data-lake"`
	LakeDatabase string `env:"LAKE_DATABASE" envDefault:"medallion_db"`
	LakeBackend  string `env:"LAKE_BACKEND" envDefault:"s3"`
	LakeLocalDir string `env:"LAKE_LOCAL_DIR" envDefault:"./data"`

	AWSRegion        string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`

	BronzePrefix      string `env:"BRONZE_PREFIX" envDefault:"bronze/"`
	SilverPrefix      string `env:"SILVER_PREFIX" envDefault:"silver/"`
	GoldDailyPrefix   string `env:"GOLD_DAILY_PREFIX" envDefault:"gold/daily_metrics/"`
	GoldSessionPrefix string `env:"GOLD_SESSION_PREFIX" envDefault:"gold/session_metrics/"`

	RedisAddr          string `env:"REDIS_ADDR"`
	StageStream        string `env:"STAGE_STREAM" envDefault:"stage_invocations"`
	StageDLQStream     string `env:"STAGE_DLQ_STREAM" envDefault:"stage_invocations_dlq"`
	StageConsumerGroup string `env:"STAGE_CONSUMER_GROUP" envDefault:"stage-workers"`

	PostgresURL string `env:"POSTGRES_URL"`

	TriggerServerAddr string   `env:"TRIGGER_SERVER_ADDR" envDefault:":8080"`
	MetricsAddr       string   `env:"METRICS_ADDR" envDefault:":9091"`
	PushgatewayURL    string   `env:"PUSHGATEWAY_URL"`
	TriggerAPIKeys    []string `env:"TRIGGER_API_KEYS" envSeparator:","`
	StageLauncher     string   `env:"STAGE_LAUNCHER" envDefault:"queue"`

	// RedactParams are query parameter names masked in silver paths and referrers.
	RedactParams []string `env:"PII_REDACT_PARAMS" envSeparator:"," envDefault:"email,token,password,ssn,api_key"`

	// SpoolDir enables spooling stage invocations to disk while the queue is down.
	SpoolDir            string        `env:"SPOOL_DIR"`
	SpoolMaxSegmentSize int64         `env:"SPOOL_MAX_SEGMENT_SIZE" envDefault:"1048576"`
	SpoolMaxTotalSize   int64         `env:"SPOOL_MAX_TOTAL_SIZE" envDefault:"67108864"`
	SpoolDrainInterval  time.Duration `env:"SPOOL_DRAIN_INTERVAL" envDefault:"10s"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNotifyTopic string   `env:"KAFKA_NOTIFY_TOPIC" envDefault:"medallion-uploads"`
	KafkaGroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"medallion-trigger"`

	GlueCrawlerName string `env:"GLUE_CRAWLER_NAME" envDefault:"medallion-bronze-crawler"`
	GlueSilverJob   string `env:"GLUE_SILVER_JOB" envDefault:"medallion-bronze-to-silver"`
	GlueGoldJob     string `env:"GLUE_GOLD_JOB" envDefault:"medallion-silver-to-gold"`

	PollInitialInterval time.Duration `env:"POLL_INITIAL_INTERVAL" envDefault:"5s"`
	PollMaxInterval     time.Duration `env:"POLL_MAX_INTERVAL" envDefault:"30s"`
	PollMaxAttempts     int           `env:"POLL_MAX_ATTEMPTS" envDefault:"40"`
	PollTimeout         time.Duration `env:"POLL_TIMEOUT" envDefault:"15m"`

	MonitorRefresh     time.Duration `env:"MONITOR_REFRESH" envDefault:"10s"`
	MonitorMaxFailures int           `env:"MONITOR_MAX_FAILURES" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LakeBackend {
	case BackendS3, BackendLocal:
	default:
		return fmt.Errorf("LAKE_BACKEND must be %q or %q, got %q", BackendS3, BackendLocal, c.LakeBackend)
	}
	switch c.StageLauncher {
	case LauncherQueue, LauncherGlue:
	default:
		return fmt.Errorf("STAGE_LAUNCHER must be %q or %q, got %q", LauncherQueue, LauncherGlue, c.StageLauncher)
	}
	if c.SpoolDir != "" && (c.SpoolMaxSegmentSize <= 0 || c.SpoolMaxTotalSize < c.SpoolMaxSegmentSize || c.SpoolDrainInterval <= 0) {
		return errors.New("SPOOL_MAX_SEGMENT_SIZE and SPOOL_DRAIN_INTERVAL must be positive and SPOOL_MAX_TOTAL_SIZE at least SPOOL_MAX_SEGMENT_SIZE")
	}
	if c.PollMaxAttempts <= 0 {
		return errors.New("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.PollInitialInterval <= 0 || c.PollMaxInterval < c.PollInitialInterval {
		return errors.New("POLL_INITIAL_INTERVAL must be positive and not exceed POLL_MAX_INTERVAL")
	}
	return nil
}

// RequireRedis fails when the binary needs the stage queue but REDIS_ADDR is unset.
func (c *Config) RequireRedis() error {
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	return nil
}

// RequirePostgres fails when POSTGRES_URL is unset.
func (c *Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	return nil
}

// PostgresEnabled reports whether the optional run ledger and metrics table are configured.
func (c *Config) PostgresEnabled() bool {
	return c.PostgresURL != ""
}

// KafkaEnabled reports whether upload notifications are also consumed from Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
