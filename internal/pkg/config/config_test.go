package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LAKE_BUCKET", "test-bucket")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LakeBucket != "test-bucket" {
		t.Errorf("expected bucket from env, got %q", cfg.LakeBucket)
	}
	if cfg.BronzePrefix != "bronze/" || cfg.GoldDailyPrefix != "gold/daily_metrics/" {
		t.Errorf("unexpected prefixes: %q %q", cfg.BronzePrefix, cfg.GoldDailyPrefix)
	}
	if cfg.StageLauncher != LauncherQueue {
		t.Errorf("expected default launcher %q, got %q", LauncherQueue, cfg.StageLauncher)
	}
	if cfg.PollTimeout != 15*time.Minute {
		t.Errorf("expected default poll timeout 15m, got %v", cfg.PollTimeout)
	}
	if cfg.PostgresEnabled() {
		t.Error("expected postgres to be disabled by default")
	}
	if cfg.KafkaEnabled() {
		t.Error("expected kafka to be disabled by default")
	}
	if len(cfg.RedactParams) != 5 || cfg.RedactParams[0] != "email" {
		t.Errorf("unexpected redact params: %v", cfg.RedactParams)
	}
}

func TestLoad_Kafka(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.KafkaEnabled() || len(cfg.KafkaBrokers) != 2 {
		t.Errorf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaNotifyTopic != "medallion-uploads" {
		t.Errorf("unexpected topic %q", cfg.KafkaNotifyTopic)
	}
}

func TestLoad_APIKeys(t *testing.T) {
	t.Setenv("TRIGGER_API_KEYS", "alpha,beta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.TriggerAPIKeys) != 2 || cfg.TriggerAPIKeys[1] != "beta" {
		t.Errorf("unexpected api keys: %v", cfg.TriggerAPIKeys)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Unknown backend", "LAKE_BACKEND", "hdfs"},
		{"Unknown launcher", "STAGE_LAUNCHER", "lambda"},
		{"Zero attempts", "POLL_MAX_ATTEMPTS", "0"},
		{"Bad duration", "POLL_TIMEOUT", "soon"},
		{"Spool without segment size", "SPOOL_MAX_SEGMENT_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPOOL_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireRedis(); err == nil {
		t.Error("expected RequireRedis to fail without REDIS_ADDR")
	}
	if err := cfg.RequirePostgres(); err == nil {
		t.Error("expected RequirePostgres to fail without POSTGRES_URL")
	}

	cfg.RedisAddr = "redis://localhost:6379/0"
	cfg.PostgresURL = "postgres://localhost/medallion"
	if err := cfg.RequireRedis(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := cfg.RequirePostgres(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
