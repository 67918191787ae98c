package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/medallion/internal/adapter/metrics"
	"github.com/V4T54L/medallion/internal/bootstrap"
	"github.com/V4T54L/medallion/internal/pkg/config"
	"github.com/V4T54L/medallion/internal/pkg/logger"
	"github.com/V4T54L/medallion/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).With("service", "worker")
	log.Info("starting stage worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics Server ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// --- Connections ---
	redisClient, err := bootstrap.OpenRedis(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	ledger, err := bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open run ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	lake, err := bootstrap.OpenLake(cfg, log)
	if err != nil {
		log.Error("failed to open lake", "error", err)
		os.Exit(1)
	}

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "worker-default"
	}

	queue, err := bootstrap.OpenStageQueue(ctx, cfg, redisClient, log)
	if err != nil {
		log.Error("failed to create stage queue", "error", err)
		os.Exit(1)
	}
	stages, err := bootstrap.Stages(cfg, lake.Store, ledger.Daily, log)
	if err != nil {
		log.Error("failed to build stages", "error", err)
		os.Exit(1)
	}

	// Invocations for other buckets fail and land in the dead-letter stream.
	runner := usecase.NewStageRunner(stages, ledger.Runs, m, log).BindBucket(lake.Bucket)
	worker := usecase.NewWorkerUseCase(queue, runner, log, consumerName)

	log.Info("stage worker started", "group", cfg.StageConsumerGroup, "consumer", consumerName)
	if err := worker.Run(ctx); err != nil {
		log.Error("stage worker failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
	log.Info("stage worker shut down gracefully")
}
