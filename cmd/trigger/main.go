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

	"github.com/V4T54L/medallion/internal/adapter/api"
	"github.com/V4T54L/medallion/internal/adapter/api/handler"
	"github.com/V4T54L/medallion/internal/adapter/metrics"
	"github.com/V4T54L/medallion/internal/adapter/notify"
	"github.com/V4T54L/medallion/internal/bootstrap"
	"github.com/V4T54L/medallion/internal/domain"
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

	logger := logger.New(cfg.LogLevel).With("service", "trigger")
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)

	ledger, err := bootstrap.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open run ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	// --- Stage Launcher ---
	var (
		launcher domain.StageLauncher
		admin    handler.QueueAdmin
	)
	switch cfg.StageLauncher {
	case config.LauncherGlue:
		lake, err := bootstrap.OpenLake(cfg, logger)
		if err != nil {
			logger.Error("failed to open lake", "error", err)
			os.Exit(1)
		}
		glueLauncher, err := bootstrap.GlueLauncher(cfg, lake, logger)
		if err != nil {
			logger.Error("failed to create glue launcher", "error", err)
			os.Exit(1)
		}
		launcher = glueLauncher
	default:
		redisClient, err := bootstrap.OpenRedis(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		queue, err := bootstrap.OpenStageQueue(ctx, cfg, redisClient, logger)
		if err != nil {
			logger.Error("failed to create stage queue", "error", err)
			os.Exit(1)
		}
		launcher = usecase.NewQueueLauncher(queue)
		if cfg.SpoolDir != "" {
			spooling, closeSpool, err := bootstrap.SpoolLauncher(cfg, launcher, logger)
			if err != nil {
				logger.Error("failed to open invocation spool", "error", err)
				os.Exit(1)
			}
			defer closeSpool()
			if _, err := spooling.Drain(ctx); err != nil {
				logger.Warn("initial spool drain failed", "error", err)
			}
			go spooling.Run(ctx, cfg.SpoolDrainInterval)
			launcher = spooling
		}
		admin = usecase.NewAdminUseCase(bootstrap.OpenQueueAdmin(cfg, redisClient, logger), ledger.Runs)
	}
	logger.Info("stage launcher ready", "launcher", cfg.StageLauncher)

	triggerUseCase := usecase.NewTriggerUseCase(launcher, m, usecase.TriggerOptions{
		Bucket:      cfg.LakeBucket,
		Database:    cfg.LakeDatabase,
		Environment: cfg.Environment,
	}, logger)

	if len(cfg.TriggerAPIKeys) == 0 {
		logger.Warn("TRIGGER_API_KEYS is empty, every authenticated route will reject requests")
	}

	// --- Trigger Server ---
	server := &http.Server{
		Addr: cfg.TriggerServerAddr,
		Handler: api.NewRouter(api.RouterDeps{
			Logger:   logger,
			APIKeys:  cfg.TriggerAPIKeys,
			Notifier: triggerUseCase,
			Admin:    admin,
			Gatherer: reg,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting trigger server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("trigger server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Kafka Notifications ---
	consumerDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		consumer := notify.NewConsumer(notify.Options{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaNotifyTopic,
			GroupID: cfg.KafkaGroupID,
			Retry:   bootstrap.Backoff(cfg),
		}, triggerUseCase, logger.With("component", "kafka_consumer"))
		go func() {
			defer close(consumerDone)
			defer consumer.Close()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("notification consumer failed", "error", err)
				stop()
			}
		}()
	} else {
		close(consumerDone)
	}

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down trigger...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("trigger server shutdown failed", "error", err)
	}
	<-consumerDone

	logger.Info("trigger shut down gracefully")
}
