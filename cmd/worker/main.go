package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/foodflow/foodflow/internal/app"
	"github.com/foodflow/foodflow/internal/compliance"
	"github.com/foodflow/foodflow/internal/detect"
	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/integration"
	"github.com/foodflow/foodflow/internal/inventory"
	jobmetrics "github.com/foodflow/foodflow/internal/jobs"
	"github.com/foodflow/foodflow/internal/platform/cache"
	"github.com/foodflow/foodflow/internal/platform/db"
	"github.com/foodflow/foodflow/internal/policy"
	"github.com/foodflow/foodflow/internal/sim"
	"github.com/foodflow/foodflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var sink events.Sink
	if cfg.EventBackend == "postgres" {
		sink = events.NewPGSink(pool)
	} else {
		fileSink, err := events.NewFileSink(cfg.EventLogPath)
		if err != nil {
			logger.Error("open event log", slog.Any("error", err))
			os.Exit(1)
		}
		defer fileSink.Close()
		sink = fileSink
	}

	repo := inventory.NewRepository(pool)
	sales := events.FallbackSales{
		Primary:   events.NewSinkSales(sink),
		Secondary: events.NewTableSales(pool),
	}

	simCfg, err := sim.LoadConfig(cfg.SimulatorConfigPath)
	if err != nil {
		logger.Error("load simulator config", slog.Any("error", err))
		os.Exit(1)
	}
	simSched := sim.NewScheduler(sim.SchedulerConfig{
		Repo:   repo,
		Sink:   sink,
		Sales:  sales,
		Config: simCfg,
		Seed:   cfg.SimulatorSeed,
		Logger: logger,
	})

	thresholds, err := detect.LoadConfig(cfg.ThresholdsPath)
	if err != nil {
		logger.Error("load thresholds", slog.Any("error", err))
		os.Exit(1)
	}
	table, err := policy.LoadRuleTable(cfg.DecisionPolicyPath)
	if err != nil {
		logger.Error("load decision policy", slog.Any("error", err))
		os.Exit(1)
	}
	store := integration.NewFlaggedStore(cfg.FlaggedPath, redisClient, logger)
	var recorder integration.DecisionRecorder
	if cfg.EventBackend == "postgres" {
		recorder = compliance.NewRecorder(pool, logger)
	} else {
		recorder = compliance.NewFileRecorder(cfg.ComplianceCSVPath)
	}
	syncSched := integration.NewScheduler(integration.SchedulerConfig{
		Repo:        repo,
		Detector:    detect.NewDetector(thresholds, sales, sink, logger),
		Engine:      policy.NewEngine(table, logger),
		Store:       store,
		Recorder:    recorder,
		Quarantiner: inventory.NewService(repo, sink, logger),
		Interval:    cfg.IntegrationInterval,
		Logger:      logger,
	})

	metrics := jobmetrics.NewMetrics(nil)
	tickJob := jobs.NewSimTickJob(simSched, logger, metrics)
	cycleJob := jobs.NewIntegrationCycleJob(syncSched, logger, metrics)

	tickTask, err := jobs.NewSimTickTask(jobs.TickPayload{})
	if err != nil {
		logger.Error("build tick task", slog.Any("error", err))
		os.Exit(1)
	}
	cycleTask, err := jobs.NewIntegrationCycleTask()
	if err != nil {
		logger.Error("build cycle task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSimTick, Handler: tickJob.Handle},
			{Type: jobs.TaskIntegrationCycle, Handler: cycleJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: fmt.Sprintf("@every %s", cfg.SimulatorInterval), Task: tickTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: fmt.Sprintf("@every %s", cfg.IntegrationInterval), Task: cycleTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Small sidecar server so the queue depth is scrapeable.
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	router := chi.NewRouter()
	jobs.NewHandler(inspector, logger).MountRoutes(router)
	healthSrv := &http.Server{Addr: cfg.WorkerAddr, Handler: router}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker health server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker health shutdown", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
