package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/foodflow/foodflow/internal/app"
	"github.com/foodflow/foodflow/internal/compliance"
	"github.com/foodflow/foodflow/internal/detect"
	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/integration"
	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/observability"
	"github.com/foodflow/foodflow/internal/platform/cache"
	"github.com/foodflow/foodflow/internal/platform/db"
	"github.com/foodflow/foodflow/internal/policy"
	"github.com/foodflow/foodflow/internal/sim"
)

// runtime bundles the shared dependencies behind every command.
type runtime struct {
	cfg     *app.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	pool    *pgxpool.Pool
	cache   *redis.Client
	repo    inventory.RepositoryPort
	sink    events.Sink
	sales   events.SalesSource

	closers []func()
}

// newRuntime loads configuration and connects the backing services.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	r := &runtime{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r.pool = pool
	r.closers = append(r.closers, pool.Close)
	r.repo = inventory.NewRepository(pool)

	client := cache.New(ctx, cfg.RedisAddr, logger)
	r.cache = client
	r.closers = append(r.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})

	switch cfg.EventBackend {
	case "postgres":
		r.sink = events.NewPGSink(pool)
	default:
		sink, err := events.NewFileSink(cfg.EventLogPath)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		r.sink = sink
		r.closers = append(r.closers, func() {
			if err := sink.Close(); err != nil {
				logger.Warn("event log close", slog.Any("error", err))
			}
		})
	}

	// Sales come from the event log first; the sales_history table backs it
	// up when the log has no window coverage yet.
	r.sales = events.FallbackSales{
		Primary:   events.NewSinkSales(r.sink),
		Secondary: events.NewTableSales(pool),
	}
	return r, nil
}

// Close releases resources in reverse acquisition order.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// simScheduler builds the simulation scheduler from the YAML config.
func (r *runtime) simScheduler() (*sim.Scheduler, error) {
	simCfg, err := sim.LoadConfig(r.cfg.SimulatorConfigPath)
	if err != nil {
		return nil, err
	}
	return sim.NewScheduler(sim.SchedulerConfig{
		Repo:    r.repo,
		Sink:    r.sink,
		Sales:   r.sales,
		Config:  simCfg,
		Seed:    r.cfg.SimulatorSeed,
		Logger:  r.logger,
		Metrics: r.metrics,
	}), nil
}

// detector builds the shrink detector from the thresholds file.
func (r *runtime) detector() (*detect.Detector, error) {
	thresholds, err := detect.LoadConfig(r.cfg.ThresholdsPath)
	if err != nil {
		return nil, err
	}
	return detect.NewDetector(thresholds, r.sales, r.sink, r.logger), nil
}

// engine builds the policy engine from the decision rule table.
func (r *runtime) engine() (*policy.Engine, error) {
	table, err := policy.LoadRuleTable(r.cfg.DecisionPolicyPath)
	if err != nil {
		return nil, err
	}
	return policy.NewEngine(table, r.logger), nil
}

// recorder picks the compliance backend matching the event backend: rows in
// PostgreSQL when events live there, a CSV file otherwise.
func (r *runtime) recorder() integration.DecisionRecorder {
	if r.cfg.EventBackend == "postgres" {
		return compliance.NewRecorder(r.pool, r.logger)
	}
	return compliance.NewFileRecorder(r.cfg.ComplianceCSVPath)
}

// integrationScheduler builds the sync-cycle loop and its flagged store.
func (r *runtime) integrationScheduler() (*integration.Scheduler, *integration.FlaggedStore, error) {
	detector, err := r.detector()
	if err != nil {
		return nil, nil, err
	}
	engine, err := r.engine()
	if err != nil {
		return nil, nil, err
	}
	store := integration.NewFlaggedStore(r.cfg.FlaggedPath, r.cache, r.logger)
	sched := integration.NewScheduler(integration.SchedulerConfig{
		Repo:        r.repo,
		Detector:    detector,
		Engine:      engine,
		Store:       store,
		Recorder:    r.recorder(),
		Quarantiner: inventory.NewService(r.repo, r.sink, r.logger),
		Interval:    r.cfg.IntegrationInterval,
		Logger:      r.logger,
		Metrics:     r.metrics,
	})
	return sched, store, nil
}
