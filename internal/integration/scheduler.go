package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodflow/foodflow/internal/detect"
	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/observability"
	"github.com/foodflow/foodflow/internal/policy"
)

// FlagDetector abstracts the shrink detector consumed by the cycle.
type FlagDetector interface {
	Detect(ctx context.Context, snapshot *inventory.Snapshot, now time.Time) ([]detect.Flag, error)
}

// DecisionRecorder receives actionable decisions for compliance bookkeeping.
type DecisionRecorder interface {
	Record(ctx context.Context, at time.Time, decisions []policy.Decision) error
}

// Quarantiner moves a lot's sellable stock into quarantine.
type Quarantiner interface {
	QuarantineLot(ctx context.Context, product, lot, source string) (events.Event, error)
}

// SchedulerConfig groups sync-cycle dependencies.
type SchedulerConfig struct {
	Repo        inventory.RepositoryPort
	Detector    FlagDetector
	Engine      *policy.Engine
	Store       *FlaggedStore
	Recorder    DecisionRecorder
	Quarantiner Quarantiner
	Interval    time.Duration
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Clock       func() time.Time
}

// Scheduler runs the detect-decide-publish pipeline on a fixed cadence. A
// failed cycle leaves the previous artifact and last-sync untouched and the
// loop carries on.
type Scheduler struct {
	repo        inventory.RepositoryPort
	detector    FlagDetector
	engine      *policy.Engine
	store       *FlaggedStore
	recorder    DecisionRecorder
	quarantiner Quarantiner
	interval    time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       func() time.Time
}

// NewScheduler constructs Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		repo:        cfg.Repo,
		detector:    cfg.Detector,
		engine:      cfg.Engine,
		store:       cfg.Store,
		recorder:    cfg.Recorder,
		quarantiner: cfg.Quarantiner,
		interval:    cfg.Interval,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		clock:       clock,
	}
}

// RunCycle executes one sync cycle: fetch snapshot, detect, decide, enrich,
// publish. Any failure before publish aborts the cycle without touching the
// published artifact.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) (err error) {
	started := s.clock()
	defer func() {
		s.metrics.ObserveCycle(s.clock().Sub(started), err)
	}()

	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("integration: fetch snapshot: %w", err)
	}
	flags, err := s.detector.Detect(ctx, snapshot, now)
	if err != nil {
		return fmt.Errorf("integration: detect: %w", err)
	}
	decisions := Enrich(snapshot, s.engine.Decide(flags))

	if err = s.store.Publish(ctx, Artifact{GeneratedAt: now, Decisions: decisions}); err != nil {
		return err
	}
	if s.recorder != nil {
		// Compliance bookkeeping rides along but cannot fail the cycle.
		if recErr := s.recorder.Record(ctx, now, decisions); recErr != nil {
			s.logger.Warn("compliance record failed", slog.Any("error", recErr))
		}
	}
	s.executeRecalls(ctx, snapshot, decisions)
	s.logger.Info("sync cycle complete",
		slog.Int("flags", len(flags)),
		slog.Int("decisions", len(decisions)),
	)
	return nil
}

// executeRecalls moves stock to quarantine for RECALL_QUARANTINE decisions.
// Recall execution follows the publish and cannot fail the cycle.
func (s *Scheduler) executeRecalls(ctx context.Context, snapshot *inventory.Snapshot, decisions []policy.Decision) {
	if s.quarantiner == nil {
		return
	}
	for _, decision := range decisions {
		if decision.Outcome != policy.OutcomeRecallQuarantine {
			continue
		}
		for _, lot := range snapshot.Lots() {
			if lot.Product != decision.DefaultCode {
				continue
			}
			if _, err := s.quarantiner.QuarantineLot(ctx, lot.Product, lot.Lot, "integration"); err != nil {
				s.logger.Warn("recall quarantine failed",
					slog.String("product", lot.Product),
					slog.String("lot", lot.Lot),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Run loops cycles until the context is cancelled. A failing cycle is logged
// and retried at the next interval; the loop never exits on upstream errors.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunCycle(ctx, s.clock()); err != nil {
			s.logger.Error("sync cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
