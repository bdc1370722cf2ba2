package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/observability"
)

// JobState tracks when a job last ran and how often it is due. Owned
// exclusively by the scheduler; updated only after a job commits.
type JobState struct {
	LastRun  time.Time
	Interval time.Duration
}

// SchedulerConfig groups scheduler dependencies.
type SchedulerConfig struct {
	Repo    inventory.RepositoryPort
	Sink    events.Sink
	Sales   events.SalesSource
	Config  Config
	Seed    int64
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// Scheduler runs simulator jobs in a fixed priority order: replenishment
// before consumption and loss accounting, so each job observes a consistent
// partially-updated snapshot within one tick.
type Scheduler struct {
	repo    inventory.RepositoryPort
	sink    events.Sink
	jobs    []Job
	state   map[string]*JobState
	rng     *rand.Rand
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// NewScheduler wires the five jobs with intervals from config.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	jobs := []Job{
		NewReceivingJob(cfg.Config.Receiving),
		NewReturnsJob(cfg.Config.Returns, cfg.Sales),
		NewSellDownJob(cfg.Config.SellDown),
		NewShrinkJob(cfg.Config.Shrink),
		NewDailyExpiryJob(),
	}
	intervals := map[string]time.Duration{
		JobNameReceiving:   cfg.Config.Intervals.Receiving.Std(),
		JobNameReturns:     cfg.Config.Intervals.Returns.Std(),
		JobNameSellDown:    cfg.Config.Intervals.SellDown.Std(),
		JobNameShrink:      cfg.Config.Intervals.Shrink.Std(),
		JobNameDailyExpiry: cfg.Config.Intervals.DailyExpiry.Std(),
	}
	state := make(map[string]*JobState, len(jobs))
	for _, job := range jobs {
		state[job.Name()] = &JobState{Interval: intervals[job.Name()]}
	}
	return &Scheduler{
		repo:    cfg.Repo,
		sink:    cfg.Sink,
		jobs:    jobs,
		state:   state,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clock:   clock,
	}
}

// Tick executes all due jobs against a fresh snapshot and returns the emitted
// events. A failing job is logged and its mutations discarded; the remaining
// due jobs still run. A snapshot fetch failure aborts the whole tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]events.Event, error) {
	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("sim: fetch snapshot: %w", err)
	}

	var all []events.Event
	var sinkErrs []error
	for _, job := range s.jobs {
		state := s.state[job.Name()]
		if now.Sub(state.LastRun) < state.Interval {
			continue
		}

		work := snapshot.Clone()
		jc := &JobContext{Now: now, RNG: s.rng, Snapshot: work}
		emitted, runErr := job.Run(ctx, jc)
		if runErr == nil {
			runErr = s.commit(ctx, jc.Mutations())
		}
		s.metrics.ObserveJobRun(job.Name(), runErr)
		if runErr != nil {
			s.logger.Error("simulator job failed",
				slog.String("job", job.Name()),
				slog.Any("error", runErr),
			)
			continue
		}

		snapshot = work
		state.LastRun = now
		if len(emitted) > 0 {
			if err := s.sink.Append(ctx, emitted...); err != nil {
				s.logger.Error("event append failed",
					slog.String("job", job.Name()),
					slog.Any("error", err),
				)
				sinkErrs = append(sinkErrs, err)
			} else {
				s.metrics.ObserveEvents(job.Name(), len(emitted))
			}
		}
		all = append(all, emitted...)
		s.logger.Info("simulator job complete",
			slog.String("job", job.Name()),
			slog.Int("events", len(emitted)),
		)
	}
	return all, errors.Join(sinkErrs...)
}

// commit replays a job's movements against the repository as one batch. A
// failure leaves the job fully uncommitted: no movement lands, the last-run
// timestamp is not advanced and the job's events are not forwarded.
func (s *Scheduler) commit(ctx context.Context, mutations []inventory.Movement) error {
	if len(mutations) == 0 {
		return nil
	}
	if err := s.repo.ApplyDeltas(ctx, mutations); err != nil {
		return fmt.Errorf("sim: commit: %w", err)
	}
	return nil
}

// NextDue returns the earliest time any job becomes due after now.
func (s *Scheduler) NextDue(now time.Time) time.Time {
	next := time.Time{}
	for _, state := range s.state {
		due := state.LastRun.Add(state.Interval)
		if due.Before(now) {
			due = now
		}
		if next.IsZero() || due.Before(next) {
			next = due
		}
	}
	return next
}

// Run loops ticks until the context is cancelled, sleeping until the next job
// is due. Tick errors are logged and the loop proceeds with stale data next
// round.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock()
		if _, err := s.Tick(ctx, now); err != nil {
			s.logger.Error("simulator tick failed", slog.Any("error", err))
		}

		wait := s.NextDue(s.clock()).Sub(s.clock())
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
