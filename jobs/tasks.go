// Package jobs wires the simulator and sync cycle onto the Asynq queue so
// ticks can be triggered on a cron schedule or on demand.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/foodflow/foodflow/internal/integration"
	jobmetrics "github.com/foodflow/foodflow/internal/jobs"
	"github.com/foodflow/foodflow/internal/sim"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSimTick runs one simulator tick.
	TaskSimTick = "sim:tick"
	// TaskIntegrationCycle runs one detect-decide-publish cycle.
	TaskIntegrationCycle = "integration:cycle"
)

// TickPayload parameterizes a simulator tick. A zero At means "now".
type TickPayload struct {
	At time.Time `json:"at,omitempty"`
}

// NewSimTickTask constructs an Asynq task for one simulator tick.
func NewSimTickTask(payload TickPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSimTick, data), nil
}

// NewIntegrationCycleTask constructs an Asynq task for one sync cycle.
func NewIntegrationCycleTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskIntegrationCycle, nil), nil
}

// SimTickJob executes simulator ticks delivered over the queue.
type SimTickJob struct {
	Scheduler *sim.Scheduler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewSimTickJob initialises the simulator tick handler.
func NewSimTickJob(scheduler *sim.Scheduler, logger *slog.Logger, metrics *jobmetrics.Metrics) *SimTickJob {
	return &SimTickJob{
		Scheduler: scheduler,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one tick.
func (j *SimTickJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskSimTick)
	var payload TickPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.Logger.Warn("sim tick payload malformed", slog.Any("error", err))
			return tracker.End(asynq.SkipRetry)
		}
	}
	at := payload.At
	if at.IsZero() {
		at = j.clock()
	}
	emitted, err := j.Scheduler.Tick(ctx, at)
	if err != nil {
		return tracker.End(err)
	}
	j.Logger.Info("sim tick processed", slog.Int("events", len(emitted)))
	return tracker.End(nil)
}

// IntegrationCycleJob executes sync cycles delivered over the queue.
type IntegrationCycleJob struct {
	Scheduler *integration.Scheduler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewIntegrationCycleJob initialises the sync cycle handler.
func NewIntegrationCycleJob(scheduler *integration.Scheduler, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrationCycleJob {
	return &IntegrationCycleJob{
		Scheduler: scheduler,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one cycle.
func (j *IntegrationCycleJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskIntegrationCycle)
	if err := j.Scheduler.RunCycle(ctx, j.clock()); err != nil {
		return tracker.End(err)
	}
	return tracker.End(nil)
}
