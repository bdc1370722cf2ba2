package sim

import (
	"context"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// ReceivingJob replenishes the backroom up to the configured par level.
type ReceivingJob struct {
	config ParConfig
}

// NewReceivingJob constructs ReceivingJob.
func NewReceivingJob(config ParConfig) *ReceivingJob {
	return &ReceivingJob{config: config}
}

// Name identifies the job.
func (j *ReceivingJob) Name() string { return JobNameReceiving }

// Run tops up each lot's backroom. Lots already at or above par and expired
// lots are skipped without an event.
func (j *ReceivingJob) Run(ctx context.Context, jc *JobContext) ([]events.Event, error) {
	var emitted []events.Event
	for _, lot := range jc.Snapshot.Lots() {
		if lot.Expired(jc.Now) {
			continue
		}
		par := j.config.ParFor(lot.Category)
		backroom := lot.Qty(inventory.LocationBackroom)
		if par <= 0 || backroom >= par {
			continue
		}
		add := round2(par - backroom)
		movement, err := jc.Apply(lot.Product, lot.Lot, inventory.LocationBackroom, add)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, events.New(
			jc.Now, events.TypeReceiving, lot.Product, lot.Lot,
			add, movement.Before, movement.After, "simulator",
		))
	}
	return emitted, nil
}
