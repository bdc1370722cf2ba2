package sim

import (
	"context"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// ShrinkJob applies random spoilage loss per lot, bounded by the category
// shrink rate. Zero loss is a valid, silent outcome.
type ShrinkJob struct {
	config RateConfig
}

// NewShrinkJob constructs ShrinkJob.
func NewShrinkJob(config RateConfig) *ShrinkJob {
	return &ShrinkJob{config: config}
}

// Name identifies the job.
func (j *ShrinkJob) Name() string { return JobNameShrink }

// Run drains loss from the sales floor first, then the backroom. Loss is
// capped at the current on-hand quantity.
func (j *ShrinkJob) Run(ctx context.Context, jc *JobContext) ([]events.Event, error) {
	var emitted []events.Event
	for _, lot := range jc.Snapshot.Lots() {
		rate := j.config.RateFor(lot.Category)
		onHand := lot.SellableQty()
		if rate <= 0 || onHand <= 0 {
			continue
		}
		loss := round2(onHand * rate * jc.RNG.Float64())
		if loss > onHand {
			loss = onHand
		}
		if loss <= 0 {
			continue
		}
		before := onHand
		remaining := loss
		for _, loc := range []inventory.Location{inventory.LocationSalesFloor, inventory.LocationBackroom} {
			if remaining <= 0 {
				break
			}
			held := lot.Qty(loc)
			if held <= 0 {
				continue
			}
			drain := remaining
			if drain > held {
				drain = held
			}
			if _, err := jc.Apply(lot.Product, lot.Lot, loc, -drain); err != nil {
				return nil, err
			}
			remaining = round2(remaining - drain)
		}
		emitted = append(emitted, events.New(
			jc.Now, events.TypeShrink, lot.Product, lot.Lot,
			loss, before, lot.SellableQty(), "simulator",
		))
	}
	return emitted, nil
}
