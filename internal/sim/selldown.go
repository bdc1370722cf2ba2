package sim

import (
	"context"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// SellDownJob draws a sale quantity per lot from the category velocity
// profile and decrements the sales floor.
type SellDownJob struct {
	config RateConfig
}

// NewSellDownJob constructs SellDownJob. The rate config is the velocity
// profile: expected units sold per lot per run.
func NewSellDownJob(config RateConfig) *SellDownJob {
	return &SellDownJob{config: config}
}

// Name identifies the job.
func (j *SellDownJob) Name() string { return JobNameSellDown }

// Run decrements the sales floor per lot, clamped to the available floor
// quantity.
func (j *SellDownJob) Run(ctx context.Context, jc *JobContext) ([]events.Event, error) {
	var emitted []events.Event
	for _, lot := range jc.Snapshot.Lots() {
		velocity := j.config.RateFor(lot.Category)
		floor := lot.Qty(inventory.LocationSalesFloor)
		if velocity <= 0 || floor <= 0 {
			continue
		}
		// Draw between 50% and 150% of the velocity, then clamp to floor.
		draw := round2(velocity * (0.5 + jc.RNG.Float64()))
		if draw > floor {
			draw = floor
		}
		if draw <= 0 {
			continue
		}
		movement, err := jc.Apply(lot.Product, lot.Lot, inventory.LocationSalesFloor, -draw)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, events.New(
			jc.Now, events.TypeSellDown, lot.Product, lot.Lot,
			draw, movement.Before, movement.After, "simulator",
		))
	}
	return emitted, nil
}
