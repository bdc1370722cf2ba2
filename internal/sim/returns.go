package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// ReturnsJob adds back a fraction of recent sales to the sales floor, bounded
// by the configured floor capacity. Excess is dropped, not queued.
type ReturnsJob struct {
	config ReturnsConfig
	sales  events.SalesSource
}

// NewReturnsJob constructs ReturnsJob.
func NewReturnsJob(config ReturnsConfig, sales events.SalesSource) *ReturnsJob {
	return &ReturnsJob{config: config, sales: sales}
}

// Name identifies the job.
func (j *ReturnsJob) Name() string { return JobNameReturns }

// Run distributes returned units across a product's lots, earliest lot first.
func (j *ReturnsJob) Run(ctx context.Context, jc *JobContext) ([]events.Event, error) {
	if j.config.Fraction <= 0 {
		return nil, nil
	}
	sold, err := j.sales.UnitsSold(ctx, jc.Now.Add(-j.config.Window.Std()))
	if err != nil {
		return nil, fmt.Errorf("sim: returns sales lookup: %w", err)
	}

	byProduct := make(map[string][]*inventory.Lot)
	for _, lot := range jc.Snapshot.Lots() {
		byProduct[lot.Product] = append(byProduct[lot.Product], lot)
	}
	products := make([]string, 0, len(byProduct))
	for product := range byProduct {
		products = append(products, product)
	}
	sort.Strings(products)

	var emitted []events.Event
	for _, product := range products {
		remaining := round2(sold[product] * j.config.Fraction)
		if remaining <= 0 {
			continue
		}
		for _, lot := range byProduct[product] {
			if remaining <= 0 {
				break
			}
			floor := lot.Qty(inventory.LocationSalesFloor)
			headroom := j.config.FloorCapacity - floor
			if headroom <= 0 {
				continue
			}
			add := remaining
			if add > headroom {
				add = headroom
			}
			movement, err := jc.Apply(lot.Product, lot.Lot, inventory.LocationSalesFloor, add)
			if err != nil {
				return nil, err
			}
			remaining = round2(remaining - add)
			emitted = append(emitted, events.New(
				jc.Now, events.TypeReturns, lot.Product, lot.Lot,
				add, movement.Before, movement.After, "simulator",
			))
		}
		// Whatever did not fit under the capacity ceiling is dropped.
	}
	return emitted, nil
}
