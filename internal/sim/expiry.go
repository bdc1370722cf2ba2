package sim

import (
	"context"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// DailyExpiryJob zeroes sellable quantity for lots whose expiry date has
// passed. Deterministic given now and idempotent: re-running over an already
// zeroed lot emits nothing.
type DailyExpiryJob struct{}

// NewDailyExpiryJob constructs DailyExpiryJob.
func NewDailyExpiryJob() *DailyExpiryJob {
	return &DailyExpiryJob{}
}

// Name identifies the job.
func (j *DailyExpiryJob) Name() string { return JobNameDailyExpiry }

// Run zeroes backroom and sales floor for expired lots. Quarantined stock is
// left in place for compliance tracking.
func (j *DailyExpiryJob) Run(ctx context.Context, jc *JobContext) ([]events.Event, error) {
	var emitted []events.Event
	for _, lot := range jc.Snapshot.Lots() {
		if !lot.Expired(jc.Now) {
			continue
		}
		before := lot.SellableQty()
		if before <= 0 {
			continue
		}
		for _, loc := range []inventory.Location{inventory.LocationBackroom, inventory.LocationSalesFloor} {
			held := lot.Qty(loc)
			if held <= 0 {
				continue
			}
			if _, err := jc.Apply(lot.Product, lot.Lot, loc, -held); err != nil {
				return nil, err
			}
		}
		emitted = append(emitted, events.New(
			jc.Now, events.TypeDailyExpiry, lot.Product, lot.Lot,
			before, before, 0, "simulator",
		))
	}
	return emitted, nil
}
