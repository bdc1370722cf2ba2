// Package sim contains the deterministic inventory-mutating jobs and the
// scheduler that runs them on a cadence.
package sim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// Job names double as event sources and scheduler state keys.
const (
	JobNameReceiving   = "receiving"
	JobNameReturns     = "returns"
	JobNameSellDown    = "sell_down"
	JobNameShrink      = "shrink"
	JobNameDailyExpiry = "daily_expiry"
)

// JobContext carries the working state for one job run. Mutations go through
// Apply so the scheduler can replay them against the repository after the job
// succeeds.
type JobContext struct {
	Now       time.Time
	RNG       *rand.Rand
	Snapshot  *inventory.Snapshot
	mutations []inventory.Movement
}

// Apply adjusts the working snapshot and records the movement for commit.
func (c *JobContext) Apply(product, lot string, loc inventory.Location, delta float64) (inventory.Movement, error) {
	movement, err := c.Snapshot.Apply(product, lot, loc, delta)
	if err != nil {
		return inventory.Movement{}, err
	}
	c.mutations = append(c.mutations, movement)
	return movement, nil
}

// Mutations returns the movements applied so far.
func (c *JobContext) Mutations() []inventory.Movement {
	return c.mutations
}

// Job is a deterministic state transition over an inventory snapshot. Given
// the same snapshot, RNG state and now, a job produces the same mutations and
// events. Jobs never guard against double application themselves; the
// scheduler enforces the per-job interval.
type Job interface {
	Name() string
	Run(ctx context.Context, jc *JobContext) ([]events.Event, error)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
