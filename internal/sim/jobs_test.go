package sim

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/shared"
)

// halfSource pins rand.Float64 to 0.5 so job draws are predictable.
type halfSource struct{}

func (halfSource) Int63() int64 { return 1 << 62 }
func (halfSource) Seed(int64)   {}

type fixedSales struct {
	sold map[string]float64
	err  error
}

func (s *fixedSales) UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error) {
	return s.sold, s.err
}

func simLots() []inventory.Lot {
	expiry := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return []inventory.Lot{
		{
			Product:  "FF101",
			Name:     "Organic Strawberries",
			Category: "Produce",
			Lot:      "LOT-A",
			Expiry:   &expiry,
			Quantities: map[inventory.Location]float64{
				inventory.LocationBackroom:   80,
				inventory.LocationSalesFloor: 20,
			},
		},
		{
			Product:  "FF102",
			Name:     "Whole Milk",
			Category: "Dairy",
			Lot:      "LOT-B",
			Quantities: map[inventory.Location]float64{
				inventory.LocationBackroom:   10,
				inventory.LocationSalesFloor: 5,
				inventory.LocationQuarantine: 3,
			},
		},
	}
}

func newJobContext(t *testing.T, now time.Time) *JobContext {
	t.Helper()
	snapshot, err := inventory.NewSnapshot(simLots())
	require.NoError(t, err)
	return &JobContext{Now: now, RNG: rand.New(halfSource{}), Snapshot: snapshot}
}

func TestSellDownDrawsAgainstSalesFloor(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	// With the RNG pinned to 0.5 the draw is exactly the velocity.
	job := NewSellDownJob(RateConfig{Default: 10})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Len(t, emitted, 2)

	first := emitted[0]
	require.Equal(t, "sell_down", string(first.Type))
	require.Equal(t, "FF101", first.Product)
	require.InDelta(t, 10.0, first.Qty, 0.0001)
	require.InDelta(t, 20.0, first.Before, 0.0001)
	require.InDelta(t, 10.0, first.After, 0.0001)

	// FF102 has only 5 on the floor, so the draw clamps.
	second := emitted[1]
	require.Equal(t, "FF102", second.Product)
	require.InDelta(t, 5.0, second.Qty, 0.0001)
	require.InDelta(t, 0.0, second.After, 0.0001)
}

func TestSellDownSkipsEmptyFloor(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)
	_, err := jc.Apply("FF102", "LOT-B", inventory.LocationSalesFloor, -5)
	require.NoError(t, err)
	jc.mutations = nil

	job := NewSellDownJob(RateConfig{Default: 10})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	require.Equal(t, "FF101", emitted[0].Product)
}

func TestReturnsRespectFloorCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	sales := &fixedSales{sold: map[string]float64{"FF101": 200}}
	job := NewReturnsJob(ReturnsConfig{Fraction: 0.10, Window: shared.Duration(24 * time.Hour), FloorCapacity: 25}, sales)
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Len(t, emitted, 1)

	// 20 units returned, but only 5 fit under the 25-unit ceiling.
	require.InDelta(t, 5.0, emitted[0].Qty, 0.0001)
	require.InDelta(t, 25.0, emitted[0].After, 0.0001)

	lot, ok := jc.Snapshot.Get("FF101", "LOT-A")
	require.True(t, ok)
	require.InDelta(t, 25.0, lot.Qty(inventory.LocationSalesFloor), 0.0001)
}

func TestReturnsNoSalesNoEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	job := NewReturnsJob(ReturnsConfig{Fraction: 0.10, Window: shared.Duration(24 * time.Hour), FloorCapacity: 60}, &fixedSales{})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Empty(t, emitted)
	require.Empty(t, jc.Mutations())
}

func TestShrinkZeroRateIsSilent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	job := NewShrinkJob(RateConfig{Default: 0})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Empty(t, emitted)
}

func TestShrinkNeverGoesNegative(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	job := NewShrinkJob(RateConfig{Default: 0.5})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	for _, ev := range emitted {
		require.GreaterOrEqual(t, ev.After, 0.0)
		require.InDelta(t, ev.Before-ev.Qty, ev.After, 0.01)
	}
	for _, lot := range jc.Snapshot.Lots() {
		for _, loc := range []inventory.Location{inventory.LocationBackroom, inventory.LocationSalesFloor} {
			require.GreaterOrEqual(t, lot.Qty(loc), 0.0)
		}
	}
}

func TestDailyExpiryIsIdempotent(t *testing.T) {
	// Past the FF101 expiry date.
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	job := NewDailyExpiryJob()
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	require.Equal(t, "FF101", emitted[0].Product)
	require.InDelta(t, 100.0, emitted[0].Qty, 0.0001)
	require.InDelta(t, 0.0, emitted[0].After, 0.0001)

	again, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestDailyExpiryLeavesQuarantine(t *testing.T) {
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	snapshot, err := inventory.NewSnapshot(simLots())
	require.NoError(t, err)
	expired := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lot, _ := snapshot.Get("FF102", "LOT-B")
	lot.Expiry = &expired
	jc := &JobContext{Now: now, RNG: rand.New(halfSource{}), Snapshot: snapshot}

	_, err = NewDailyExpiryJob().Run(context.Background(), jc)
	require.NoError(t, err)

	milk, _ := snapshot.Get("FF102", "LOT-B")
	require.InDelta(t, 0.0, milk.SellableQty(), 0.0001)
	require.InDelta(t, 3.0, milk.Qty(inventory.LocationQuarantine), 0.0001)
}

func TestReceivingTopsUpToPar(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)

	job := NewReceivingJob(ParConfig{Default: 50})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)

	// FF101 backroom sits at 80, already above par: no event.
	require.Len(t, emitted, 1)
	require.Equal(t, "FF102", emitted[0].Product)
	require.InDelta(t, 40.0, emitted[0].Qty, 0.0001)
	require.InDelta(t, 50.0, emitted[0].After, 0.0001)
}

func TestReceivingSkipsExpiredLots(t *testing.T) {
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	jc := newJobContext(t, now)
	_, err := jc.Apply("FF101", "LOT-A", inventory.LocationBackroom, -80)
	require.NoError(t, err)
	jc.mutations = nil

	job := NewReceivingJob(ParConfig{Default: 50})
	emitted, err := job.Run(context.Background(), jc)
	require.NoError(t, err)
	for _, ev := range emitted {
		require.NotEqual(t, "FF101", ev.Product)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Intervals.SellDown = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Returns.Fraction = 1.5
	require.Error(t, cfg.Validate())
}
