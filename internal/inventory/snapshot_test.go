package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLots() []Lot {
	expiry := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return []Lot{
		{
			Product:  "FF101",
			Name:     "Organic Strawberries",
			Category: "Produce",
			Lot:      "LOT-A",
			Expiry:   &expiry,
			Quantities: map[Location]float64{
				LocationBackroom:   80,
				LocationSalesFloor: 20,
			},
		},
		{
			Product:  "FF102",
			Name:     "Whole Milk",
			Category: "Dairy",
			Lot:      "LOT-B",
			Quantities: map[Location]float64{
				LocationBackroom:   10,
				LocationSalesFloor: 5,
				LocationQuarantine: 3,
			},
		},
	}
}

func TestSnapshotInvariants(t *testing.T) {
	snapshot, err := NewSnapshot(testLots())
	require.NoError(t, err)

	lot, ok := snapshot.Get("FF101", "LOT-A")
	require.True(t, ok)
	require.InDelta(t, 100.0, lot.QtyOnHand(), 0.0001)
	require.InDelta(t, lot.Qty(LocationBackroom)+lot.Qty(LocationSalesFloor), lot.QtyOnHand(), 0.0001)

	milk, ok := snapshot.Get("FF102", "LOT-B")
	require.True(t, ok)
	require.InDelta(t, 18.0, milk.QtyOnHand(), 0.0001)
	require.InDelta(t, 15.0, milk.SellableQty(), 0.0001)
}

func TestSnapshotRejectsNegativeSeed(t *testing.T) {
	_, err := NewSnapshot([]Lot{{
		Product:    "FF101",
		Lot:        "LOT-A",
		Quantities: map[Location]float64{LocationBackroom: -1},
	}})
	require.ErrorIs(t, err, ErrInvalidLot)
}

func TestSnapshotApply(t *testing.T) {
	snapshot, err := NewSnapshot(testLots())
	require.NoError(t, err)

	movement, err := snapshot.Apply("FF101", "LOT-A", LocationSalesFloor, -10)
	require.NoError(t, err)
	require.InDelta(t, 20.0, movement.Before, 0.0001)
	require.InDelta(t, 10.0, movement.After, 0.0001)

	lot, _ := snapshot.Get("FF101", "LOT-A")
	require.InDelta(t, 90.0, lot.QtyOnHand(), 0.0001)

	_, err = snapshot.Apply("FF101", "LOT-A", LocationSalesFloor, -50)
	require.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = snapshot.Apply("FF999", "LOT-X", LocationSalesFloor, 1)
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestSnapshotCloneIsolation(t *testing.T) {
	snapshot, err := NewSnapshot(testLots())
	require.NoError(t, err)

	clone := snapshot.Clone()
	_, err = clone.Apply("FF101", "LOT-A", LocationSalesFloor, -20)
	require.NoError(t, err)

	original, _ := snapshot.Get("FF101", "LOT-A")
	require.InDelta(t, 20.0, original.Qty(LocationSalesFloor), 0.0001)
}

func TestProductTotalsExcludeQuarantine(t *testing.T) {
	snapshot, err := NewSnapshot(testLots())
	require.NoError(t, err)

	totals := snapshot.ProductTotals()
	require.Len(t, totals, 2)
	require.Equal(t, "FF101", totals[0].Product)
	require.InDelta(t, 100.0, totals[0].Qty, 0.0001)
	require.Equal(t, "FF102", totals[1].Product)
	require.InDelta(t, 15.0, totals[1].Qty, 0.0001)
	require.Equal(t, []string{"LOT-B"}, totals[1].Lots)
}
