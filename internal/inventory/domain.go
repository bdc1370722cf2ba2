package inventory

import (
	"errors"
	"time"
)

// Location identifies where a lot's stock is held.
type Location string

const (
	// LocationBackroom holds replenishment stock not yet on display.
	LocationBackroom Location = "backroom"
	// LocationSalesFloor holds sellable stock on display.
	LocationSalesFloor Location = "sales_floor"
	// LocationQuarantine holds recalled or unsellable stock, excluded from
	// sellable totals.
	LocationQuarantine Location = "quarantine"
)

// Lot is a traceable batch of a product with its own expiry and per-location
// quantities. Quantity on hand is always the sum of location quantities.
type Lot struct {
	Product    string
	Name       string
	Category   string
	Lot        string
	Expiry     *time.Time
	Quantities map[Location]float64
}

// Qty returns the quantity held at one location.
func (l *Lot) Qty(loc Location) float64 {
	if l.Quantities == nil {
		return 0
	}
	return l.Quantities[loc]
}

// QtyOnHand returns the total quantity across all locations.
func (l *Lot) QtyOnHand() float64 {
	var total float64
	for _, qty := range l.Quantities {
		total += qty
	}
	return total
}

// SellableQty returns on-hand quantity excluding quarantine locations.
func (l *Lot) SellableQty() float64 {
	var total float64
	for loc, qty := range l.Quantities {
		if loc == LocationQuarantine {
			continue
		}
		total += qty
	}
	return total
}

// Expired reports whether the lot's expiry date has passed the given time.
func (l *Lot) Expired(now time.Time) bool {
	return l.Expiry != nil && l.Expiry.Before(truncateDay(now))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Movement describes one applied quantity delta.
type Movement struct {
	Product  string
	Lot      string
	Location Location
	Delta    float64
	Before   float64
	After    float64
}

// ErrLotNotFound indicates an unknown (product, lot) pair.
var ErrLotNotFound = errors.New("inventory: lot not found")

// ErrNegativeQuantity triggered when a delta would drive quantity negative.
var ErrNegativeQuantity = errors.New("inventory: negative quantity not allowed")

// ErrInvalidLot indicates a lot that violates snapshot invariants.
var ErrInvalidLot = errors.New("inventory: invalid lot")
