package inventory

import (
	"fmt"
	"sort"
)

// Snapshot is an in-memory view of lot inventory. Lots are keyed by
// (product, lot); iteration order is deterministic.
type Snapshot struct {
	index map[string]*Lot
}

func lotKey(product, lot string) string {
	return product + "\x00" + lot
}

// NewSnapshot builds a snapshot from lots, validating that no quantity is
// negative.
func NewSnapshot(lots []Lot) (*Snapshot, error) {
	s := &Snapshot{index: make(map[string]*Lot, len(lots))}
	for i := range lots {
		lot := lots[i]
		if lot.Product == "" {
			return nil, fmt.Errorf("%w: missing product code", ErrInvalidLot)
		}
		for loc, qty := range lot.Quantities {
			if qty < 0 {
				return nil, fmt.Errorf("%w: %s/%s %s=%.2f", ErrInvalidLot, lot.Product, lot.Lot, loc, qty)
			}
		}
		if lot.Quantities == nil {
			lot.Quantities = make(map[Location]float64)
		}
		s.index[lotKey(lot.Product, lot.Lot)] = &lot
	}
	return s, nil
}

// Get returns the lot for a (product, lot) pair.
func (s *Snapshot) Get(product, lot string) (*Lot, bool) {
	record, ok := s.index[lotKey(product, lot)]
	return record, ok
}

// Lots returns all lots sorted by product code then lot code.
func (s *Snapshot) Lots() []*Lot {
	result := make([]*Lot, 0, len(s.index))
	for _, lot := range s.index {
		result = append(result, lot)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Product != result[j].Product {
			return result[i].Product < result[j].Product
		}
		return result[i].Lot < result[j].Lot
	})
	return result
}

// Len returns the number of lots.
func (s *Snapshot) Len() int {
	return len(s.index)
}

// Apply adjusts one location quantity and returns the movement. The delta is
// rejected when it would drive the location quantity negative.
func (s *Snapshot) Apply(product, lot string, loc Location, delta float64) (Movement, error) {
	record, ok := s.Get(product, lot)
	if !ok {
		return Movement{}, fmt.Errorf("%w: %s/%s", ErrLotNotFound, product, lot)
	}
	before := record.Qty(loc)
	after := before + delta
	if after < -1e-9 {
		return Movement{}, fmt.Errorf("%w: %s/%s %s %.2f%+.2f", ErrNegativeQuantity, product, lot, loc, before, delta)
	}
	if after < 0 {
		after = 0
	}
	record.Quantities[loc] = after
	return Movement{Product: product, Lot: lot, Location: loc, Delta: delta, Before: before, After: after}, nil
}

// Clone returns a deep copy. Schedulers clone before running a job so a failed
// job's mutations can be discarded.
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{index: make(map[string]*Lot, len(s.index))}
	for key, lot := range s.index {
		copied := *lot
		copied.Quantities = make(map[Location]float64, len(lot.Quantities))
		for loc, qty := range lot.Quantities {
			copied.Quantities[loc] = qty
		}
		if lot.Expiry != nil {
			expiry := *lot.Expiry
			copied.Expiry = &expiry
		}
		clone.index[key] = &copied
	}
	return clone
}

// ProductTotal aggregates a product's lots for detection.
type ProductTotal struct {
	Product  string
	Name     string
	Category string
	Qty      float64
	Lots     []string
}

// ProductTotals groups sellable quantity per product, sorted by product code.
func (s *Snapshot) ProductTotals() []ProductTotal {
	byProduct := make(map[string]*ProductTotal)
	for _, lot := range s.Lots() {
		total, ok := byProduct[lot.Product]
		if !ok {
			total = &ProductTotal{Product: lot.Product, Name: lot.Name, Category: lot.Category}
			byProduct[lot.Product] = total
		}
		total.Qty += lot.SellableQty()
		if lot.Lot != "" {
			total.Lots = append(total.Lots, lot.Lot)
		}
	}
	result := make([]ProductTotal, 0, len(byProduct))
	for _, total := range byProduct {
		sort.Strings(total.Lots)
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Product < result[j].Product })
	return result
}
