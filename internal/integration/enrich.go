package integration

import (
	"sort"

	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/policy"
)

// Enrich fills each decision with descriptive metadata from the snapshot:
// product name, category, the locations currently holding stock, and the
// on-hand quantity. Quarantined stock never counts toward qty or stores.
func Enrich(snapshot *inventory.Snapshot, decisions []policy.Decision) []policy.Decision {
	type meta struct {
		name     string
		category string
		qty      float64
		stores   map[string]struct{}
	}
	byProduct := make(map[string]*meta)
	for _, lot := range snapshot.Lots() {
		m, ok := byProduct[lot.Product]
		if !ok {
			m = &meta{name: lot.Name, category: lot.Category, stores: make(map[string]struct{})}
			byProduct[lot.Product] = m
		}
		for loc, qty := range lot.Quantities {
			if loc == inventory.LocationQuarantine || qty <= 0 {
				continue
			}
			m.qty += qty
			m.stores[string(loc)] = struct{}{}
		}
	}

	enriched := make([]policy.Decision, len(decisions))
	for i, decision := range decisions {
		m, ok := byProduct[decision.DefaultCode]
		if !ok {
			enriched[i] = decision
			continue
		}
		decision.ProductName = m.name
		decision.Category = m.category
		decision.Qty = m.qty
		decision.Stores = make([]string, 0, len(m.stores))
		for store := range m.stores {
			decision.Stores = append(decision.Stores, store)
		}
		sort.Strings(decision.Stores)
		enriched[i] = decision
	}
	return enriched
}
