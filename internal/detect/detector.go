package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
)

// Reason classifies why a product was flagged.
type Reason string

const (
	ReasonNearExpiry  Reason = "near_expiry"
	ReasonLowMovement Reason = "low_movement"
	ReasonOverstock   Reason = "overstock"
)

// Rank gives reasons a stable ordering for deterministic tie-breaks
// downstream.
func (r Reason) Rank() int {
	switch r {
	case ReasonNearExpiry:
		return 0
	case ReasonLowMovement:
		return 1
	case ReasonOverstock:
		return 2
	}
	return 3
}

// Metrics carries the figures supporting a flag. DaysOfSupply is +Inf when
// the product had no sales in the window.
type Metrics struct {
	Qty               float64
	UnitsSoldInWindow float64
	AvgDailySales     float64
	DaysOfSupply      float64
	ExpiryDate        *time.Time
}

// Flag marks one product with one reason. A product may carry several flags
// in a cycle, one per satisfied condition.
type Flag struct {
	Product  string
	Name     string
	Category string
	Reason   Reason
	Metrics  Metrics
}

const epsilon = 1e-9

// Detector derives ShrinkFlags from a snapshot plus trailing sales.
type Detector struct {
	sales  events.SalesSource
	sink   events.Sink
	config Config
	logger *slog.Logger
}

// NewDetector constructs Detector. The sink is optional; when set, flag
// mirror events are appended for low-movement and overstock findings.
func NewDetector(config Config, sales events.SalesSource, sink events.Sink, logger *slog.Logger) *Detector {
	return &Detector{sales: sales, sink: sink, config: config, logger: logger}
}

// Detect evaluates every product in the snapshot against the thresholds and
// returns flags ordered by product, then by reason.
func (d *Detector) Detect(ctx context.Context, snapshot *inventory.Snapshot, now time.Time) ([]Flag, error) {
	sold, err := d.sales.UnitsSold(ctx, now.Add(-d.config.Window.Std()))
	if err != nil {
		return nil, fmt.Errorf("detect: sales lookup: %w", err)
	}
	windowDays := d.config.Window.Std().Hours() / 24

	var flags []Flag
	for _, total := range snapshot.ProductTotals() {
		threshold := d.config.ThresholdFor(total.Category)
		units := sold[total.Product]
		avgDaily := units / windowDays
		supply := math.Inf(1)
		if avgDaily > epsilon {
			supply = total.Qty / avgDaily
		}
		metrics := Metrics{
			Qty:               total.Qty,
			UnitsSoldInWindow: units,
			AvgDailySales:     avgDaily,
			DaysOfSupply:      supply,
			ExpiryDate:        earliestExpiry(snapshot, total.Product),
		}

		if metrics.ExpiryDate != nil && total.Qty > 0 {
			limit := now.Add(time.Duration(threshold.ExpiryDays) * 24 * time.Hour)
			if !metrics.ExpiryDate.After(limit) {
				flags = append(flags, d.flag(total, ReasonNearExpiry, metrics))
			}
		}
		if units < threshold.MinUnits {
			flags = append(flags, d.flag(total, ReasonLowMovement, metrics))
		}
		if supply > threshold.MaxDaysOfSupply {
			flags = append(flags, d.flag(total, ReasonOverstock, metrics))
		}
	}
	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Product != flags[j].Product {
			return flags[i].Product < flags[j].Product
		}
		return flags[i].Reason.Rank() < flags[j].Reason.Rank()
	})

	if err := d.mirror(ctx, now, flags); err != nil {
		// Mirror events are advisory; the flags themselves stand.
		d.logger.Warn("flag mirror append failed", slog.Any("error", err))
	}
	return flags, nil
}

func (d *Detector) flag(total inventory.ProductTotal, reason Reason, metrics Metrics) Flag {
	d.logger.Info("shrink flag raised",
		slog.String("product", total.Product),
		slog.String("reason", string(reason)),
		slog.Float64("qty", metrics.Qty),
		slog.Float64("units_sold", metrics.UnitsSoldInWindow),
	)
	return Flag{
		Product:  total.Product,
		Name:     total.Name,
		Category: total.Category,
		Reason:   reason,
		Metrics:  metrics,
	}
}

// mirror appends flag events for the reasons that have event types.
func (d *Detector) mirror(ctx context.Context, now time.Time, flags []Flag) error {
	if d.sink == nil {
		return nil
	}
	var mirrored []events.Event
	for _, f := range flags {
		var typ events.Type
		switch f.Reason {
		case ReasonLowMovement:
			typ = events.TypeFlagLowMovement
		case ReasonOverstock:
			typ = events.TypeFlagOverstock
		default:
			continue
		}
		mirrored = append(mirrored, events.New(
			now, typ, f.Product, "",
			f.Metrics.Qty, f.Metrics.Qty, f.Metrics.Qty, "detector",
		))
	}
	if len(mirrored) == 0 {
		return nil
	}
	return d.sink.Append(ctx, mirrored...)
}

// earliestExpiry returns the soonest expiry among the product's lots that
// still hold sellable stock.
func earliestExpiry(snapshot *inventory.Snapshot, product string) *time.Time {
	var earliest *time.Time
	for _, lot := range snapshot.Lots() {
		if lot.Product != product || lot.Expiry == nil || lot.SellableQty() <= 0 {
			continue
		}
		if earliest == nil || lot.Expiry.Before(*earliest) {
			earliest = lot.Expiry
		}
	}
	return earliest
}
