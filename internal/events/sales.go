package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SalesSource reports units sold per product since a point in time.
type SalesSource interface {
	UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error)
}

// SinkSales aggregates sell_down events from a sink into per-product totals.
type SinkSales struct {
	sink Sink
}

// NewSinkSales constructs SinkSales.
func NewSinkSales(sink Sink) *SinkSales {
	return &SinkSales{sink: sink}
}

// UnitsSold sums sell_down quantities per product since the given time.
func (s *SinkSales) UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error) {
	evts, err := s.sink.Query(ctx, Filter{Types: []Type{TypeSellDown}, Since: since})
	if err != nil {
		return nil, fmt.Errorf("events: sales query: %w", err)
	}
	totals := make(map[string]float64, len(evts))
	for _, evt := range evts {
		totals[evt.Product] += evt.Qty
	}
	return totals, nil
}

// TableSales reads units sold from a relational sales history table. Used as a
// fallback when the event sink has no history for the window.
type TableSales struct {
	pool *pgxpool.Pool
}

// NewTableSales constructs TableSales.
func NewTableSales(pool *pgxpool.Pool) *TableSales {
	return &TableSales{pool: pool}
}

// UnitsSold sums sales rows per product since the given time.
func (s *TableSales) UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT product_code, SUM(units)::double precision
FROM sales_history WHERE sold_at >= $1 GROUP BY product_code`, since)
	if err != nil {
		return nil, fmt.Errorf("events: sales history query: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var product string
		var units float64
		if err := rows.Scan(&product, &units); err != nil {
			return nil, fmt.Errorf("events: sales history scan: %w", err)
		}
		totals[product] = units
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: sales history rows: %w", err)
	}
	return totals, nil
}

// FallbackSales prefers the primary source and falls back to the secondary
// when the primary has no history at all for the window.
type FallbackSales struct {
	Primary   SalesSource
	Secondary SalesSource
}

// UnitsSold queries the primary source first.
func (s FallbackSales) UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error) {
	totals, err := s.Primary.UnitsSold(ctx, since)
	if err == nil && len(totals) > 0 {
		return totals, nil
	}
	if s.Secondary == nil {
		return totals, err
	}
	return s.Secondary.UnitsSold(ctx, since)
}
