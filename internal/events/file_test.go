package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Append(ctx,
		New(now, TypeSellDown, "FF101", "LOT-1", 10, 20, 10, "simulator"),
		New(now.Add(time.Minute), TypeReceiving, "FF102", "LOT-2", 5, 0, 5, "simulator"),
	))

	all, err := sink.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	sells, err := sink.Query(ctx, Filter{Types: []Type{TypeSellDown}})
	require.NoError(t, err)
	require.Len(t, sells, 1)
	require.Equal(t, "FF101", sells[0].Product)
	require.InDelta(t, 20.0, sells[0].Before, 0.0001)
	require.InDelta(t, 10.0, sells[0].After, 0.0001)
}

func TestFileSinkMonotonicTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	ctx := context.Background()

	later := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)
	require.NoError(t, sink.Append(ctx, New(later, TypeShrink, "FF101", "", 1, 5, 4, "simulator")))
	require.NoError(t, sink.Append(ctx, New(earlier, TypeShrink, "FF101", "", 1, 4, 3, "simulator")))

	all, err := sink.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.False(t, all[1].TS.Before(all[0].TS))
}

func TestFileSinkQuerySince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		require.NoError(t, sink.Append(ctx, New(base.AddDate(0, 0, day), TypeSellDown, "FF101", "", 2, 10, 8, "simulator")))
	}

	recent, err := sink.Query(ctx, Filter{Since: base.AddDate(0, 0, 3)})
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestSinkSalesAggregation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Append(ctx,
		New(now, TypeSellDown, "FF101", "", 4, 20, 16, "simulator"),
		New(now.Add(time.Hour), TypeSellDown, "FF101", "", 6, 16, 10, "simulator"),
		New(now.Add(time.Hour), TypeShrink, "FF101", "", 1, 10, 9, "simulator"),
		New(now.Add(time.Hour), TypeSellDown, "FF102", "", 3, 8, 5, "simulator"),
	))

	totals, err := NewSinkSales(sink).UnitsSold(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.InDelta(t, 10.0, totals["FF101"], 0.0001)
	require.InDelta(t, 3.0, totals["FF102"], 0.0001)
}

type staticSales map[string]float64

func (s staticSales) UnitsSold(context.Context, time.Time) (map[string]float64, error) {
	return s, nil
}

func TestFallbackSalesUsesSecondaryWhenPrimaryEmpty(t *testing.T) {
	fallback := FallbackSales{
		Primary:   staticSales{},
		Secondary: staticSales{"FF101": 7},
	}
	totals, err := fallback.UnitsSold(context.Background(), time.Time{})
	require.NoError(t, err)
	require.InDelta(t, 7.0, totals["FF101"], 0.0001)

	primary := FallbackSales{
		Primary:   staticSales{"FF101": 2},
		Secondary: staticSales{"FF101": 7},
	}
	totals, err = primary.UnitsSold(context.Background(), time.Time{})
	require.NoError(t, err)
	require.InDelta(t, 2.0, totals["FF101"], 0.0001)
}
