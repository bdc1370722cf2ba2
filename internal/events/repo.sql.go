package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink persists events in PostgreSQL. It satisfies the same append/query
// contract as FileSink so the two backends are interchangeable.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink constructs PGSink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Append inserts events inside one transaction so a batch is all-or-nothing.
func (s *PGSink) Append(ctx context.Context, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("events: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	for _, evt := range evts {
		if _, err := tx.Exec(ctx, `INSERT INTO inventory_events (id, ts, event_type, product_code, lot_code, qty, before_qty, after_qty, source)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			evt.ID, evt.TS, string(evt.Type), evt.Product, nullString(evt.Lot), evt.Qty, evt.Before, evt.After, evt.Source); err != nil {
			return fmt.Errorf("events: insert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("events: commit: %w", err)
	}
	return nil
}

// Query returns matching events ordered by timestamp.
func (s *PGSink) Query(ctx context.Context, filter Filter) ([]Event, error) {
	clauses := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Product != "" {
		clauses = append(clauses, fmt.Sprintf("product_code = $%d", idx))
		args = append(args, filter.Product)
		idx++
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("ts >= $%d", idx))
		args = append(args, filter.Since)
		idx++
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		clauses = append(clauses, fmt.Sprintf("event_type = ANY($%d)", idx))
		args = append(args, types)
		idx++
	}
	query := `SELECT id, ts, event_type, product_code, COALESCE(lot_code, ''), qty, before_qty, after_qty, source
FROM inventory_events WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY ts ASC, id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("events: query: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var evt Event
		var eventType string
		var ts time.Time
		if err := rows.Scan(&evt.ID, &ts, &eventType, &evt.Product, &evt.Lot, &evt.Qty, &evt.Before, &evt.After, &evt.Source); err != nil {
			return nil, fmt.Errorf("events: scan: %w", err)
		}
		evt.TS = ts.UTC()
		evt.Type = Type(eventType)
		result = append(result, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: rows: %w", err)
	}
	return result, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
