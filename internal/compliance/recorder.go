// Package compliance records actionable decisions for donation and recall
// paperwork, including the IRS 170(e)(3) CSV export.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foodflow/foodflow/internal/platform/db"
	"github.com/foodflow/foodflow/internal/policy"
)

// Row is one recorded compliance entry.
type Row struct {
	RecordedAt   time.Time
	DefaultCode  string
	ProductName  string
	Category     string
	Outcome      string
	SuggestedQty float64
	MarkdownPct  float64
	Notes        string
}

// actionable reports whether a decision needs a paper trail. NONE outcomes
// are never recorded.
func actionable(d policy.Decision) bool {
	switch d.Outcome {
	case policy.OutcomeDonate, policy.OutcomeMarkdown, policy.OutcomeRecallQuarantine:
		return true
	}
	return false
}

func toRow(at time.Time, d policy.Decision) Row {
	row := Row{
		RecordedAt:   at,
		DefaultCode:  d.DefaultCode,
		ProductName:  d.ProductName,
		Category:     d.Category,
		Outcome:      string(d.Outcome),
		SuggestedQty: d.SuggestedQty,
		Notes:        d.Notes,
	}
	if d.MarkdownPct != nil {
		row.MarkdownPct = *d.MarkdownPct
	}
	return row
}

// Recorder persists compliance rows in PostgreSQL.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecorder constructs Recorder.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

// Record inserts one row per actionable decision inside one transaction.
func (r *Recorder) Record(ctx context.Context, at time.Time, decisions []policy.Decision) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, decision := range decisions {
			if !actionable(decision) {
				continue
			}
			row := toRow(at, decision)
			_, err := tx.Exec(ctx, `
				INSERT INTO compliance_events
					(recorded_at, default_code, product_name, category, outcome, suggested_qty, markdown_pct, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				row.RecordedAt, row.DefaultCode, row.ProductName, row.Category,
				row.Outcome, row.SuggestedQty, row.MarkdownPct, row.Notes,
			)
			if err != nil {
				return fmt.Errorf("compliance: insert %s: %w", row.DefaultCode, err)
			}
		}
		return nil
	})
}

// Rows returns recorded entries in a window, newest first.
func (r *Recorder) Rows(ctx context.Context, from, to time.Time) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT recorded_at, default_code, product_name, category, outcome, suggested_qty, markdown_pct, notes
		FROM compliance_events
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at DESC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("compliance: query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.RecordedAt, &row.DefaultCode, &row.ProductName, &row.Category,
			&row.Outcome, &row.SuggestedQty, &row.MarkdownPct, &row.Notes,
		); err != nil {
			return nil, fmt.Errorf("compliance: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: rows: %w", err)
	}
	return out, nil
}
