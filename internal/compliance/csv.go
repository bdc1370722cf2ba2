package compliance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/foodflow/foodflow/internal/policy"
)

// csvHeader follows the enhanced-deduction worksheet layout used for
// IRS 170(e)(3) donation filings.
var csvHeader = []string{
	"recorded_at",
	"default_code",
	"product_name",
	"category",
	"outcome",
	"suggested_qty",
	"markdown_pct",
	"notes",
}

// RenderCSV serializes rows into the filing CSV.
func RenderCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("compliance: csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.RecordedAt.UTC().Format(time.RFC3339),
			row.DefaultCode,
			row.ProductName,
			row.Category,
			row.Outcome,
			strconv.FormatFloat(row.SuggestedQty, 'f', 2, 64),
			strconv.FormatFloat(row.MarkdownPct, 'f', 2, 64),
			row.Notes,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("compliance: csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("compliance: csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// FileRecorder appends actionable decisions to a CSV file. It backs offline
// simulation runs where no database is configured.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// NewFileRecorder constructs FileRecorder.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

// Record appends one CSV line per actionable decision, writing the header on
// first use.
func (r *FileRecorder) Record(ctx context.Context, at time.Time, decisions []policy.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("compliance: create csv dir: %w", err)
	}

	_, statErr := os.Stat(r.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("compliance: open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("compliance: csv header: %w", err)
		}
	}
	for _, decision := range decisions {
		if !actionable(decision) {
			continue
		}
		row := toRow(at, decision)
		record := []string{
			row.RecordedAt.UTC().Format(time.RFC3339),
			row.DefaultCode,
			row.ProductName,
			row.Category,
			row.Outcome,
			strconv.FormatFloat(row.SuggestedQty, 'f', 2, 64),
			strconv.FormatFloat(row.MarkdownPct, 'f', 2, 64),
			row.Notes,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("compliance: csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("compliance: csv flush: %w", err)
	}
	return nil
}
