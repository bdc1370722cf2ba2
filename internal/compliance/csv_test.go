package compliance

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foodflow/foodflow/internal/policy"
)

func testDecisions() []policy.Decision {
	pct := 40.0
	return []policy.Decision{
		{
			DefaultCode:  "FF101",
			Outcome:      policy.OutcomeMarkdown,
			SuggestedQty: 100,
			MarkdownPct:  &pct,
			Notes:        "near_expiry: approaching expiry",
			ProductName:  "Organic Strawberries",
			Category:     "Produce",
		},
		{
			DefaultCode:  "FF102",
			Outcome:      policy.OutcomeDonate,
			SuggestedQty: 10,
			Notes:        "overstock: days of supply above category ceiling",
			ProductName:  "Whole Milk",
			Category:     "Dairy",
		},
		{
			DefaultCode: "FF103",
			Outcome:     policy.OutcomeNone,
		},
	}
}

func TestRenderCSV(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var rows []Row
	for _, d := range testDecisions() {
		if actionable(d) {
			rows = append(rows, toRow(at, d))
		}
	}

	out, err := RenderCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "FF101", records[1][1])
	require.Equal(t, "MARKDOWN", records[1][4])
	require.Equal(t, "40.00", records[1][6])
	require.Equal(t, "DONATE", records[2][4])
}

func TestFileRecorderSkipsNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donations.csv")
	recorder := NewFileRecorder(path)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, recorder.Record(context.Background(), at, testDecisions()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)

	// Header plus the two actionable decisions; NONE is not recorded.
	require.Len(t, records, 3)
	require.NotContains(t, string(data), "FF103")
}

func TestFileRecorderCreatesParentDirectories(t *testing.T) {
	// The default path nests under out/compliance/, which nothing else creates.
	path := filepath.Join(t.TempDir(), "out", "compliance", "compliance_events.csv")
	recorder := NewFileRecorder(path)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, recorder.Record(context.Background(), at, testDecisions()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "FF101")
}

func TestFileRecorderAppendsWithoutDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donations.csv")
	recorder := NewFileRecorder(path)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, recorder.Record(context.Background(), at, testDecisions()))
	require.NoError(t, recorder.Record(context.Background(), at.Add(time.Hour), testDecisions()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "recorded_at"))

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
}
