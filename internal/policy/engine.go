package policy

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/foodflow/foodflow/internal/detect"
)

// Decision is the published outcome for one product in one cycle. The
// enrichment fields are filled by the integration layer from the snapshot.
type Decision struct {
	DefaultCode  string   `json:"default_code"`
	Outcome      Outcome  `json:"outcome"`
	SuggestedQty float64  `json:"suggested_qty"`
	MarkdownPct  *float64 `json:"price_markdown_pct,omitempty"`
	Notes        string   `json:"notes"`

	ProductName string   `json:"product_name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Stores      []string `json:"stores,omitempty"`
	Qty         float64  `json:"qty"`
}

// Engine resolves flags into exactly one Decision per product.
type Engine struct {
	table  RuleTable
	logger *slog.Logger
}

// NewEngine constructs Engine over a validated rule table.
func NewEngine(table RuleTable, logger *slog.Logger) *Engine {
	return &Engine{table: table, logger: logger}
}

// Decide maps flags to decisions, ordered by product code. A product with
// several flags gets the decision with the highest outcome priority; equal
// priorities resolve by reason rank, near_expiry first. A flag with no
// matching rule yields NONE with a warning, never an error.
func (e *Engine) Decide(flags []detect.Flag) []Decision {
	type candidate struct {
		decision Decision
		reason   detect.Reason
	}
	best := make(map[string]candidate)
	order := make([]string, 0, len(flags))

	for _, flag := range flags {
		decision := e.evaluate(flag)
		current, seen := best[flag.Product]
		if !seen {
			order = append(order, flag.Product)
			best[flag.Product] = candidate{decision: decision, reason: flag.Reason}
			continue
		}
		if decision.Outcome.Priority() > current.decision.Outcome.Priority() ||
			(decision.Outcome.Priority() == current.decision.Outcome.Priority() &&
				flag.Reason.Rank() < current.reason.Rank()) {
			best[flag.Product] = candidate{decision: decision, reason: flag.Reason}
		}
	}

	sort.Strings(order)
	decisions := make([]Decision, 0, len(order))
	for _, product := range order {
		decisions = append(decisions, best[product].decision)
	}
	return decisions
}

func (e *Engine) evaluate(flag detect.Flag) Decision {
	rule, ok := e.table.Match(flag.Reason, flag.Category)
	if !ok {
		e.logger.Warn("no policy rule for flag",
			slog.String("product", flag.Product),
			slog.String("reason", string(flag.Reason)),
		)
		return Decision{
			DefaultCode: flag.Product,
			Outcome:     OutcomeNone,
			Notes:       fmt.Sprintf("no policy rule for %s", flag.Reason),
		}
	}

	decision := Decision{
		DefaultCode:  flag.Product,
		Outcome:      rule.Outcome,
		SuggestedQty: round2(flag.Metrics.Qty * rule.QtyFraction),
		Notes:        fmt.Sprintf("%s: %s", flag.Reason, rule.Notes),
	}
	if rule.Outcome == OutcomeMarkdown && rule.Markdown != nil {
		pct := markdownPct(*rule.Markdown, flag.Metrics.DaysOfSupply)
		decision.MarkdownPct = &pct
	}
	return decision
}

// markdownPct applies base_pct + excess_days * increment_pct, capped at
// max_pct. Infinite days of supply (no sales at all) goes straight to the
// cap.
func markdownPct(m Markdown, daysOfSupply float64) float64 {
	if math.IsInf(daysOfSupply, 1) {
		return m.MaxPct
	}
	excess := daysOfSupply - m.TargetDays
	if excess < 0 {
		excess = 0
	}
	pct := m.BasePct + excess*m.IncrementPct
	if pct > m.MaxPct {
		pct = m.MaxPct
	}
	return round2(pct)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
