// Package policy maps shrink flags to actionable decisions through a
// configured rule table.
package policy

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/foodflow/foodflow/internal/detect"
)

// Outcome is the action a decision prescribes.
type Outcome string

const (
	OutcomeRecallQuarantine Outcome = "RECALL_QUARANTINE"
	OutcomeMarkdown         Outcome = "MARKDOWN"
	OutcomeDonate           Outcome = "DONATE"
	OutcomeNone             Outcome = "NONE"
)

// Priority orders outcomes for conflict resolution. Higher wins.
func (o Outcome) Priority() int {
	switch o {
	case OutcomeRecallQuarantine:
		return 3
	case OutcomeMarkdown:
		return 2
	case OutcomeDonate:
		return 1
	}
	return 0
}

// Markdown parameterizes the markdown-percentage formula:
// base_pct + excess days of supply beyond target_days * increment_pct,
// capped at max_pct.
type Markdown struct {
	BasePct      float64 `yaml:"base_pct" validate:"gte=0,lte=100"`
	IncrementPct float64 `yaml:"increment_pct" validate:"gte=0,lte=100"`
	TargetDays   float64 `yaml:"target_days" validate:"gte=0"`
	MaxPct       float64 `yaml:"max_pct" validate:"gte=0,lte=100"`
}

// Rule binds a flag reason to an outcome. An empty category matches any;
// rules are evaluated in table order, first match wins, so category-specific
// rows belong before their generic fallback.
type Rule struct {
	Reason      detect.Reason `yaml:"reason" validate:"required,oneof=near_expiry low_movement overstock"`
	Category    string        `yaml:"category"`
	Outcome     Outcome       `yaml:"outcome" validate:"required,oneof=RECALL_QUARANTINE MARKDOWN DONATE NONE"`
	QtyFraction float64       `yaml:"qty_fraction" validate:"gte=0,lte=1"`
	Markdown    *Markdown     `yaml:"markdown" validate:"omitempty"`
	Notes       string        `yaml:"notes"`
}

// RuleTable is the ordered decision policy, loaded once at startup and never
// mutated afterwards.
type RuleTable struct {
	Rules []Rule `yaml:"rules" validate:"required,min=1,dive"`
}

// Match returns the first rule for the reason and category.
func (t RuleTable) Match(reason detect.Reason, category string) (Rule, bool) {
	for _, rule := range t.Rules {
		if rule.Reason != reason {
			continue
		}
		if rule.Category == "" || rule.Category == category {
			return rule, true
		}
	}
	return Rule{}, false
}

// DefaultRuleTable returns the built-in decision policy.
func DefaultRuleTable() RuleTable {
	return RuleTable{Rules: []Rule{
		{
			Reason:      detect.ReasonNearExpiry,
			Outcome:     OutcomeMarkdown,
			QtyFraction: 1,
			Markdown:    &Markdown{BasePct: 25, IncrementPct: 5, TargetDays: 14, MaxPct: 50},
			Notes:       "approaching expiry",
		},
		{
			Reason:      detect.ReasonLowMovement,
			Outcome:     OutcomeMarkdown,
			QtyFraction: 0.5,
			Markdown:    &Markdown{BasePct: 15, IncrementPct: 2, TargetDays: 14, MaxPct: 40},
			Notes:       "slow mover",
		},
		{
			Reason:      detect.ReasonOverstock,
			Outcome:     OutcomeDonate,
			QtyFraction: 0.25,
			Notes:       "days of supply above category ceiling",
		},
	}}
}

// LoadRuleTable reads the decision policy from YAML. A missing file yields
// the defaults. An invalid table is a startup failure: the process must not
// run with a malformed policy.
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRuleTable(), nil
		}
		return RuleTable{}, fmt.Errorf("policy: read rule table: %w", err)
	}
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return RuleTable{}, fmt.Errorf("policy: parse rule table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return RuleTable{}, err
	}
	return table, nil
}

// Validate checks the rule table structure.
func (t RuleTable) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("policy: invalid rule table: %w", err)
	}
	for i, rule := range t.Rules {
		if rule.Outcome == OutcomeMarkdown && rule.Markdown == nil {
			return fmt.Errorf("policy: invalid rule table: rule %d (%s) has outcome MARKDOWN without markdown parameters", i, rule.Reason)
		}
		if rule.Markdown != nil && rule.Markdown.MaxPct < rule.Markdown.BasePct {
			return fmt.Errorf("policy: invalid rule table: rule %d (%s) max_pct below base_pct", i, rule.Reason)
		}
	}
	return nil
}
