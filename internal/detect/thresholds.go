// Package detect mines the inventory snapshot and sales history for shrink
// risk signals.
package detect

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/foodflow/foodflow/internal/shared"
)

// Threshold holds the trigger levels for one category.
type Threshold struct {
	ExpiryDays      int     `yaml:"expiry_days" validate:"gte=0"`
	MinUnits        float64 `yaml:"min_units" validate:"gte=0"`
	MaxDaysOfSupply float64 `yaml:"max_days_of_supply" validate:"gte=0"`
}

// Config is the detector configuration: a trailing sales window, default
// thresholds, and per-category overrides.
type Config struct {
	Window     shared.Duration      `yaml:"window"`
	Default    Threshold            `yaml:"default"`
	Categories map[string]Threshold `yaml:"categories" validate:"dive"`
}

// ThresholdFor returns the category threshold, falling back to the default.
func (c Config) ThresholdFor(category string) Threshold {
	if t, ok := c.Categories[category]; ok {
		return t
	}
	return c.Default
}

// DefaultConfig returns the built-in detector thresholds.
func DefaultConfig() Config {
	return Config{
		Window: shared.Duration(7 * 24 * time.Hour),
		Default: Threshold{
			ExpiryDays:      3,
			MinUnits:        5,
			MaxDaysOfSupply: 14,
		},
	}
}

// LoadConfig reads detector thresholds from YAML. A missing file yields the
// defaults; an invalid file is fatal at startup.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("detect: read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("detect: parse thresholds: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks threshold levels and the sales window.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("detect: invalid thresholds: %w", err)
	}
	if c.Window.Std() <= 0 {
		return fmt.Errorf("detect: invalid thresholds: window must be positive")
	}
	return nil
}
