package sim

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/foodflow/foodflow/internal/shared"
)

// RateConfig holds a default rate with per-category overrides.
type RateConfig struct {
	Default       float64            `yaml:"default" validate:"gte=0"`
	CategoryRates map[string]float64 `yaml:"category_rates" validate:"dive,gte=0"`
}

// RateFor returns the category rate, falling back to the default.
func (c RateConfig) RateFor(category string) float64 {
	if rate, ok := c.CategoryRates[category]; ok {
		return rate
	}
	return c.Default
}

// ParConfig holds replenishment par levels per category.
type ParConfig struct {
	Default      float64            `yaml:"default" validate:"gte=0"`
	CategoryPars map[string]float64 `yaml:"category_pars" validate:"dive,gte=0"`
}

// ParFor returns the category par level, falling back to the default.
func (c ParConfig) ParFor(category string) float64 {
	if par, ok := c.CategoryPars[category]; ok {
		return par
	}
	return c.Default
}

// ReturnsConfig controls how much recently sold stock flows back.
type ReturnsConfig struct {
	Fraction      float64         `yaml:"fraction" validate:"gte=0,lte=1"`
	Window        shared.Duration `yaml:"window"`
	FloorCapacity float64         `yaml:"floor_capacity" validate:"gte=0"`
}

// Intervals holds the minimum elapsed time between runs per job.
type Intervals struct {
	Receiving   shared.Duration `yaml:"receiving"`
	Returns     shared.Duration `yaml:"returns"`
	SellDown    shared.Duration `yaml:"sell_down"`
	Shrink      shared.Duration `yaml:"shrink"`
	DailyExpiry shared.Duration `yaml:"daily_expiry"`
}

// Config is the top-level simulator configuration.
type Config struct {
	SellDown  RateConfig    `yaml:"sell_down"`
	Returns   ReturnsConfig `yaml:"returns"`
	Shrink    RateConfig    `yaml:"shrink"`
	Receiving ParConfig     `yaml:"receiving"`
	Intervals Intervals     `yaml:"intervals"`
}

// DefaultConfig returns the built-in simulator settings.
func DefaultConfig() Config {
	return Config{
		SellDown:  RateConfig{Default: 8},
		Returns:   ReturnsConfig{Fraction: 0.05, Window: shared.Duration(24 * time.Hour), FloorCapacity: 60},
		Shrink:    RateConfig{Default: 0.02},
		Receiving: ParConfig{Default: 50},
		Intervals: Intervals{
			Receiving:   shared.Duration(24 * time.Hour),
			Returns:     shared.Duration(6 * time.Hour),
			SellDown:    shared.Duration(15 * time.Minute),
			Shrink:      shared.Duration(12 * time.Hour),
			DailyExpiry: shared.Duration(24 * time.Hour),
		},
	}
}

// LoadConfig reads simulator configuration from YAML and validates it.
// Invalid configuration is fatal at startup.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("sim: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("sim: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks rates and intervals.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("sim: invalid config: %w", err)
	}
	for name, interval := range map[string]time.Duration{
		JobNameReceiving:   c.Intervals.Receiving.Std(),
		JobNameReturns:     c.Intervals.Returns.Std(),
		JobNameSellDown:    c.Intervals.SellDown.Std(),
		JobNameShrink:      c.Intervals.Shrink.Std(),
		JobNameDailyExpiry: c.Intervals.DailyExpiry.Std(),
	} {
		if interval <= 0 {
			return fmt.Errorf("sim: invalid config: interval for %s must be positive", name)
		}
	}
	if c.Returns.Window.Std() <= 0 {
		return fmt.Errorf("sim: invalid config: returns window must be positive")
	}
	return nil
}
