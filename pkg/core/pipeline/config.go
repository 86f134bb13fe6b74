package pipeline

import (
	"fmt"
	"os"
	"time"

	"clv_analytics/pkg/core/numopt"

	"gopkg.in/yaml.v2"
)

// Config carries the settings of one analysis run.
type Config struct {
	PeriodLength   time.Duration
	DiscountRate   float64
	CalibrationEnd *time.Time
	Fit            numopt.Config
	Workers        int
}

// fileConfig is the on-disk YAML shape, see config/analysis.yaml.
type fileConfig struct {
	PeriodDays     int     `yaml:"period_days"`
	DiscountRate   float64 `yaml:"discount_rate"`
	CalibrationEnd string  `yaml:"calibration_end"` // RFC3339, empty = full horizon
	MaxIterations  int     `yaml:"max_iterations"`
	Tolerance      float64 `yaml:"tolerance"`
	Workers        int     `yaml:"workers"`
}

// LoadConfig reads an analysis configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg := Config{
		PeriodLength: time.Duration(fc.PeriodDays) * 24 * time.Hour,
		DiscountRate: fc.DiscountRate,
		Fit:          numopt.Config{MaxIterations: fc.MaxIterations, Tolerance: fc.Tolerance},
		Workers:      fc.Workers,
	}
	if fc.CalibrationEnd != "" {
		t, err := time.Parse(time.RFC3339, fc.CalibrationEnd)
		if err != nil {
			return Config{}, fmt.Errorf("invalid calibration_end %q: %w", fc.CalibrationEnd, err)
		}
		cfg.CalibrationEnd = &t
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.PeriodLength <= 0 {
		return fmt.Errorf("period_days must be positive")
	}
	if c.DiscountRate < 0 {
		return fmt.Errorf("discount_rate must be non-negative")
	}
	return nil
}
