// Package config loads the engine configuration from a YAML file, layering
// file values over built-in defaults. Every threshold the analyzers use can
// be tuned here; a missing file just means defaults.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"

	bqstore "github.com/dvloznov/recon-engine/internal/store/bigquery"
)

// Server holds the HTTP API settings.
type Server struct {
	Addr string `yaml:"addr"`
	// Workers is the number of background reconciliation workers.
	Workers int `yaml:"workers"`
}

// Storage selects and parameterizes the record store backend.
type Storage struct {
	// Backend is one of "memory", "bolt" or "bigquery".
	Backend string `yaml:"backend"`

	// BoltPath is the database file for the bolt backend.
	BoltPath string `yaml:"bolt_path"`

	BigQuery bqstore.Config `yaml:"bigquery"`
}

// Export configures where exports land.
type Export struct {
	// GCSBucket, when set, enables uploading exports to Cloud Storage.
	GCSBucket string `yaml:"gcs_bucket"`
}

// Recon holds the duplicate-detection thresholds.
type Recon struct {
	// DuplicateThreshold marks an incoming record a duplicate at ingestion.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
}

// Analysis holds the confidence-analysis thresholds (see review.Config for
// field meanings).
type Analysis struct {
	StaleAfterDays      int     `yaml:"stale_after_days"`
	AmountCeiling       string  `yaml:"amount_ceiling"`
	LowFieldCutoff      float64 `yaml:"low_field_cutoff"`
	ReviewCutoff        float64 `yaml:"review_cutoff"`
	MaxVendorLength     int     `yaml:"max_vendor_length"`
	MaxSpecialCharRatio float64 `yaml:"max_special_char_ratio"`
}

// Config is the root configuration document.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Export  Export  `yaml:"export"`

	// DefaultCurrency is applied to records submitted without one.
	DefaultCurrency string `yaml:"default_currency"`
	// DayFirst controls how ambiguous numeric dates parse (15/03 vs 03/15).
	DayFirst bool `yaml:"day_first"`

	Recon    Recon    `yaml:"recon"`
	Analysis Analysis `yaml:"analysis"`

	// Risk overrides individual risk-rule thresholds; zero values fall back
	// to the rule defaults.
	Risk RiskOverrides `yaml:"risk"`

	// Categories replaces the built-in category keyword table when non-empty.
	Categories map[string][]string `yaml:"categories"`
}

// RiskOverrides mirrors the tunable subset of risk.Config.
type RiskOverrides struct {
	DuplicateThreshold          float64  `yaml:"duplicate_threshold"`
	LargeMultiplier             float64  `yaml:"large_multiplier"`
	LowConfidenceCutoff         float64  `yaml:"low_confidence_cutoff"`
	CategoryChangePct           float64  `yaml:"category_change_pct"`
	SubscriptionMinCount        int      `yaml:"subscription_min_count"`
	SubscriptionMinIntervalDays float64  `yaml:"subscription_min_interval_days"`
	SubscriptionMaxIntervalDays float64  `yaml:"subscription_max_interval_days"`
	DepletionHorizonDays        int      `yaml:"depletion_horizon_days"`
	FirstTimeMultiplier         float64  `yaml:"first_time_multiplier"`
	WeekendMultiplier           float64  `yaml:"weekend_multiplier"`
	TaxDeductibleCategories     []string `yaml:"tax_deductible_categories"`
	TaxDeductibleMinimum        string   `yaml:"tax_deductible_minimum"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:    ":8080",
			Workers: 2,
		},
		Storage: Storage{
			Backend:  "bolt",
			BoltPath: "recon.db",
		},
		DefaultCurrency: "PKR",
		DayFirst:        true,
		Recon: Recon{
			DuplicateThreshold: 70,
		},
		Analysis: Analysis{
			StaleAfterDays:      730,
			AmountCeiling:       "1000000",
			LowFieldCutoff:      0.5,
			ReviewCutoff:        0.7,
			MaxVendorLength:     50,
			MaxSpecialCharRatio: 0.3,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("Load: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("Load: parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "bolt":
	case "bigquery":
		if c.Storage.BigQuery.ProjectID == "" || c.Storage.BigQuery.DatasetID == "" {
			return fmt.Errorf("bigquery backend requires project_id and dataset_id")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Recon.DuplicateThreshold < 0 || c.Recon.DuplicateThreshold > 100 {
		return fmt.Errorf("recon.duplicate_threshold must be in [0, 100], got %v", c.Recon.DuplicateThreshold)
	}
	return nil
}
