// Package risk runs a registered list of independent detection rules over a
// snapshot of the transaction set and merges their findings into one alert
// list. Rules share nothing, never mutate their input, and can be added,
// removed, or re-tuned without touching the orchestrator.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/recon"
)

// Config carries every rule threshold. All values are deployment tuning, not
// business law.
type Config struct {
	// DuplicateThreshold is the similarity cutoff for the duplicate-charges
	// rule. Stricter than the ingestion threshold: this is an audit pass.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	// LargeMultiplier flags amounts above this multiple of the mean.
	LargeMultiplier float64 `yaml:"large_multiplier"`
	// LowConfidenceCutoff flags confidence fields below this value.
	LowConfidenceCutoff float64 `yaml:"low_confidence_cutoff"`
	// CategoryChangePct flags month-over-month category spend shifts beyond
	// this percentage in either direction.
	CategoryChangePct float64 `yaml:"category_change_pct"`
	// SubscriptionMinCount is the minimum equal-amount charges per vendor.
	SubscriptionMinCount int `yaml:"subscription_min_count"`
	// SubscriptionMinIntervalDays / SubscriptionMaxIntervalDays bound the
	// average charge interval of a likely monthly subscription.
	SubscriptionMinIntervalDays float64 `yaml:"subscription_min_interval_days"`
	SubscriptionMaxIntervalDays float64 `yaml:"subscription_max_interval_days"`
	// DepletionHorizonDays is how far ahead the balance projection looks.
	DepletionHorizonDays int `yaml:"depletion_horizon_days"`
	// FirstTimeMultiplier flags single-appearance vendors above this multiple
	// of the mean amount.
	FirstTimeMultiplier float64 `yaml:"first_time_multiplier"`
	// WeekendMultiplier flags weekend spending above this multiple of the
	// weekday average.
	WeekendMultiplier float64 `yaml:"weekend_multiplier"`
	// TaxDeductibleCategories are matched case-insensitively.
	TaxDeductibleCategories []string `yaml:"tax_deductible_categories"`
	// TaxDeductibleMinimum is the smallest amount worth flagging.
	TaxDeductibleMinimum decimal.Decimal `yaml:"tax_deductible_minimum"`

	// Now supplies the reference time for projection and future-date logic.
	Now func() time.Time `yaml:"-"`
	// Dates parses record date text.
	Dates *dateparse.Normalizer `yaml:"-"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold:          90,
		LargeMultiplier:             2.0,
		LowConfidenceCutoff:         0.9,
		CategoryChangePct:           25,
		SubscriptionMinCount:        3,
		SubscriptionMinIntervalDays: 25,
		SubscriptionMaxIntervalDays: 35,
		DepletionHorizonDays:        90,
		FirstTimeMultiplier:         1.5,
		WeekendMultiplier:           1.5,
		TaxDeductibleCategories:     []string{"Business", "Medical", "Charity", "Education", "Office"},
		TaxDeductibleMinimum:        decimal.NewFromInt(100),
		Now:                         time.Now,
		Dates:                       dateparse.Default(),
	}
}

// Rule is one independent detection over the full snapshot. Implementations
// must not mutate records and must tolerate an empty set.
type Rule interface {
	// Name identifies the rule in logs.
	Name() string
	Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert
}

// Report is the outcome of one analysis run. NoAlerts distinguishes
// "analyzed, nothing found" from a zero-value Report.
type Report struct {
	Alerts   []domain.RiskAlert `json:"alerts"`
	NoAlerts bool               `json:"no_alerts"`
}

// Analyzer runs its registered rules in order and concatenates their output.
type Analyzer struct {
	rules []Rule
	cfg   Config
}

// NewAnalyzer registers the given rules. Nil Now/Dates in cfg fall back to
// defaults so the zero-ish config is still usable.
func NewAnalyzer(cfg Config, rules ...Rule) *Analyzer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Dates == nil {
		cfg.Dates = dateparse.Default()
	}
	return &Analyzer{rules: rules, cfg: cfg}
}

// NewDefaultAnalyzer wires the nine standard rules.
func NewDefaultAnalyzer(cfg Config, detector *recon.Detector) *Analyzer {
	return NewAnalyzer(cfg,
		&DuplicateChargesRule{Detector: detector},
		&LargeTransactionRule{},
		&LowConfidenceRule{},
		&CategoryChangeRule{},
		&SubscriptionRule{},
		&BalanceRiskRule{},
		&FirstTimeVendorRule{},
		&WeekendSpikeRule{},
		&TaxDeductibleRule{},
	)
}

// Analyze runs every rule against the same snapshot. Results are concatenated
// in registration order; no cross-rule deduplication.
func (a *Analyzer) Analyze(records []*domain.TransactionRecord) Report {
	alerts := []domain.RiskAlert{}
	if len(records) > 0 {
		for _, rule := range a.rules {
			alerts = append(alerts, rule.Evaluate(records, a.cfg)...)
		}
	}
	return Report{Alerts: alerts, NoAlerts: len(alerts) == 0}
}
