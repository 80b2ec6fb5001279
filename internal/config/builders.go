package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/categorize"
	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/review"
	"github.com/dvloznov/recon-engine/internal/risk"
)

// Dates builds the date normalizer the whole engine shares.
func (c Config) Dates() *dateparse.Normalizer {
	return dateparse.New(dateparse.Options{DayFirst: c.DayFirst})
}

// ReviewConfig builds the confidence-analyzer configuration.
func (c Config) ReviewConfig() (review.Config, error) {
	rc := review.DefaultConfig()
	a := c.Analysis
	if a.StaleAfterDays > 0 {
		rc.StaleAfterDays = a.StaleAfterDays
	}
	if a.AmountCeiling != "" {
		ceiling, err := decimal.NewFromString(a.AmountCeiling)
		if err != nil {
			return review.Config{}, fmt.Errorf("ReviewConfig: parse amount_ceiling %q: %w", a.AmountCeiling, err)
		}
		rc.AmountCeiling = ceiling
	}
	if a.LowFieldCutoff > 0 {
		rc.LowFieldCutoff = a.LowFieldCutoff
	}
	if a.ReviewCutoff > 0 {
		rc.ReviewCutoff = a.ReviewCutoff
	}
	if a.MaxVendorLength > 0 {
		rc.MaxVendorLength = a.MaxVendorLength
	}
	if a.MaxSpecialCharRatio > 0 {
		rc.MaxSpecialCharRatio = a.MaxSpecialCharRatio
	}
	return rc, nil
}

// RiskConfig builds the risk-analyzer configuration, applying any overrides
// over the rule defaults.
func (c Config) RiskConfig() (risk.Config, error) {
	rc := risk.DefaultConfig()
	rc.Dates = c.Dates()

	o := c.Risk
	if o.DuplicateThreshold > 0 {
		rc.DuplicateThreshold = o.DuplicateThreshold
	}
	if o.LargeMultiplier > 0 {
		rc.LargeMultiplier = o.LargeMultiplier
	}
	if o.LowConfidenceCutoff > 0 {
		rc.LowConfidenceCutoff = o.LowConfidenceCutoff
	}
	if o.CategoryChangePct > 0 {
		rc.CategoryChangePct = o.CategoryChangePct
	}
	if o.SubscriptionMinCount > 0 {
		rc.SubscriptionMinCount = o.SubscriptionMinCount
	}
	if o.SubscriptionMinIntervalDays > 0 {
		rc.SubscriptionMinIntervalDays = o.SubscriptionMinIntervalDays
	}
	if o.SubscriptionMaxIntervalDays > 0 {
		rc.SubscriptionMaxIntervalDays = o.SubscriptionMaxIntervalDays
	}
	if o.DepletionHorizonDays > 0 {
		rc.DepletionHorizonDays = o.DepletionHorizonDays
	}
	if o.FirstTimeMultiplier > 0 {
		rc.FirstTimeMultiplier = o.FirstTimeMultiplier
	}
	if o.WeekendMultiplier > 0 {
		rc.WeekendMultiplier = o.WeekendMultiplier
	}
	if len(o.TaxDeductibleCategories) > 0 {
		rc.TaxDeductibleCategories = o.TaxDeductibleCategories
	}
	if o.TaxDeductibleMinimum != "" {
		minAmount, err := decimal.NewFromString(o.TaxDeductibleMinimum)
		if err != nil {
			return risk.Config{}, fmt.Errorf("RiskConfig: parse tax_deductible_minimum %q: %w", o.TaxDeductibleMinimum, err)
		}
		rc.TaxDeductibleMinimum = minAmount
	}
	return rc, nil
}

// CategoryTable returns the configured keyword table, falling back to the
// built-in one.
func (c Config) CategoryTable() categorize.Table {
	if len(c.Categories) == 0 {
		return categorize.DefaultTable()
	}
	table := make(categorize.Table, len(c.Categories))
	for category, keywords := range c.Categories {
		table[category] = append([]string(nil), keywords...)
	}
	return table
}
