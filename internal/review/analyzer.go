// Package review inspects a single extracted record for plausibility and
// decides whether a human needs to look at it before it is trusted. Every
// check is advisory: implausible records are flagged, never rejected, because
// bookkeeping input is noisy and the reviewer is the backstop.
package review

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
)

// Config holds the tunable plausibility thresholds. These are deployment
// knobs, not business law.
type Config struct {
	// StaleAfterDays flags dates further in the past than this.
	StaleAfterDays int `yaml:"stale_after_days"`
	// AmountCeiling flags amounts above this (advisory, not an error).
	AmountCeiling decimal.Decimal `yaml:"amount_ceiling"`
	// LowFieldCutoff triggers a per-field warning below this confidence.
	LowFieldCutoff float64 `yaml:"low_field_cutoff"`
	// ReviewCutoff: overall confidence below this forces needs-review.
	ReviewCutoff float64 `yaml:"review_cutoff"`
	// MaxVendorLength flags suspiciously long vendor names.
	MaxVendorLength int `yaml:"max_vendor_length"`
	// MaxSpecialCharRatio flags vendors that are mostly non-alphanumeric.
	MaxSpecialCharRatio float64 `yaml:"max_special_char_ratio"`

	// Now supplies the reference time for future/stale date checks.
	Now func() time.Time `yaml:"-"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		StaleAfterDays:      730,
		AmountCeiling:       decimal.NewFromInt(1_000_000),
		LowFieldCutoff:      0.5,
		ReviewCutoff:        0.7,
		MaxVendorLength:     50,
		MaxSpecialCharRatio: 0.3,
		Now:                 time.Now,
	}
}

// Result is the verdict for one record.
type Result struct {
	Flags             []string `json:"flags"`
	Warnings          []string `json:"warnings"`
	OverallConfidence float64  `json:"overall_confidence"`
	NeedsReview       bool     `json:"needs_review"`
}

// Analyzer evaluates records against the configured thresholds.
type Analyzer struct {
	cfg   Config
	dates *dateparse.Normalizer
}

// New builds an analyzer. A nil normalizer falls back to the default one;
// a nil Now falls back to time.Now.
func New(cfg Config, dates *dateparse.Normalizer) *Analyzer {
	if dates == nil {
		dates = dateparse.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Analyzer{cfg: cfg, dates: dates}
}

// Analyze runs every check independently (no short-circuiting) and combines
// the outcomes into a needs-review verdict.
func (a *Analyzer) Analyze(rec *domain.TransactionRecord) Result {
	var res Result

	if flag := a.checkDate(rec.Date); flag != "" {
		res.Flags = append(res.Flags, flag)
	}
	amount, _ := rec.Amount()
	if flag := a.checkAmount(rec); flag != "" {
		res.Flags = append(res.Flags, flag)
	}
	if flag := a.checkVendor(rec.Vendor); flag != "" {
		res.Flags = append(res.Flags, flag)
	}

	// Stable warning order regardless of map iteration.
	fields := make([]string, 0, len(rec.Confidence))
	for field := range rec.Confidence {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if score := rec.Confidence[field]; score < a.cfg.LowFieldCutoff {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s has low confidence (%.0f%%), please review", field, score*100))
		}
	}

	res.OverallConfidence = rec.Confidence.Mean()
	res.NeedsReview = len(res.Flags) > 0 ||
		res.OverallConfidence < a.cfg.ReviewCutoff ||
		amount.IsZero()

	return res
}

func (a *Analyzer) checkDate(dateStr string) string {
	if strings.TrimSpace(dateStr) == "" {
		return "date is missing"
	}
	parsed, ok := a.dates.Parse(dateStr)
	if !ok {
		return fmt.Sprintf("date %q matches no known format", dateStr)
	}
	now := a.cfg.Now()
	if parsed.After(now) {
		return "date is in the future, please verify"
	}
	if dateparse.DaysBetween(now, parsed) > a.cfg.StaleAfterDays {
		return fmt.Sprintf("date is more than %d days old, please verify", a.cfg.StaleAfterDays)
	}
	return ""
}

func (a *Analyzer) checkAmount(rec *domain.TransactionRecord) string {
	if rec.Income.IsNegative() || rec.Expense.IsNegative() {
		return "amount is negative"
	}
	amount, ok := rec.Amount()
	if !ok || amount.IsZero() {
		return "amount is zero or missing"
	}
	if amount.GreaterThan(a.cfg.AmountCeiling) {
		return "amount seems unusually high, please verify"
	}
	return ""
}

func (a *Analyzer) checkVendor(vendor string) string {
	vendor = strings.TrimSpace(vendor)
	if vendor == "" || strings.EqualFold(vendor, "unknown") {
		return "vendor name is unknown or missing"
	}
	var special int
	runes := []rune(vendor)
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if float64(special) > float64(len(runes))*a.cfg.MaxSpecialCharRatio {
		return "vendor name contains unusual characters, extraction may have failed"
	}
	if len(runes) > a.cfg.MaxVendorLength {
		return "vendor name is unusually long, please verify"
	}
	return ""
}
