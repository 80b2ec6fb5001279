// Package stats aggregates dashboard figures over the full transaction set.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

// Dashboard is a snapshot summary of the ledger's health.
type Dashboard struct {
	TotalEntries   int             `json:"total_entries"`
	CleanEntries   int             `json:"clean_entries"`
	FlaggedEntries int             `json:"flagged_entries"`
	Duplicates     int             `json:"duplicates"`
	TotalIncome    decimal.Decimal `json:"total_income"`
	TotalExpense   decimal.Decimal `json:"total_expense"`

	CategoryBreakdown map[string]int `json:"category_breakdown"`
	// ConfidenceDistribution buckets records by their mean confidence band.
	ConfidenceDistribution map[domain.ConfidenceLevel]int `json:"confidence_distribution"`
}

// Compute builds the dashboard from a snapshot. An empty snapshot yields a
// zeroed dashboard with initialized maps.
func Compute(records []*domain.TransactionRecord) Dashboard {
	d := Dashboard{
		TotalIncome:            decimal.Zero,
		TotalExpense:           decimal.Zero,
		CategoryBreakdown:      make(map[string]int),
		ConfidenceDistribution: make(map[domain.ConfidenceLevel]int),
	}

	for _, rec := range records {
		d.TotalEntries++
		if rec.NeedsReview {
			d.FlaggedEntries++
		} else {
			d.CleanEntries++
		}
		if rec.IsDuplicate {
			d.Duplicates++
		}
		d.TotalIncome = d.TotalIncome.Add(rec.Income)
		d.TotalExpense = d.TotalExpense.Add(rec.Expense)
		d.CategoryBreakdown[rec.Category]++
		d.ConfidenceDistribution[domain.LevelForScore(rec.Confidence.Mean())]++
	}
	return d
}
