package stats

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

func TestCompute(t *testing.T) {
	records := []*domain.TransactionRecord{
		{
			ID: 1, Category: "Food", Expense: decimal.NewFromInt(550),
			Confidence: domain.ConfidenceVector{domain.FieldVendor: 0.95, domain.FieldAmount: 0.95},
		},
		{
			ID: 2, Category: "Food", Expense: decimal.NewFromInt(600), NeedsReview: true,
			Confidence: domain.ConfidenceVector{domain.FieldVendor: 0.6, domain.FieldAmount: 0.6},
		},
		{
			ID: 3, Category: "Rent", Income: decimal.NewFromInt(5000), IsDuplicate: true,
			Confidence: domain.ConfidenceVector{domain.FieldVendor: 0.4, domain.FieldAmount: 0.4},
		},
	}

	d := Compute(records)
	if d.TotalEntries != 3 || d.CleanEntries != 2 || d.FlaggedEntries != 1 || d.Duplicates != 1 {
		t.Errorf("counts = %+v", d)
	}
	if !d.TotalIncome.Equal(decimal.NewFromInt(5000)) || !d.TotalExpense.Equal(decimal.NewFromInt(1150)) {
		t.Errorf("totals = income %s, expense %s", d.TotalIncome, d.TotalExpense)
	}
	if d.CategoryBreakdown["Food"] != 2 || d.CategoryBreakdown["Rent"] != 1 {
		t.Errorf("category breakdown = %v", d.CategoryBreakdown)
	}
	if d.ConfidenceDistribution[domain.ConfidenceHigh] != 1 ||
		d.ConfidenceDistribution[domain.ConfidenceLow] != 1 ||
		d.ConfidenceDistribution[domain.ConfidenceVeryLow] != 1 {
		t.Errorf("confidence distribution = %v", d.ConfidenceDistribution)
	}
}

func TestCompute_Empty(t *testing.T) {
	d := Compute(nil)
	if d.TotalEntries != 0 {
		t.Errorf("total = %d, want 0", d.TotalEntries)
	}
	if d.CategoryBreakdown == nil || d.ConfidenceDistribution == nil {
		t.Error("maps should be initialized for an empty snapshot")
	}
}
