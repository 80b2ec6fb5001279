package recon

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

func expenseRecord(id int64, date, vendor string, expense float64, category string) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:       id,
		Date:     date,
		Vendor:   vendor,
		Expense:  decimal.NewFromFloat(expense),
		Type:     domain.TransactionTypeExpense,
		Category: category,
	}
}

func TestScore_IdenticalRecords(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	a := expenseRecord(1, "2024-01-10", "KFC Johar", 550, "Food")
	b := expenseRecord(2, "2024-01-10", "KFC Johar", 550, "Food")

	sim := s.Score(a, b)
	if sim.Overall != 100 {
		t.Errorf("Overall = %v, want 100", sim.Overall)
	}
	if sim.Breakdown.Amount != 100 || sim.Breakdown.Vendor != 100 ||
		sim.Breakdown.Date != 100 || sim.Breakdown.Category != 100 {
		t.Errorf("Breakdown = %+v, want all 100", sim.Breakdown)
	}
}

func TestScore_DisjointRecords(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	// No vendor, no category, unparseable dates, only one side has an amount:
	// every field contributes zero.
	a := &domain.TransactionRecord{ID: 1, Date: "garbage", Expense: decimal.NewFromInt(100)}
	b := &domain.TransactionRecord{ID: 2, Date: "also garbage"}

	sim := s.Score(a, b)
	if sim.Overall != 0 {
		t.Errorf("Overall = %v, want 0", sim.Overall)
	}
}

func TestScore_AmountTiers(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)

	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"exact", 100, 100, 100},
		{"within one percent", 1000, 995, 100},
		{"within five percent", 100, 96, 90},
		{"within ten percent", 100, 92, 70},
		{"twenty percent apart", 100, 80, 70}, // 20% diff -> 100 - 1.5*20
		{"far apart", 100, 10, 0},             // 90% diff -> clamped at 0
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra := expenseRecord(1, "2024-01-10", "x", tt.a, "")
			rb := expenseRecord(2, "2024-01-10", "x", tt.b, "")
			got := s.Score(ra, rb).Breakdown.Amount
			if got != tt.want {
				t.Errorf("amount score(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestScore_AmountPrefersIncome(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	// Both income and expense present (manual correction case): income wins.
	a := &domain.TransactionRecord{ID: 1, Income: decimal.NewFromInt(500), Expense: decimal.NewFromInt(200)}
	b := &domain.TransactionRecord{ID: 2, Income: decimal.NewFromInt(500)}

	if got := s.Score(a, b).Breakdown.Amount; got != 100 {
		t.Errorf("amount score = %v, want 100 (income preferred over expense)", got)
	}
}

func TestScore_AmountMissingSide(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	a := &domain.TransactionRecord{ID: 1, Expense: decimal.NewFromInt(500)}
	b := &domain.TransactionRecord{ID: 2}

	if got := s.Score(a, b).Breakdown.Amount; got != 0 {
		t.Errorf("amount score = %v, want 0 when one side has no magnitude", got)
	}
}

func TestScore_DateTiers(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"same day", "2024-01-10", "2024-01-10", 100},
		{"one day", "2024-01-10", "2024-01-11", 85},
		{"two days", "2024-01-10", "2024-01-12", 70},
		{"three days", "2024-01-10", "2024-01-13", 50},
		{"four days", "2024-01-10", "2024-01-14", 40},
		{"ten days", "2024-01-10", "2024-01-20", 0},
		{"mixed formats", "10/01/2024", "2024-01-10", 100},
		{"unparseable side", "garbage", "2024-01-10", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra := expenseRecord(1, tt.a, "x", 10, "")
			rb := expenseRecord(2, tt.b, "x", 10, "")
			if got := s.Score(ra, rb).Breakdown.Date; got != tt.want {
				t.Errorf("date score(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestScore_VendorCaseAndWhitespace(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	a := expenseRecord(1, "2024-01-10", "  KFC Johar  ", 10, "")
	b := expenseRecord(2, "2024-01-10", "kfc johar", 10, "")

	if got := s.Score(a, b).Breakdown.Vendor; got != 100 {
		t.Errorf("vendor score = %v, want 100 after folding and trimming", got)
	}
}

func TestScore_CategoryExactOnly(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)

	tests := []struct {
		a, b string
		want float64
	}{
		{"Food", "food", 100},
		{"Food", "Fuel", 0},
		{"", "Food", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		ra := expenseRecord(1, "2024-01-10", "x", 10, tt.a)
		rb := expenseRecord(2, "2024-01-10", "x", 10, tt.b)
		if got := s.Score(ra, rb).Breakdown.Category; got != tt.want {
			t.Errorf("category score(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
