package recon

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

func newDetector() *Detector {
	return NewDetector(NewScorer(DefaultWeights(), nil))
}

// Two near-identical receipts from the same food stall: slightly different
// vendor spelling and a 5-rupee amount gap should still clear the default
// threshold comfortably.
func TestFindDuplicates_NearMatch(t *testing.T) {
	d := newDetector()
	candidate := expenseRecord(0, "2024-01-10", "KFC Johar", 550, "Food")
	existing := []*domain.TransactionRecord{
		expenseRecord(1, "2024-01-10", "KFC Johar Town", 555, "Food"),
		expenseRecord(2, "2024-03-02", "Shell Petrol", 4200, "Fuel"),
	}

	matches := d.FindDuplicates(candidate, existing, DefaultThreshold)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.MatchedID != 1 {
		t.Errorf("MatchedID = %d, want 1", m.MatchedID)
	}
	if m.Breakdown.Vendor < 75 {
		t.Errorf("vendor similarity = %v, want >= 75", m.Breakdown.Vendor)
	}
	if m.Breakdown.Amount < 90 {
		t.Errorf("amount similarity = %v, want >= 90 (~0.9%% difference)", m.Breakdown.Amount)
	}
	if m.Breakdown.Date != 100 {
		t.Errorf("date similarity = %v, want 100", m.Breakdown.Date)
	}
	if m.Score < 85 {
		t.Errorf("overall = %v, want >= 85", m.Score)
	}
}

func TestFindDuplicates_SortedAboveThreshold(t *testing.T) {
	d := newDetector()
	candidate := expenseRecord(0, "2024-01-10", "Careem", 300, "Transport")
	existing := []*domain.TransactionRecord{
		expenseRecord(1, "2024-01-12", "Careem", 310, "Transport"),
		expenseRecord(2, "2024-01-10", "Careem", 300, "Transport"),
		expenseRecord(3, "2023-06-01", "Utility Bill", 9000, "Utilities"),
	}

	matches := d.FindDuplicates(candidate, existing, 70)
	if len(matches) == 0 {
		t.Fatal("expected matches")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted descending at %d: %v > %v", i, matches[i].Score, matches[i-1].Score)
		}
	}
	for _, m := range matches {
		if m.Score < 70 {
			t.Errorf("match %d below threshold: %v", m.MatchedID, m.Score)
		}
	}
	if matches[0].MatchedID != 2 {
		t.Errorf("best match = %d, want the exact copy (2)", matches[0].MatchedID)
	}
}

func TestFindDuplicates_TieBreaksOnLowestID(t *testing.T) {
	d := newDetector()
	candidate := expenseRecord(0, "2024-01-10", "Netflix", 1200, "Utilities")
	existing := []*domain.TransactionRecord{
		expenseRecord(7, "2024-01-10", "Netflix", 1200, "Utilities"),
		expenseRecord(3, "2024-01-10", "Netflix", 1200, "Utilities"),
	}

	matches := d.FindDuplicates(candidate, existing, 70)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	best, ok := BestMatch(matches)
	if !ok || best.MatchedID != 3 {
		t.Errorf("BestMatch id = %d ok=%v, want 3 (lowest id wins the tie)", best.MatchedID, ok)
	}
}

func TestFindDuplicates_ExcludesSelf(t *testing.T) {
	d := newDetector()
	rec := expenseRecord(5, "2024-01-10", "KFC", 550, "Food")
	matches := d.FindDuplicates(rec, []*domain.TransactionRecord{rec}, 70)
	if len(matches) != 0 {
		t.Errorf("record matched itself: %+v", matches)
	}
}

func TestFindDuplicates_EmptySet(t *testing.T) {
	d := newDetector()
	candidate := expenseRecord(0, "2024-01-10", "KFC", 550, "Food")
	if matches := d.FindDuplicates(candidate, nil, 70); len(matches) != 0 {
		t.Errorf("got %d matches from empty set, want 0", len(matches))
	}
}

func TestBatchCheck(t *testing.T) {
	d := newDetector()
	records := []*domain.TransactionRecord{
		expenseRecord(1, "2024-01-10", "KFC Johar", 550, "Food"),
		expenseRecord(2, "2024-01-10", "KFC Johar Town", 555, "Food"),
		expenseRecord(3, "2024-05-20", "PSO Petrol", 6000, "Fuel"),
	}

	result := d.BatchCheck(records, 70)
	if len(result[1]) != 1 || result[1][0].MatchedID != 2 {
		t.Errorf("record 1 matches = %+v, want single match on 2", result[1])
	}
	if len(result[2]) != 1 || result[2][0].MatchedID != 1 {
		t.Errorf("record 2 matches = %+v, want single match on 1", result[2])
	}
	if _, ok := result[3]; ok {
		t.Errorf("record 3 unexpectedly matched: %+v", result[3])
	}
}

func TestBatchCheck_Empty(t *testing.T) {
	d := newDetector()
	if result := d.BatchCheck(nil, 70); len(result) != 0 {
		t.Errorf("got %d entries from empty set, want 0", len(result))
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(nil); got != "No duplicates found" {
		t.Errorf("Summary(nil) = %q", got)
	}

	matched := expenseRecord(4, "2024-01-10", "KFC Johar", 550, "Food")
	matched.Currency = "PKR"
	s := Summary([]Match{{MatchedID: 4, Matched: matched, Score: 92.5}})
	if !strings.Contains(s, "Entry #4") || !strings.Contains(s, "KFC Johar") || !strings.Contains(s, "92%") {
		t.Errorf("Summary = %q", s)
	}
}

func TestAmountHelperOnRecord(t *testing.T) {
	r := &domain.TransactionRecord{Income: decimal.NewFromInt(500)}
	amt, ok := r.Amount()
	if !ok || !amt.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Amount() = %v ok=%v", amt, ok)
	}
	empty := &domain.TransactionRecord{}
	if _, ok := empty.Amount(); ok {
		t.Error("empty record reported a magnitude")
	}
}
