package categorize

import (
	"strings"
	"testing"
)

func TestCategorize_VendorKeyword(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name   string
		vendor string
		notes  string
		want   string
	}{
		{"fast food chain", "KFC Johar Town", "", "Food"},
		{"fuel station", "PSO Petrol Pump", "", "Fuel"},
		{"ride hailing", "Careem Ride", "", "Transport"},
		{"utility transliterated", "K-Electric Bijli", "", "Utilities"},
		{"rent transliterated", "Makan Kiraya", "", "Rent"},
		{"pharmacy", "City Pharmacy", "", "Medical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Categorize(tt.vendor, tt.notes)
			if res.Category != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.vendor, res.Category, tt.want)
			}
			if res.Confidence < 0.6 || res.Confidence > 0.95 {
				t.Errorf("confidence = %v, want within [0.6, 0.95]", res.Confidence)
			}
		})
	}
}

func TestCategorize_NoMatchFallsBackToOther(t *testing.T) {
	c := New(nil)
	res := c.Categorize("Zxqw Enterprises", "nothing relevant here")
	if res.Category != Other {
		t.Errorf("category = %q, want %q", res.Category, Other)
	}
	if res.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", res.Confidence)
	}
}

func TestCategorize_NotesOnlyMatchScoresLower(t *testing.T) {
	table := Table{
		"Food": {"biryani"},
		Other:  {},
	}
	c := New(table)

	fromVendor := c.Categorize("Biryani House", "")
	fromNotes := c.Categorize("Some Shop", "picked up biryani for the office")

	if fromVendor.Category != "Food" || fromNotes.Category != "Food" {
		t.Fatalf("categories = %q/%q, want Food/Food", fromVendor.Category, fromNotes.Category)
	}
	// Vendor hit: 10 points; notes-only hit: 5 points. One match each.
	if fromVendor.Confidence <= fromNotes.Confidence {
		t.Errorf("vendor-hit confidence %v should exceed notes-hit confidence %v",
			fromVendor.Confidence, fromNotes.Confidence)
	}
}

func TestCategorize_TieBrokenByScoreThenMatches(t *testing.T) {
	table := Table{
		"A":   {"alpha", "beta"},
		"B":   {"alpha"},
		Other: {},
	}
	c := New(table)

	// "alpha beta" as vendor: A scores 20 with 2 matches, B scores 10 with 1.
	res := c.Categorize("alpha beta", "")
	if res.Category != "A" {
		t.Errorf("category = %q, want A", res.Category)
	}
	if len(res.MatchedKeywords) != 2 {
		t.Errorf("matched keywords = %v, want both", res.MatchedKeywords)
	}
}

func TestCategorize_ConfidenceCapped(t *testing.T) {
	table := Table{
		"Busy": {"a", "b", "c", "d", "e", "f"},
		Other:  {},
	}
	c := New(table)

	res := c.Categorize("abcdef", "")
	if res.Confidence != 0.95 {
		t.Errorf("confidence = %v, want capped at 0.95", res.Confidence)
	}
}

func TestSuggestCategory_Alternatives(t *testing.T) {
	c := New(nil)
	// "gas" appears in both Fuel and Utilities keyword lists.
	sug := c.SuggestCategory("Sui Gas Bill", "")

	if sug.Category == Other {
		t.Fatalf("category = %q, want a real category", sug.Category)
	}
	if len(sug.Alternatives) == 0 {
		t.Error("expected at least one alternative category")
	}
	for _, alt := range sug.Alternatives {
		if alt == sug.Category {
			t.Errorf("alternatives %v contain the chosen category", sug.Alternatives)
		}
	}
	if len(sug.Alternatives) > 3 {
		t.Errorf("alternatives = %v, want at most 3", sug.Alternatives)
	}
}

func TestCategories_OtherLast(t *testing.T) {
	c := DefaultTable()
	names := c.Categories()
	if names[len(names)-1] != Other {
		t.Errorf("last category = %q, want %q", names[len(names)-1], Other)
	}
	if !strings.EqualFold(names[0], "Business") {
		t.Errorf("first category = %q, want alphabetical order", names[0])
	}
}
