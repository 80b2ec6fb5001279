// Package categorize assigns categories to transaction records by weighted
// keyword matching over vendor and notes text. The keyword tables are plain
// configuration handed to the constructor, so deployments localize them
// (the default table mixes English and transliterated Urdu merchant terms)
// and tests run against synthetic tables.
package categorize

import (
	"sort"
	"strings"
)

// Other is the fallback category for records nothing matched.
const Other = "Other"

// otherConfidence is deliberately low so unmatched records surface in review.
const otherConfidence = 0.3

// Table maps category names to their keyword lists. A keyword counts when it
// appears as a substring of the vendor (strong signal) or of the combined
// vendor+notes text (weaker signal).
type Table map[string][]string

// DefaultTable returns the built-in category taxonomy with English and
// transliterated-Urdu keyword variants.
func DefaultTable() Table {
	return Table{
		"Food":      {"kfc", "mcdonald", "restaurant", "cafe", "food", "burger", "pizza", "biryani", "khana", "hotel"},
		"Fuel":      {"pso", "shell", "total", "petrol", "fuel", "gas", "cng"},
		"Transport": {"uber", "careem", "taxi", "transport", "bus", "metro", "rickshaw", "sawari"},
		"Utilities": {"electricity", "gas", "water", "internet", "phone", "bill", "bijli", "pani", "k-electric", "ptcl"},
		"Rent":      {"rent", "lease", "housing", "kiraya"},
		"Office":    {"stationery", "office", "supplies", "printer"},
		"Medical":   {"pharmacy", "hospital", "clinic", "doctor", "medical", "dawai"},
		"Education": {"school", "college", "university", "tuition", "academy", "books"},
		"Business":  {"software", "hosting", "domain", "advertising", "freelance"},
		"Charity":   {"donation", "charity", "zakat", "sadqa"},
		Other:       {},
	}
}

// Categories returns the table's category names sorted, with Other last.
func (t Table) Categories() []string {
	names := make([]string, 0, len(t))
	hasOther := false
	for name := range t {
		if name == Other {
			hasOther = true
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if hasOther {
		names = append(names, Other)
	}
	return names
}

// Result carries the assignment plus the evidence behind it.
type Result struct {
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Suggestion is a Result extended with runner-up categories.
type Suggestion struct {
	Result
	Alternatives []string `json:"alternative_categories,omitempty"`
}

// Categorizer scores records against a keyword table.
type Categorizer struct {
	table Table
}

// New builds a categorizer over the given table. A nil table uses the
// default taxonomy.
func New(table Table) *Categorizer {
	if table == nil {
		table = DefaultTable()
	}
	return &Categorizer{table: table}
}

type categoryScore struct {
	name     string
	score    int
	matches  int
	keywords []string
}

// scoreAll awards 10 points per keyword found in the vendor text and 5 per
// keyword found only in the combined vendor+notes text.
func (c *Categorizer) scoreAll(vendor, notes string) []categoryScore {
	vendorLower := strings.ToLower(vendor)
	combined := vendorLower + " " + strings.ToLower(notes)

	var scored []categoryScore
	for category, keywords := range c.table {
		if category == Other {
			continue
		}
		cs := categoryScore{name: category}
		for _, kw := range keywords {
			kwLower := strings.ToLower(kw)
			switch {
			case strings.Contains(vendorLower, kwLower):
				cs.score += 10
				cs.matches++
				cs.keywords = append(cs.keywords, kw)
			case strings.Contains(combined, kwLower):
				cs.score += 5
				cs.matches++
				cs.keywords = append(cs.keywords, kw)
			}
		}
		if cs.matches > 0 {
			scored = append(scored, cs)
		}
	}

	// Highest score wins, match count breaks ties, then name for determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].matches != scored[j].matches {
			return scored[i].matches > scored[j].matches
		}
		return scored[i].name < scored[j].name
	})
	return scored
}

// Categorize picks the best category for the vendor/notes pair.
func (c *Categorizer) Categorize(vendor, notes string) Result {
	scored := c.scoreAll(vendor, notes)
	if len(scored) == 0 {
		return Result{
			Category:   Other,
			Confidence: otherConfidence,
			Reasoning:  "no keyword matched any category",
		}
	}

	best := scored[0]
	confidence := 0.6 + 0.1*float64(best.matches) + 0.01*float64(best.score)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return Result{
		Category:        best.name,
		Confidence:      confidence,
		Reasoning:       "matched keywords: " + strings.Join(best.keywords, ", "),
		MatchedKeywords: best.keywords,
	}
}

// SuggestCategory returns the best assignment plus up to three alternative
// categories whose keyword lists also matched.
func (c *Categorizer) SuggestCategory(vendor, notes string) Suggestion {
	scored := c.scoreAll(vendor, notes)
	sug := Suggestion{Result: c.Categorize(vendor, notes)}
	for _, cs := range scored {
		if cs.name == sug.Category {
			continue
		}
		sug.Alternatives = append(sug.Alternatives, cs.name)
		if len(sug.Alternatives) == 3 {
			break
		}
	}
	return sug
}
