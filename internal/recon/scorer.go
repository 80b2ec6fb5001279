// Package recon implements fuzzy multi-field similarity scoring and duplicate
// detection over transaction records. The same extraction run often produces
// the same purchase twice (receipt photo plus bank statement line), so matches
// are scored per field and combined with weights instead of demanding equality.
package recon

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
)

// Weights combine the per-field scores into the overall score. Amount and
// vendor together are the strongest duplicate signal; date corroborates;
// category is weakest because unrelated transactions share categories all
// the time.
type Weights struct {
	Amount   float64 `yaml:"amount"`
	Vendor   float64 `yaml:"vendor"`
	Date     float64 `yaml:"date"`
	Category float64 `yaml:"category"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Amount: 0.40, Vendor: 0.40, Date: 0.15, Category: 0.05}
}

// Breakdown holds the per-field similarity scores, each in [0, 100].
type Breakdown struct {
	Amount   float64 `json:"amount"`
	Vendor   float64 `json:"vendor"`
	Date     float64 `json:"date"`
	Category float64 `json:"category"`
}

// Similarity is the result of scoring one record pair.
type Similarity struct {
	Overall   float64   `json:"overall"` // weighted sum, [0, 100]
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer computes field-level and overall similarity between two records.
type Scorer struct {
	weights Weights
	dates   *dateparse.Normalizer
}

// NewScorer builds a scorer. A nil normalizer falls back to the default
// day-first one.
func NewScorer(weights Weights, dates *dateparse.Normalizer) *Scorer {
	if dates == nil {
		dates = dateparse.Default()
	}
	return &Scorer{weights: weights, dates: dates}
}

// Score compares two records field by field and combines the results.
func (s *Scorer) Score(a, b *domain.TransactionRecord) Similarity {
	br := Breakdown{
		Amount:   s.amountScore(a, b),
		Vendor:   vendorScore(a.Vendor, b.Vendor),
		Date:     s.dateScore(a.Date, b.Date),
		Category: categoryScore(a.Category, b.Category),
	}
	overall := br.Amount*s.weights.Amount +
		br.Vendor*s.weights.Vendor +
		br.Date*s.weights.Date +
		br.Category*s.weights.Category
	return Similarity{Overall: overall, Breakdown: br}
}

// amountScore maps the percentage difference between the two representative
// magnitudes onto tiered scores. Identical magnitudes are a perfect match;
// within 1% is still effectively exact given rounding in extraction output.
func (s *Scorer) amountScore(a, b *domain.TransactionRecord) float64 {
	amtA, okA := a.Amount()
	amtB, okB := b.Amount()
	if !okA || !okB {
		return 0
	}
	if amtA.Equal(amtB) {
		return 100
	}

	fa, _ := amtA.Abs().Float64()
	fb, _ := amtB.Abs().Float64()
	max := fa
	if fb > max {
		max = fb
	}
	if max == 0 {
		return 0
	}
	diff := fa - fb
	if diff < 0 {
		diff = -diff
	}
	pct := diff / max * 100

	switch {
	case pct <= 1:
		return 100
	case pct <= 5:
		return 90
	case pct <= 10:
		return 70
	default:
		score := 100 - 1.5*pct
		if score < 0 {
			return 0
		}
		return score
	}
}

// vendorScore is the Levenshtein similarity ratio of the case-folded, trimmed
// vendor names, scaled to [0, 100].
func vendorScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions) * 100
}

// dateScore rewards calendar proximity: same day 100, then 85/70/50 for one,
// two, three days apart, decaying by 15 per day beyond that.
func (s *Scorer) dateScore(a, b string) float64 {
	da, okA := s.dates.Parse(a)
	db, okB := s.dates.Parse(b)
	if !okA || !okB {
		return 0
	}
	switch gap := dateparse.DaysBetween(da, db); gap {
	case 0:
		return 100
	case 1:
		return 85
	case 2:
		return 70
	case 3:
		return 50
	default:
		score := 100 - 15*float64(gap)
		if score < 0 {
			return 0
		}
		return score
	}
}

func categoryScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	return 0
}
