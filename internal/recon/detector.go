package recon

import (
	"fmt"
	"sort"

	"github.com/dvloznov/recon-engine/internal/domain"
)

// DefaultThreshold is the ingestion-time duplicate cutoff on the overall
// similarity score.
const DefaultThreshold = 70.0

// Match is one existing record that scored at or above the threshold against
// a candidate.
type Match struct {
	MatchedID int64                     `json:"matched_id"`
	Matched   *domain.TransactionRecord `json:"matched_record"`
	Score     float64                   `json:"score"`
	Breakdown Breakdown                 `json:"breakdown"`
}

// Detector finds likely duplicates of a record within a set. It is purely
// functional: callers decide whether and how to mark records as duplicates.
type Detector struct {
	scorer *Scorer
}

// NewDetector wraps a scorer.
func NewDetector(scorer *Scorer) *Detector {
	return &Detector{scorer: scorer}
}

// FindDuplicates compares candidate against every existing record and returns
// the matches scoring at or above threshold, sorted by descending score with
// ties broken by the lower matched id. The candidate's own id (if any) is
// skipped.
func (d *Detector) FindDuplicates(candidate *domain.TransactionRecord, existing []*domain.TransactionRecord, threshold float64) []Match {
	var matches []Match
	for _, rec := range existing {
		if candidate.ID != 0 && rec.ID == candidate.ID {
			continue
		}
		sim := d.scorer.Score(candidate, rec)
		if sim.Overall >= threshold {
			matches = append(matches, Match{
				MatchedID: rec.ID,
				Matched:   rec,
				Score:     sim.Overall,
				Breakdown: sim.Breakdown,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].MatchedID < matches[j].MatchedID
	})
	return matches
}

// BatchCheck runs pairwise duplicate detection over the whole set, comparing
// each record against all others. O(n²) over the set; transaction volumes
// here are bookkeeping-scale, so the simplicity wins.
func (d *Detector) BatchCheck(records []*domain.TransactionRecord, threshold float64) map[int64][]Match {
	result := make(map[int64][]Match, len(records))
	for _, rec := range records {
		others := make([]*domain.TransactionRecord, 0, len(records)-1)
		for _, o := range records {
			if o != rec {
				others = append(others, o)
			}
		}
		if matches := d.FindDuplicates(rec, others, threshold); len(matches) > 0 {
			result[rec.ID] = matches
		}
	}
	return result
}

// BestMatch returns the single match a record should be marked duplicate of:
// the highest score, ties already resolved toward the lowest matched id by
// FindDuplicates ordering. ok is false when matches is empty.
func BestMatch(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// Summary renders a short human-readable report of the top matches.
func Summary(matches []Match) string {
	if len(matches) == 0 {
		return "No duplicates found"
	}
	s := fmt.Sprintf("Found %d potential duplicate(s):", len(matches))
	for i, m := range matches {
		if i == 3 {
			break
		}
		amt, _ := m.Matched.Amount()
		s += fmt.Sprintf("\n%d. Entry #%d - %s (%s %s) - Similarity: %.0f%%",
			i+1, m.MatchedID, m.Matched.Vendor, amt.String(), m.Matched.Currency, m.Score)
	}
	return s
}
