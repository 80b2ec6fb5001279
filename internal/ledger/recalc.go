// Package ledger recomputes running balances and aggregate totals over the
// full transaction set. Every mutation triggers a full recompute: with
// deletions and amount edits in the mix, incremental maintenance is a bug
// farm, and bookkeeping-scale sets make O(n log n) a non-issue.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
)

// Result is one full recalculation pass.
type Result struct {
	// Records are clones of the inputs in chronological order, each with its
	// RemainingBalance written.
	Records []*domain.TransactionRecord
	Totals  domain.Balance
}

// Recalculator orders records and walks them accumulating the balance.
type Recalculator struct {
	dates *dateparse.Normalizer
	now   func() time.Time
}

// New builds a recalculator. Nil arguments fall back to defaults.
func New(dates *dateparse.Normalizer, now func() time.Time) *Recalculator {
	if dates == nil {
		dates = dateparse.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Recalculator{dates: dates, now: now}
}

// Recalculate sorts the records by (date, id) ascending and walks them,
// writing the post-transaction balance onto each clone. Records with
// unparseable dates sort before everything else so they are never silently
// dropped. The returned totals satisfy
//
//	current = opening + totalIncome - totalExpense
//
// and that identity is independently cross-checked against the final running
// value; a mismatch is a corruption bug, not a rounding artifact, and is
// returned as an error.
func (r *Recalculator) Recalculate(opening decimal.Decimal, records []*domain.TransactionRecord) (Result, error) {
	ordered := make([]*domain.TransactionRecord, len(records))
	for i, rec := range records {
		ordered[i] = rec.Clone()
	}

	type keyed struct {
		rec  *domain.TransactionRecord
		date time.Time
		ok   bool
	}
	keys := make([]keyed, len(ordered))
	for i, rec := range ordered {
		d, ok := r.dates.Parse(rec.Date)
		keys[i] = keyed{rec: rec, date: d, ok: ok}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ok != b.ok {
			return !a.ok // unparseable first, deterministically
		}
		if a.ok && !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		return a.rec.ID < b.rec.ID
	})

	balance := opening
	totalIncome := decimal.Zero
	totalExpense := decimal.Zero
	for i, k := range keys {
		balance = balance.Add(k.rec.Signed())
		k.rec.RemainingBalance = balance
		totalIncome = totalIncome.Add(k.rec.Income)
		totalExpense = totalExpense.Add(k.rec.Expense)
		ordered[i] = k.rec
	}

	current := opening.Add(totalIncome).Sub(totalExpense)
	if len(ordered) > 0 && !current.Equal(balance) {
		return Result{}, fmt.Errorf("Recalculate: totals mismatch: current %s != final running balance %s",
			current.String(), balance.String())
	}

	return Result{
		Records: ordered,
		Totals: domain.Balance{
			OpeningBalance: opening,
			CurrentBalance: current,
			TotalIncome:    totalIncome,
			TotalExpense:   totalExpense,
			LastUpdated:    r.now(),
		},
	}, nil
}
