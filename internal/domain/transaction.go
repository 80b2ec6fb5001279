package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionRecord is the unit every analyzer in this engine operates on.
// It is a domain struct, not a storage row; the store implementations map it
// into their own schemas.
//
// The Date field keeps the caller-supplied text verbatim: extraction output is
// noisy and a record with an unparseable date is still a valid record, it just
// scores lower and gets flagged for review.
type TransactionRecord struct {
	ID int64 `json:"id"` // 0 until the store assigns one

	Date     string          `json:"date"`
	Vendor   string          `json:"vendor"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Type     TransactionType `json:"transaction_type"`
	Currency string          `json:"currency"`
	Category string          `json:"category"`
	Notes    string          `json:"notes,omitempty"`

	Confidence ConfidenceVector `json:"confidence"`

	IsDuplicate bool  `json:"is_duplicate"`
	DuplicateOf int64 `json:"duplicate_of,omitempty"` // id of the original, set only when IsDuplicate

	NeedsReview bool `json:"needs_review"`

	// RemainingBalance is meaningful only after a ledger recalculation.
	RemainingBalance decimal.Decimal `json:"remaining_balance"`

	SourceFile string `json:"source_file,omitempty"`
	RawText    string `json:"raw_text,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Amount returns the representative magnitude of the record: income when the
// record carries income, otherwise the expense. The second return value is
// false when the record carries neither.
func (t *TransactionRecord) Amount() (decimal.Decimal, bool) {
	if t.Income.IsPositive() {
		return t.Income, true
	}
	if t.Expense.IsPositive() {
		return t.Expense, true
	}
	return decimal.Zero, false
}

// Signed returns income minus expense, the record's contribution to a running
// balance.
func (t *TransactionRecord) Signed() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Clone returns a deep copy. Analyzers never mutate their input; callers that
// want annotated records work on clones.
func (t *TransactionRecord) Clone() *TransactionRecord {
	c := *t
	c.Confidence = t.Confidence.Clone()
	return &c
}

// Confidence vector field names. Extraction providers report at least the
// first four; transaction_type is optional.
const (
	FieldVendor          = "vendor"
	FieldAmount          = "amount"
	FieldDate            = "date"
	FieldCategory        = "category"
	FieldTransactionType = "transaction_type"
)

// ConfidenceVector holds per-field extraction confidence in [0, 1].
type ConfidenceVector map[string]float64

// Mean returns the arithmetic mean of all scores, 0 for an empty vector.
func (c ConfidenceVector) Mean() float64 {
	if len(c) == 0 {
		return 0
	}
	var sum float64
	for _, v := range c {
		sum += v
	}
	return sum / float64(len(c))
}

// Clone returns a copy of the vector.
func (c ConfidenceVector) Clone() ConfidenceVector {
	if c == nil {
		return nil
	}
	out := make(ConfidenceVector, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ConfidenceLevel is a coarse human-readable band for a confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "High"
	ConfidenceMedium  ConfidenceLevel = "Medium"
	ConfidenceLow     ConfidenceLevel = "Low"
	ConfidenceVeryLow ConfidenceLevel = "Very Low"
)

// LevelForScore maps a [0,1] confidence score to its band.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceMedium
	case score >= 0.5:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// Balance is the singleton ledger balance. Current is always recomputed from
// the full transaction set, never drifted incrementally.
type Balance struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalIncome    decimal.Decimal `json:"total_income"`
	TotalExpense   decimal.Decimal `json:"total_expense"`
	LastUpdated    time.Time       `json:"last_updated"`
}
