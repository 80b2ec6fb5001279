package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
)

// RecordRow mirrors the recon.records table schema.
type RecordRow struct {
	ID int64 `bigquery:"id"` // REQUIRED

	Date       string            `bigquery:"date"`        // REQUIRED, raw string as submitted
	ParsedDate bigquery.NullDate `bigquery:"parsed_date"` // NULLABLE

	Vendor string `bigquery:"vendor"` // REQUIRED

	Income  *big.Rat `bigquery:"income"`  // REQUIRED NUMERIC
	Expense *big.Rat `bigquery:"expense"` // REQUIRED NUMERIC

	TransactionType string `bigquery:"transaction_type"` // NULLABLE
	Currency        string `bigquery:"currency"`         // REQUIRED
	Category        string `bigquery:"category"`         // NULLABLE

	Notes bigquery.NullString `bigquery:"notes"` // NULLABLE

	Confidence bigquery.NullJSON `bigquery:"confidence"` // NULLABLE JSON, field -> score

	IsDuplicate bigquery.NullBool  `bigquery:"is_duplicate"`
	DuplicateOf bigquery.NullInt64 `bigquery:"duplicate_of"`
	NeedsReview bigquery.NullBool  `bigquery:"needs_review"`

	RemainingBalance *big.Rat `bigquery:"remaining_balance"` // NULLABLE NUMERIC

	SourceFile bigquery.NullString `bigquery:"source_file"` // NULLABLE
	RawText    bigquery.NullString `bigquery:"raw_text"`    // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// BalanceRow mirrors the single-row recon.balance table.
type BalanceRow struct {
	Key            string    `bigquery:"key"` // always "ledger"
	OpeningBalance *big.Rat  `bigquery:"opening_balance"`
	CurrentBalance *big.Rat  `bigquery:"current_balance"`
	TotalIncome    *big.Rat  `bigquery:"total_income"`
	TotalExpense   *big.Rat  `bigquery:"total_expense"`
	UpdatedTS      time.Time `bigquery:"updated_ts"`
}

func rowFromRecord(rec *domain.TransactionRecord, dates *dateparse.Normalizer) (*RecordRow, error) {
	row := &RecordRow{
		ID:              rec.ID,
		Date:            rec.Date,
		Vendor:          rec.Vendor,
		Income:          rec.Income.Rat(),
		Expense:         rec.Expense.Rat(),
		TransactionType: string(rec.Type),
		Currency:        rec.Currency,
		Category:        rec.Category,
		CreatedTS:       rec.CreatedAt,
	}

	if t, ok := dates.Parse(rec.Date); ok {
		row.ParsedDate = bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
	}
	if rec.Notes != "" {
		row.Notes = bigquery.NullString{StringVal: rec.Notes, Valid: true}
	}
	if len(rec.Confidence) > 0 {
		data, err := json.Marshal(rec.Confidence)
		if err != nil {
			return nil, fmt.Errorf("marshal confidence for record %d: %w", rec.ID, err)
		}
		row.Confidence = bigquery.NullJSON{JSONVal: string(data), Valid: true}
	}
	row.IsDuplicate = bigquery.NullBool{Bool: rec.IsDuplicate, Valid: true}
	if rec.DuplicateOf != 0 {
		row.DuplicateOf = bigquery.NullInt64{Int64: rec.DuplicateOf, Valid: true}
	}
	row.NeedsReview = bigquery.NullBool{Bool: rec.NeedsReview, Valid: true}
	if !rec.RemainingBalance.IsZero() {
		row.RemainingBalance = rec.RemainingBalance.Rat()
	}
	if rec.SourceFile != "" {
		row.SourceFile = bigquery.NullString{StringVal: rec.SourceFile, Valid: true}
	}
	if rec.RawText != "" {
		row.RawText = bigquery.NullString{StringVal: rec.RawText, Valid: true}
	}
	if !rec.UpdatedAt.IsZero() {
		row.UpdatedTS = bigquery.NullTimestamp{Timestamp: rec.UpdatedAt, Valid: true}
	}

	return row, nil
}

func recordFromRow(row *RecordRow) (*domain.TransactionRecord, error) {
	rec := &domain.TransactionRecord{
		ID:        row.ID,
		Date:      row.Date,
		Vendor:    row.Vendor,
		Type:      domain.TransactionType(row.TransactionType),
		Currency:  row.Currency,
		Category:  row.Category,
		CreatedAt: row.CreatedTS,
	}

	rec.Income = decimalFromRat(row.Income)
	rec.Expense = decimalFromRat(row.Expense)

	if row.Notes.Valid {
		rec.Notes = row.Notes.StringVal
	}
	if row.Confidence.Valid && row.Confidence.JSONVal != "" {
		conf := domain.ConfidenceVector{}
		raw := row.Confidence.JSONVal
		if err := json.Unmarshal([]byte(raw), &conf); err != nil {
			return nil, fmt.Errorf("unmarshal confidence for record %d: %w", row.ID, err)
		}
		rec.Confidence = conf
	}
	if row.IsDuplicate.Valid {
		rec.IsDuplicate = row.IsDuplicate.Bool
	}
	if row.DuplicateOf.Valid {
		rec.DuplicateOf = row.DuplicateOf.Int64
	}
	if row.NeedsReview.Valid {
		rec.NeedsReview = row.NeedsReview.Bool
	}
	if row.RemainingBalance != nil {
		rec.RemainingBalance = decimalFromRat(row.RemainingBalance)
	}
	if row.SourceFile.Valid {
		rec.SourceFile = row.SourceFile.StringVal
	}
	if row.RawText.Valid {
		rec.RawText = row.RawText.StringVal
	}
	if row.UpdatedTS.Valid {
		rec.UpdatedAt = row.UpdatedTS.Timestamp
	}

	return rec, nil
}

// decimalFromRat converts a NUMERIC value back to a decimal, preserving up to
// 9 fractional digits (the NUMERIC scale).
func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Zero
	}
	return d
}
