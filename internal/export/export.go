// Package export renders reconciled snapshots as CSV or JSON and optionally
// ships the result to a Cloud Storage bucket.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// csvHeader is the column order of CSV exports.
var csvHeader = []string{
	"id", "date", "vendor", "income", "expense", "type", "currency",
	"category", "confidence", "is_duplicate", "needs_review",
	"remaining_balance", "notes",
}

// WriteCSV writes records in ID order, closing with a TOTAL summary row.
func WriteCSV(w io.Writer, records []*domain.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}

	totalIncome := decimal.Zero
	totalExpense := decimal.Zero
	for _, rec := range records {
		totalIncome = totalIncome.Add(rec.Income)
		totalExpense = totalExpense.Add(rec.Expense)

		row := []string{
			fmt.Sprintf("%d", rec.ID),
			rec.Date,
			rec.Vendor,
			rec.Income.String(),
			rec.Expense.String(),
			string(rec.Type),
			rec.Currency,
			rec.Category,
			fmt.Sprintf("%.2f", rec.Confidence.Mean()),
			fmt.Sprintf("%t", rec.IsDuplicate),
			fmt.Sprintf("%t", rec.NeedsReview),
			rec.RemainingBalance.String(),
			rec.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteCSV: record %d: %w", rec.ID, err)
		}
	}

	total := []string{
		"", "", "TOTAL",
		totalIncome.String(),
		totalExpense.String(),
		"", "", "", "", "", "",
		totalIncome.Sub(totalExpense).String(),
		"",
	}
	if err := cw.Write(total); err != nil {
		return fmt.Errorf("WriteCSV: total row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// Snapshot is the JSON export document.
type Snapshot struct {
	ExportedAt   time.Time                   `json:"exported_at"`
	Count        int                         `json:"count"`
	TotalIncome  decimal.Decimal             `json:"total_income"`
	TotalExpense decimal.Decimal             `json:"total_expense"`
	Records      []*domain.TransactionRecord `json:"records"`
}

// WriteJSON writes the snapshot document with indentation.
func WriteJSON(w io.Writer, records []*domain.TransactionRecord, now time.Time) error {
	snap := Snapshot{
		ExportedAt:   now.UTC(),
		Count:        len(records),
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Records:      records,
	}
	if snap.Records == nil {
		snap.Records = []*domain.TransactionRecord{}
	}
	for _, rec := range records {
		snap.TotalIncome = snap.TotalIncome.Add(rec.Income)
		snap.TotalExpense = snap.TotalExpense.Add(rec.Expense)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}

// Write dispatches on format.
func Write(w io.Writer, format Format, records []*domain.TransactionRecord, now time.Time) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records, now)
	default:
		return fmt.Errorf("Write: unknown format %q", format)
	}
}
