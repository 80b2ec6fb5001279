package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
)

func sampleRecords() []*domain.TransactionRecord {
	return []*domain.TransactionRecord{
		{
			ID:       1,
			Date:     "2024-06-01",
			Vendor:   "Salary",
			Income:   decimal.NewFromInt(50000),
			Type:     domain.TransactionTypeIncome,
			Currency: "PKR",
			Category: "Business",
		},
		{
			ID:       2,
			Date:     "2024-06-03",
			Vendor:   "KFC Johar Town",
			Expense:  decimal.NewFromInt(1450),
			Type:     domain.TransactionTypeExpense,
			Currency: "PKR",
			Category: "Food",
			Confidence: domain.ConfidenceVector{
				domain.FieldVendor: 0.9,
				domain.FieldAmount: 0.9,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}

	// Header + 2 records + TOTAL row.
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][2] != "vendor" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "Salary" || rows[2][2] != "KFC Johar Town" {
		t.Errorf("records out of order: %v / %v", rows[1], rows[2])
	}

	total := rows[3]
	if total[2] != "TOTAL" {
		t.Fatalf("expected TOTAL marker, got %q", total[2])
	}
	if total[3] != "50000" || total[4] != "1450" {
		t.Errorf("totals = income %q expense %q", total[3], total[4])
	}
	if total[11] != "48550" {
		t.Errorf("net total = %q, want 48550", total[11])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and TOTAL only, got %d rows", len(rows))
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	if err := WriteJSON(&buf, sampleRecords(), now); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if snap.Count != 2 {
		t.Errorf("count = %d, want 2", snap.Count)
	}
	if !snap.TotalIncome.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("total income = %s", snap.TotalIncome)
	}
	if !snap.ExportedAt.Equal(now) {
		t.Errorf("exported_at = %s, want %s", snap.ExportedAt, now)
	}
	if len(snap.Records) != 2 || snap.Records[1].Vendor != "KFC Johar Town" {
		t.Errorf("records lost in export: %+v", snap.Records)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("xml"), nil, time.Now())
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	got := ObjectName(FormatCSV, now)
	want := "exports/records-20240615-093000.csv"
	if got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}
