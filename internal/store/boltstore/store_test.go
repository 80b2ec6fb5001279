package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recon.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &domain.TransactionRecord{
		Date:     "15/03/2024",
		Vendor:   "K-Electric",
		Expense:  decimal.NewFromFloat(4520.50),
		Type:     domain.TransactionTypeExpense,
		Currency: "PKR",
		Category: "Utilities",
		Confidence: domain.ConfidenceVector{
			domain.FieldVendor: 0.95,
			domain.FieldAmount: 0.9,
		},
	}

	created, err := s.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Create did not assign an ID")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Vendor != "K-Electric" || got.Category != "Utilities" {
		t.Errorf("record fields lost in round trip: %+v", got)
	}
	if !got.Expense.Equal(decimal.NewFromFloat(4520.50)) {
		t.Errorf("expense lost precision: %s", got.Expense)
	}
	if got.Confidence[domain.FieldVendor] != 0.95 {
		t.Errorf("confidence vector lost in round trip: %+v", got.Confidence)
	}
}

func TestSequentialIDsSurviveDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, _ := s.Create(ctx, &domain.TransactionRecord{Vendor: "a", Currency: "PKR"})
	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	second, err := s.Create(ctx, &domain.TransactionRecord{Vendor: "b", Currency: "PKR"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected a fresh ID after delete, got %d (first was %d)", second.ID, first.ID)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vendors := []string{"KFC", "Careem", "KFC"}
	for i, v := range vendors {
		rec := &domain.TransactionRecord{Vendor: v, Currency: "PKR", IsDuplicate: i == 2}
		if _, err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := s.List(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for i, rec := range all {
		if rec.ID != int64(i+1) {
			t.Errorf("expected ID order [1 2 3], record %d has ID %d", i, rec.ID)
		}
	}

	dup := true
	dups, err := s.List(ctx, store.Filter{IsDuplicate: &dup})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dups) != 1 || dups[0].ID != 3 {
		t.Errorf("expected only record 3 flagged duplicate, got %v", dups)
	}
}

func TestMissingRecordErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, &domain.TransactionRecord{ID: 99}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestBalancePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recon.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = s.SaveBalance(ctx, &domain.Balance{
		OpeningBalance: decimal.NewFromInt(5000),
		CurrentBalance: decimal.NewFromInt(4200),
	})
	if err != nil {
		t.Fatalf("SaveBalance: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !got.OpeningBalance.Equal(decimal.NewFromInt(5000)) || !got.CurrentBalance.Equal(decimal.NewFromInt(4200)) {
		t.Errorf("balance lost across reopen: %+v", got)
	}
}
