// Package store defines the record-store boundary of the engine. The
// analyzers themselves never touch storage; they operate on snapshots the
// caller reads through these interfaces. Implementations live in the
// subpackages: inmemory (tests, CLI scratch), boltstore (local file) and
// bigquery (cloud warehouse).
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/recon-engine/internal/domain"
)

// ErrNotFound is returned when a record or balance does not exist.
var ErrNotFound = errors.New("store: not found")

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	NeedsReview *bool
	IsDuplicate *bool
	Category    string
	Limit       int
	Offset      int
}

// RecordStore is the persistence collaborator for transaction records.
// Implementations assign IDs on Create and must return copies: callers are
// free to mutate what they get back.
type RecordStore interface {
	Create(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error)
	Get(ctx context.Context, id int64) (*domain.TransactionRecord, error)
	Update(ctx context.Context, rec *domain.TransactionRecord) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter) ([]*domain.TransactionRecord, error)
}

// BalanceStore persists the singleton ledger balance.
type BalanceStore interface {
	GetBalance(ctx context.Context) (*domain.Balance, error)
	SaveBalance(ctx context.Context, b *domain.Balance) error
}

// Store combines both collaborators; every implementation here provides both.
type Store interface {
	RecordStore
	BalanceStore
}
