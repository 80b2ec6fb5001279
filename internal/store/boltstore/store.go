// Package boltstore persists records in a local BoltDB file. Records are
// gob-encoded under a fixed bucket keyed by big-endian ID, so a cursor walk
// returns them in ID order for free.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/store"
)

var (
	recordsBucket = []byte("records")
	balanceBucket = []byte("balance")

	balanceKey = []byte("ledger")
)

// Store is a BoltDB-backed implementation of store.Store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file at path and ensures the
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return errors.Wrap(err, "create records bucket")
		}
		if _, err := tx.CreateBucketIfNotExists(balanceBucket); err != nil {
			return errors.Wrap(err, "create balance bucket")
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create assigns the bucket's next sequence number as the record ID and
// stores a copy.
func (s *Store) Create(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	cp := rec.Clone()
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return errors.Wrap(err, "next sequence")
		}
		cp.ID = int64(seq)
		return putRecord(b, cp)
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	var rec *domain.TransactionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get(recordKey(id))
		if v == nil {
			return store.ErrNotFound
		}
		var err error
		rec, err = decodeRecord(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces an existing record.
func (s *Store) Update(ctx context.Context, rec *domain.TransactionRecord) error {
	cp := rec.Clone()
	cp.UpdatedAt = time.Now().UTC()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b.Get(recordKey(cp.ID)) == nil {
			return store.ErrNotFound
		}
		return putRecord(b, cp)
	})
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		key := recordKey(id)
		if b.Get(key) == nil {
			return store.ErrNotFound
		}
		return errors.Wrapf(b.Delete(key), "delete record %d", id)
	})
}

// List walks the records bucket in key (= ID) order, applying the filter.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]*domain.TransactionRecord, error) {
	var result []*domain.TransactionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if !matches(rec, filter) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			result = append(result, rec)
			if filter.Limit > 0 && len(result) == filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []*domain.TransactionRecord{}
	}
	return result, nil
}

// GetBalance returns the stored balance, or a zero balance if none was set.
func (s *Store) GetBalance(ctx context.Context) (*domain.Balance, error) {
	bal := &domain.Balance{
		OpeningBalance: decimal.Zero,
		CurrentBalance: decimal.Zero,
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(balanceBucket).Get(balanceKey)
		if v == nil {
			return nil
		}
		dec := gob.NewDecoder(bytes.NewReader(v))
		return errors.Wrap(dec.Decode(bal), "decode balance")
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// SaveBalance stores the balance.
func (s *Store) SaveBalance(ctx context.Context, b *domain.Balance) error {
	cp := *b
	cp.LastUpdated = time.Now().UTC()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&cp); err != nil {
		return errors.Wrap(err, "encode balance")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return errors.Wrap(tx.Bucket(balanceBucket).Put(balanceKey, buf.Bytes()), "put balance")
	})
}

func recordKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func putRecord(b *bolt.Bucket, rec *domain.TransactionRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return errors.Wrapf(err, "encode record %d", rec.ID)
	}
	return errors.Wrapf(b.Put(recordKey(rec.ID), buf.Bytes()), "put record %d", rec.ID)
}

func decodeRecord(v []byte) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	dec := gob.NewDecoder(bytes.NewReader(v))
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return &rec, nil
}

func matches(rec *domain.TransactionRecord, filter store.Filter) bool {
	if filter.NeedsReview != nil && rec.NeedsReview != *filter.NeedsReview {
		return false
	}
	if filter.IsDuplicate != nil && rec.IsDuplicate != *filter.IsDuplicate {
		return false
	}
	if filter.Category != "" && rec.Category != filter.Category {
		return false
	}
	return true
}
