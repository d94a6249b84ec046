// Copyright 2025 Alpen Labs

package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	dbm "github.com/cometbft/cometbft-db"
)

// ErrConflict is returned by a transaction function to request a retry:
// the backend detected (or the caller detected via a version check)
// that the read set changed underneath the write.
var ErrConflict = errors.New("store: transactional conflict, retry")

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// RetryConfig bounds how many times a transaction is retried on
// ErrConflict and the backoff between attempts, per spec.md §5's
// "run this closure transactionally ... retrying on conflict up to N
// times with constant or exponential backoff" primitive.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Exponential bool
}

// DefaultRetryConfig is a conservative bound suitable for the MMR and
// client-state writers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseBackoff: 10 * time.Millisecond, Exponential: true}
}

// Tx is the write surface handed to a transaction function: writes are
// staged in a batch and only become visible on successful commit.
type Tx struct {
	db    dbm.DB
	batch dbm.Batch
}

// Get reads straight through to the underlying store (read-committed:
// it does not see this transaction's own uncommitted writes).
func (t *Tx) Get(key []byte) ([]byte, error) {
	v, err := t.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set stages a write.
func (t *Tx) Set(key, value []byte) error {
	return t.batch.Set(key, value)
}

// Delete stages a deletion.
func (t *Tx) Delete(key []byte) error {
	return t.batch.Delete(key)
}

// TxFunc is the unit of work run transactionally across the store's trees.
type TxFunc func(tx *Tx) error

// Store wraps an ordered KV backend (cometbft-db) with a transactional
// multi-tree commit primitive. Modeled on pkg/kvdb/adapter.go's
// dbm.DB wrapping and pkg/ledger/store.go's single-writer assumption:
// RunTransaction serializes commits from one goroutine at a time by
// design — callers composing concurrent writers must shard by key
// space or externally synchronize, the same discipline LedgerStore
// documents for the consensus commit thread.
type Store struct {
	db     dbm.DB
	logger *log.Logger
}

// New wraps db. If logger is nil, a default stdout logger is created,
// mirroring NewNonceTracker/NewKeyManager's defaulting pattern.
func New(db dbm.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stdout, "[Store] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Store{db: db, logger: logger}
}

// Get reads a single key directly (outside any transaction).
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// Iterator exposes ordered range iteration directly over the backend,
// used by slot-index and peak-prefix scans.
func (s *Store) Iterator(start, end []byte) (dbm.Iterator, error) {
	return s.db.Iterator(start, end)
}

// RunTransaction executes fn inside a fresh batch, committing with
// WriteSync on success. If fn returns ErrConflict (or the commit
// itself fails), the attempt is retried with backoff, up to
// cfg.MaxAttempts attempts in total; any other error aborts immediately
// without retry.
func (s *Store) RunTransaction(fn TxFunc, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	backoff := cfg.BaseBackoff

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		batch := s.db.NewBatch()
		tx := &Tx{db: s.db, batch: batch}

		err := fn(tx)
		if err != nil {
			batch.Close()
			if errors.Is(err, ErrConflict) {
				lastErr = err
				s.logger.Printf("⚠️ transaction conflict on attempt %d/%d, retrying", attempt+1, cfg.MaxAttempts)
				s.sleepBackoff(&backoff, cfg.Exponential)
				continue
			}
			return err
		}

		if err := batch.WriteSync(); err != nil {
			batch.Close()
			lastErr = fmt.Errorf("store: commit failed: %w", err)
			s.logger.Printf("⚠️ transaction commit failed on attempt %d/%d: %v", attempt+1, cfg.MaxAttempts, err)
			s.sleepBackoff(&backoff, cfg.Exponential)
			continue
		}
		batch.Close()
		return nil
	}
	return fmt.Errorf("store: transaction exhausted %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func (s *Store) sleepBackoff(backoff *time.Duration, exponential bool) {
	time.Sleep(*backoff)
	if exponential {
		*backoff *= 2
	}
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.db.Close()
}
