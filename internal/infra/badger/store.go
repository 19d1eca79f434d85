// Package badger persists ledger records in an embedded badger database.
package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// keyPrefix namespaces ledger records inside a shared database
const keyPrefix = "tx/"

// Store implements txledger.Store over badger
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a database at path. An empty path opens an
// in-memory database that is lost on Close.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already opened database
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll decodes every record under the ledger prefix
func (s *Store) LoadAll(ctx context.Context) ([]txledger.Record, error) {
	var records []txledger.Record
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				r, err := txledger.DecodeRecord(id, val)
				if err != nil {
					return err
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return records, nil
}

// Put writes the whole record under its id
func (s *Store) Put(_ context.Context, r txledger.Record) error {
	raw, err := txledger.EncodeRecord(r)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to put record %s: %w", r.ID, err)
	}
	return nil
}

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

var _ txledger.Store = (*Store)(nil)

// Ping reports whether the database is still open
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}
