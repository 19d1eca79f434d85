// Package redis holds the Redis-backed ledger store, stat cache and
// notification publisher.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// DefaultRecordsKey is the hash holding every ledger record, field = tx id
const DefaultRecordsKey = "txledger:records"

// TxStore implements txledger.Store over a single Redis hash
type TxStore struct {
	client *redis.Client
	key    string
}

// NewTxStore creates a store. An empty key uses DefaultRecordsKey.
func NewTxStore(client *redis.Client, key string) *TxStore {
	if key == "" {
		key = DefaultRecordsKey
	}
	return &TxStore{client: client, key: key}
}

// LoadAll decodes every field of the records hash
func (s *TxStore) LoadAll(ctx context.Context) ([]txledger.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := make([]txledger.Record, 0, len(fields))
	for id, raw := range fields {
		r, err := txledger.DecodeRecord(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Put writes the whole record under its id
func (s *TxStore) Put(ctx context.Context, r txledger.Record) error {
	raw, err := txledger.EncodeRecord(r)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, r.ID, raw).Err(); err != nil {
		return fmt.Errorf("failed to put record %s: %w", r.ID, err)
	}
	return nil
}

var _ txledger.Store = (*TxStore)(nil)
