package txledger

import "context"

// Store is the durable key-value backing of the ledger.
// Keys are transaction ids; Put replaces the whole record.
type Store interface {
	LoadAll(ctx context.Context) ([]Record, error)
	Put(ctx context.Context, r Record) error
}
