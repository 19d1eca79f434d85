package txledger

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded records in memory. It goes through the same codec
// as the durable stores so a "restart" (new Ledger over the same MemoryStore)
// behaves like a reload from disk.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// LoadAll decodes every stored record
func (s *MemoryStore) LoadAll(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.data))
	for id, raw := range s.data {
		r, err := DecodeRecord(id, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Put stores the encoded record under its id
func (s *MemoryStore) Put(_ context.Context, r Record) error {
	raw, err := EncodeRecord(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[r.ID] = raw
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
