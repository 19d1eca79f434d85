package chain

import "sync"

// BlockNumbers tracks the highest block number observed per chain.
// Values never decrease: a lagging node reporting an older head is ignored.
type BlockNumbers struct {
	mu     sync.RWMutex
	latest map[int64]uint64
}

func NewBlockNumbers() *BlockNumbers {
	return &BlockNumbers{latest: make(map[int64]uint64)}
}

// Observe records n for chainID and returns the resulting maximum
func (b *BlockNumbers) Observe(chainID int64, n uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.latest[chainID]; ok && cur >= n {
		return cur
	}
	b.latest[chainID] = n
	return n
}

// Get returns the highest block seen on chainID
func (b *BlockNumbers) Get(chainID int64) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.latest[chainID]
	return n, ok
}
