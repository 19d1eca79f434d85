package refresher

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryCache keeps stats in process memory
type MemoryCache struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{stats: make(map[string]*Stats)}
}

func (c *MemoryCache) Get(_ context.Context, account string, chainID int64) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[cacheKey(account, chainID)]
	if !ok {
		return nil, ErrStatsNotFound
	}
	return s.clone(), nil
}

func (c *MemoryCache) Set(_ context.Context, stats *Stats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[cacheKey(stats.Account, stats.ChainID)] = stats.clone()
	return nil
}

func cacheKey(account string, chainID int64) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(account))
}
