package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loworbit/txtrack/internal/platform/refresher"
)

const (
	// DefaultStatsTTL bounds how long a refresh result is served without a re-read
	DefaultStatsTTL = 5 * time.Minute

	// StatsKeyPrefix is the prefix for stat cache keys
	StatsKeyPrefix = "stats:"
)

// StatCache is a Redis-backed refresher.Cache
type StatCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatCache creates a stat cache. A ttl <= 0 uses DefaultStatsTTL.
func NewStatCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "stat_cache"),
	}
}

// cachedStats is the stored layout; big.Int values are serialized as decimal strings
type cachedStats struct {
	Account     string            `json:"account"`
	ChainID     int64             `json:"chain_id"`
	Values      map[string]string `json:"values"`
	BlockNumber uint64            `json:"block_number"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// Get retrieves cached stats or refresher.ErrStatsNotFound
func (c *StatCache) Get(ctx context.Context, account string, chainID int64) (*refresher.Stats, error) {
	key := statsKey(account, chainID)

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return nil, refresher.ErrStatsNotFound
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get cached stats: %w", err)
	}

	var cached cachedStats
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}

	stats := &refresher.Stats{
		Account:     cached.Account,
		ChainID:     cached.ChainID,
		Values:      make(map[refresher.Quantity]*big.Int, len(cached.Values)),
		BlockNumber: cached.BlockNumber,
		RefreshedAt: cached.RefreshedAt,
	}
	for q, s := range cached.Values {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse cached %s: invalid number", q)
		}
		stats.Values[refresher.Quantity(q)] = v
	}

	return stats, nil
}

// Set stores stats with the cache TTL
func (c *StatCache) Set(ctx context.Context, stats *refresher.Stats) error {
	key := statsKey(stats.Account, stats.ChainID)

	cached := cachedStats{
		Account:     stats.Account,
		ChainID:     stats.ChainID,
		Values:      make(map[string]string, len(stats.Values)),
		BlockNumber: stats.BlockNumber,
		RefreshedAt: stats.RefreshedAt.UTC(),
	}
	for q, v := range stats.Values {
		cached.Values[string(q)] = v.String()
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to set cached stats: %w", err)
	}

	return nil
}

// Delete removes cached stats
func (c *StatCache) Delete(ctx context.Context, account string, chainID int64) error {
	return c.client.Del(ctx, statsKey(account, chainID)).Err()
}

func statsKey(account string, chainID int64) string {
	return fmt.Sprintf("%s%d:%s", StatsKeyPrefix, chainID, strings.ToLower(account))
}

var _ refresher.Cache = (*StatCache)(nil)
