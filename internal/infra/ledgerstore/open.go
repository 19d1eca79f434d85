// Package ledgerstore opens the ledger store backend named in configuration.
package ledgerstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/loworbit/txtrack/internal/infra/badger"
	"github.com/loworbit/txtrack/internal/infra/postgres"
	infraRedis "github.com/loworbit/txtrack/internal/infra/redis"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/pkg/config"
)

// Handle is an opened store with its health check and cleanup
type Handle struct {
	Store   txledger.Store
	Backend string
	Ping    func(ctx context.Context) error
	Close   func()
}

// Open opens the store selected by cfg.LedgerStore. redisClient is only used
// by the redis backend and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*Handle, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	switch cfg.LedgerStore {
	case config.StoreMemory:
		return &Handle{
			Store:   txledger.NewMemoryStore(),
			Backend: config.StoreMemory,
			Ping:    func(context.Context) error { return nil },
			Close:   func() {},
		}, nil

	case config.StoreBadger:
		store, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store:   store,
			Backend: config.StoreBadger,
			Ping:    store.Ping,
			Close:   func() { _ = store.Close() },
		}, nil

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store:   postgres.NewTxRecordRepository(pool),
			Backend: config.StorePostgres,
			Ping:    pool.Ping,
			Close:   pool.Close,
		}, nil

	case config.StoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis store needs a redis client")
		}
		return &Handle{
			Store:   infraRedis.NewTxStore(redisClient, ""),
			Backend: config.StoreRedis,
			Ping:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Close:   func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown LEDGER_STORE %q", cfg.LedgerStore)
}
