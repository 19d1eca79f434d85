package refresher

import (
	"context"
	"errors"
	"math/big"

	"github.com/loworbit/txtrack/internal/platform/chain"
)

var ErrStatsNotFound = errors.New("stats not found")

// Reader reads chain state
type Reader interface {
	Read(ctx context.Context, call chain.CallDescriptor) (*big.Int, error)
	CurrentBlock(ctx context.Context) (uint64, error)
	ReadAccountContext(ctx context.Context) (chain.AccountContext, error)
}

// Cache stores the latest stats per account and chain.
// Get returns ErrStatsNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, account string, chainID int64) (*Stats, error)
	Set(ctx context.Context, stats *Stats) error
}

// PropulsionReader lists StakerPropelled logs between two blocks inclusive, oldest first
type PropulsionReader interface {
	Propulsions(ctx context.Context, fromBlock, toBlock uint64) ([]chain.Propulsion, error)
}
