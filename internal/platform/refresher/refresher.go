// Package refresher re-reads balances and staking figures after confirmed
// transactions and keeps them cached for the UI.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"

	"github.com/loworbit/txtrack/internal/platform/tracker"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/pkg/schedule"
)

// Config holds configuration for the refresher
type Config struct {
	// Interval is how often Run refreshes the active account. 0 disables polling.
	Interval time.Duration
}

func DefaultConfig() *Config {
	return &Config{Interval: 30 * time.Second}
}

// Service keeps the stat cache in line with the chain
type Service struct {
	config   *Config
	reader   Reader
	cache    Cache
	clock    clock.Clock
	logger   *slog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(config *Config, reader Reader, cache Cache, clk clock.Clock, logger *slog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		config: config,
		reader: reader,
		cache:  cache,
		clock:  clk,
		logger: logger.With("service", "refresher"),
		stopCh: make(chan struct{}),
	}
}

// OnEvent refreshes the quantities a confirmed transaction may have changed.
// Failed transactions changed nothing and trigger no reads.
func (s *Service) OnEvent(ctx context.Context, ev tracker.Event) {
	if ev.Kind != tracker.EventReconciled || ev.Status != txledger.StatusConfirmed {
		return
	}

	ac, err := s.reader.ReadAccountContext(ctx)
	if err == nil && ac.ChainID != ev.ChainID {
		s.logger.Debug("skipping refresh for inactive chain",
			"tx_id", ev.ID,
			"chain_id", ev.ChainID,
			"active_chain_id", ac.ChainID)
		return
	}

	if _, err := s.Refresh(ctx, ev.Account, ev.ChainID, QuantitiesFor(ev.Subject)); err != nil {
		s.logger.Warn("refresh after reconciliation incomplete",
			"tx_id", ev.ID,
			"subject", ev.Subject,
			"error", err)
	}
}

// Refresh reads quantities for account and merges them into the cached stats.
// Values that were read are cached even when others failed; the failures are
// returned together.
func (s *Service) Refresh(ctx context.Context, account string, chainID int64, quantities []Quantity) (*Stats, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address %q", account)
	}
	addr := common.HexToAddress(account)

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.cache.Get(ctx, account, chainID)
	if err != nil {
		if !errors.Is(err, ErrStatsNotFound) {
			s.logger.Warn("failed to load cached stats", "account", account, "error", err)
		}
		stats = &Stats{Account: strings.ToLower(account), ChainID: chainID}
	}
	if stats.Values == nil {
		stats.Values = make(map[Quantity]*big.Int)
	}

	var result *multierror.Error
	for _, q := range quantities {
		call, ok := q.call(addr)
		if !ok {
			continue
		}
		v, err := s.reader.Read(ctx, call)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", q, err))
			continue
		}
		stats.Values[q] = v
	}

	block, err := s.reader.CurrentBlock(ctx)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("block number: %w", err))
	} else if block > stats.BlockNumber {
		stats.BlockNumber = block
	}
	stats.RefreshedAt = s.clock.Now()

	if err := s.cache.Set(ctx, stats); err != nil {
		result = multierror.Append(result, fmt.Errorf("cache stats: %w", err))
	}

	s.logger.Debug("stats refreshed",
		"account", stats.Account,
		"chain_id", chainID,
		"quantities", len(quantities),
		"block", stats.BlockNumber)
	return stats, result.ErrorOrNil()
}

// RefreshActive refreshes every quantity of the connected account
func (s *Service) RefreshActive(ctx context.Context) (*Stats, error) {
	ac, err := s.reader.ReadAccountContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read account context: %w", err)
	}
	return s.Refresh(ctx, ac.Account, ac.ChainID, AllQuantities)
}

// Stats returns the cached stats of account
func (s *Service) Stats(ctx context.Context, account string, chainID int64) (*Stats, error) {
	return s.cache.Get(ctx, account, chainID)
}

// Run refreshes the active account every Interval until ctx is done or Stop is called
func (s *Service) Run(ctx context.Context) {
	if s.config.Interval <= 0 {
		s.logger.Info("periodic refresh is disabled")
		return
	}

	s.logger.Info("starting refresher", "interval", s.config.Interval)
	schedule.Every(ctx, s.clock, s.config.Interval, s.stopCh, func(ctx context.Context) {
		if _, err := s.RefreshActive(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("periodic refresh incomplete", "error", err)
		}
	})
	s.logger.Info("refresher stopped")
}

// Stop ends Run
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
