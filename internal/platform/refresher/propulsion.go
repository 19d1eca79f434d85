package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/pkg/schedule"
)

var ErrPropulsionNotLoaded = errors.New("propulsion info not loaded")

// PropulsionConfig holds configuration for the propulsion watcher
type PropulsionConfig struct {
	// PollInterval is how often new StakerPropelled logs are looked for
	PollInterval time.Duration

	// Lookback is how many blocks of history are searched for recent propulsions
	Lookback uint64

	// HistorySize is how many recent propulsions are kept
	HistorySize int

	// BlockTime converts remaining blocks into a countdown
	BlockTime time.Duration
}

func DefaultPropulsionConfig() *PropulsionConfig {
	return &PropulsionConfig{
		PollInterval: 6 * time.Second,
		Lookback:     6650,
		HistorySize:  3,
		BlockTime:    13 * time.Second,
	}
}

// PropulsionInfo is the state of the propulsion game on one chain
type PropulsionInfo struct {
	ChainID         int64
	BlocksBetween   uint64
	LastBlock       uint64
	CurrentBlock    uint64
	RemainingBlocks uint64
	// NextIn estimates the time left until the next propulsion
	NextIn      time.Duration
	FuelToWin   *big.Int
	MinStake    *big.Int
	Recent      []chain.Propulsion
	RefreshedAt time.Time
}

// PropulsionWatcher keeps propulsion figures current and refreshes the
// active account's stats whenever a staker is propelled
type PropulsionWatcher struct {
	config *PropulsionConfig
	reader Reader
	logs   PropulsionReader
	stats  *Service
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.RWMutex
	info   *PropulsionInfo
	cursor uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPropulsionWatcher creates a watcher. stats may be nil.
func NewPropulsionWatcher(config *PropulsionConfig, reader Reader, logs PropulsionReader, stats *Service, clk clock.Clock, logger *slog.Logger) *PropulsionWatcher {
	if config == nil {
		config = DefaultPropulsionConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &PropulsionWatcher{
		config: config,
		reader: reader,
		logs:   logs,
		stats:  stats,
		clock:  clk,
		logger: logger.With("service", "propulsion"),
		stopCh: make(chan struct{}),
	}
}

// Refresh reads the propulsion parameters and the recent history. A failed
// parameter read keeps the previous value and is returned with the others.
func (w *PropulsionWatcher) Refresh(ctx context.Context) (*PropulsionInfo, error) {
	ac, err := w.reader.ReadAccountContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read account context: %w", err)
	}
	current, err := w.reader.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	w.mu.RLock()
	prev := w.info
	w.mu.RUnlock()
	if prev != nil && prev.ChainID != ac.ChainID {
		prev = nil
	}

	info := &PropulsionInfo{ChainID: ac.ChainID, CurrentBlock: current}
	if prev != nil {
		info.BlocksBetween = prev.BlocksBetween
		info.LastBlock = prev.LastBlock
		info.FuelToWin = prev.FuelToWin
		info.MinStake = prev.MinStake
		info.Recent = prev.Recent
	}

	var result *multierror.Error
	read := func(name string, call chain.CallDescriptor) *big.Int {
		v, err := w.reader.Read(ctx, call)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			return nil
		}
		return v
	}
	if v := read("blocks_between_propulsion", chain.BlocksBetweenPropulsionCall()); v != nil {
		info.BlocksBetween = v.Uint64()
	}
	if v := read("last_propulsion_block", chain.LastPropulsionBlockCall()); v != nil {
		info.LastBlock = v.Uint64()
	}
	if v := read("fuel_to_win", chain.FuelToWinCall()); v != nil {
		info.FuelToWin = v
	}
	if v := read("min_stake", chain.MinStakeCall()); v != nil {
		info.MinStake = v
	}

	var from uint64
	if current > w.config.Lookback {
		from = current - w.config.Lookback
	}
	recent, err := w.logs.Propulsions(ctx, from, current)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("recent propulsions: %w", err))
	} else {
		info.Recent = latest(recent, w.config.HistorySize)
	}

	info.RefreshedAt = w.clock.Now()
	w.countdown(info)

	w.mu.Lock()
	w.info = info
	if current > w.cursor {
		w.cursor = current
	}
	w.mu.Unlock()

	return info, result.ErrorOrNil()
}

// Info returns the latest propulsion figures
func (w *PropulsionWatcher) Info() (*PropulsionInfo, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.info == nil {
		return nil, ErrPropulsionNotLoaded
	}
	out := *w.info
	out.Recent = slices.Clone(w.info.Recent)
	return &out, nil
}

// Poll looks for propulsions mined since the last scan. A propulsion refreshes
// the propulsion figures and the active account's stats.
func (w *PropulsionWatcher) Poll(ctx context.Context) error {
	w.mu.RLock()
	cursor := w.cursor
	w.mu.RUnlock()
	if cursor == 0 {
		_, err := w.Refresh(ctx)
		return err
	}

	current, err := w.reader.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	if current <= cursor {
		return nil
	}

	found, err := w.logs.Propulsions(ctx, cursor+1, current)
	if err != nil {
		// The range is scanned again on the next poll
		return err
	}

	w.mu.Lock()
	w.cursor = current
	if w.info != nil {
		w.info.CurrentBlock = current
		w.countdown(w.info)
	}
	w.mu.Unlock()

	if len(found) == 0 {
		return nil
	}
	for _, p := range found {
		w.logger.Info("staker propelled",
			"astronaut", p.Astronaut,
			"fuel_earned", p.FuelEarned,
			"tx_hash", p.TxHash,
			"block", p.BlockNumber)
	}

	var result *multierror.Error
	if _, err := w.Refresh(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if w.stats != nil {
		if _, err := w.stats.RefreshActive(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Run polls every PollInterval until ctx is done or Stop is called
func (w *PropulsionWatcher) Run(ctx context.Context) {
	if w.config.PollInterval <= 0 {
		w.logger.Info("propulsion polling is disabled")
		return
	}

	w.logger.Info("starting propulsion watcher", "interval", w.config.PollInterval)
	schedule.Every(ctx, w.clock, w.config.PollInterval, w.stopCh, func(ctx context.Context) {
		if err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("propulsion poll incomplete", "error", err)
		}
	})
	w.logger.Info("propulsion watcher stopped")
}

// Stop ends Run
func (w *PropulsionWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// countdown derives the remaining blocks and time. Callers own info.
func (w *PropulsionWatcher) countdown(info *PropulsionInfo) {
	info.RemainingBlocks = remainingBlocks(info.BlocksBetween, info.LastBlock, info.CurrentBlock)
	info.NextIn = time.Duration(info.RemainingBlocks) * w.config.BlockTime
}

func remainingBlocks(between, last, current uint64) uint64 {
	if between == 0 || last == 0 || current < last {
		return 0
	}
	elapsed := current - last
	if elapsed >= between {
		return 0
	}
	return between - elapsed
}

// latest returns up to n propulsions, newest first
func latest(found []chain.Propulsion, n int) []chain.Propulsion {
	out := slices.Clone(found)
	slices.Reverse(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
