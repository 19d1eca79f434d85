// Package tracker waits for the outcome of every pending transaction and
// reconciles the ledger with what the chain reports.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/pkg/schedule"
)

// Tracker owns one confirmation wait per pending transaction
type Tracker struct {
	config    *Config
	chain     ChainClient
	ledger    Ledger
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	running   bool
	baseCtx   context.Context
	watching  map[string]struct{}
	chainID   int64
}

// New creates a new tracker
func New(
	config *Config,
	chainClient ChainClient,
	ledger Ledger,
	publisher Publisher,
	clk clock.Clock,
	logger *slog.Logger,
) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	_ = config.Validate()
	if clk == nil {
		clk = clock.New()
	}

	return &Tracker{
		config:    config,
		chain:     chainClient,
		ledger:    ledger,
		publisher: publisher,
		clock:     clk,
		logger:    logger.With("service", "tracker"),
		stopCh:    make(chan struct{}),
		watching:  make(map[string]struct{}),
	}
}

// Start binds the tracker to ctx and begins waiting on every pending record
// of the active chain. Waits started later by Track also live on ctx.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.baseCtx == nil {
		t.baseCtx = ctx
	}
	t.mu.Unlock()

	t.resync(ctx)
}

// Run starts the tracker and re-lists pending records every ResyncInterval
// until ctx is done or Stop is called
func (t *Tracker) Run(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	if t.baseCtx == nil {
		t.baseCtx = ctx
	}
	t.mu.Unlock()

	t.logger.Info("starting tracker",
		"resync_interval", t.config.ResyncInterval,
		"max_retries", t.config.MaxRetries,
		"stale_horizon", t.config.StaleHorizon)

	schedule.Every(ctx, t.clock, t.config.ResyncInterval, t.stopCh, t.resync)

	t.logger.Info("tracker stopped")
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Stop ends the resync loop. Outstanding waits end with their context.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Wait blocks until every confirmation wait has returned
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// IsRunning returns whether the resync loop is active
func (t *Tracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Track starts waiting for rec's outcome. Tracking an id that already has a
// wait in flight is a no-op.
func (t *Tracker) Track(rec txledger.Record) error {
	if !rec.IsPending() {
		return ErrNotPending
	}

	t.mu.Lock()
	ctx := t.baseCtx
	if ctx == nil {
		t.mu.Unlock()
		return ErrNotStarted
	}
	if _, ok := t.watching[rec.ID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.watching[rec.ID] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go t.watch(ctx, rec.ID)
	return nil
}

// Watching returns the number of confirmation waits in flight
func (t *Tracker) Watching() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watching)
}

func (t *Tracker) resync(ctx context.Context) {
	chainID := t.activeChain(ctx)

	tracked := 0
	for rec := range t.ledger.ListPending(chainID) {
		if err := t.Track(rec); err != nil {
			t.logger.Error("failed to track pending transaction", "tx_id", rec.ID, "error", err)
			continue
		}
		tracked++
	}
	if tracked > 0 {
		t.logger.Debug("pending transactions resynced", "chain_id", chainID, "count", tracked)
	}
}

// activeChain reads the connected chain, falling back to the last one seen
func (t *Tracker) activeChain(ctx context.Context) int64 {
	ac, err := t.chain.ReadAccountContext(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.logger.Warn("failed to read account context", "error", err, "chain_id", t.chainID)
		return t.chainID
	}
	t.chainID = ac.ChainID
	return ac.ChainID
}

func (t *Tracker) release(id string) {
	t.mu.Lock()
	delete(t.watching, id)
	t.mu.Unlock()
	t.wg.Done()
}

func (t *Tracker) watch(ctx context.Context, id string) {
	defer t.release(id)

	backoff := t.config.newBackoff()

	logger := t.logger.With("tx_id", id)
	attempt := 0

	for {
		rec, ok := t.ledger.Get(id)
		if !ok || !rec.IsPending() {
			return
		}

		result, err := t.chain.WaitForConfirmation(ctx, id)
		if err == nil {
			t.resolve(ctx, rec, result)
			return
		}
		if ctx.Err() != nil {
			return
		}

		var permanent *chain.PermanentAdapterError
		if errors.As(err, &permanent) {
			logger.Error("confirmation wait failed permanently", "error", err)
			reason := permanent.Error()
			if permanent.Err != nil {
				reason = permanent.Err.Error()
			}
			t.resolve(ctx, rec, chain.TerminalResult{
				Status:       chain.TerminalReverted,
				RevertReason: reason,
			})
			return
		}

		// Anything else means the outcome is unknown, never that it failed
		attempt++
		delay, stop := backoff.Next()
		if stop {
			logger.Warn("giving up on confirmation wait, status unknown",
				"attempts", attempt,
				"error", err)
			t.publisher.Publish(ctx, t.event(ctx, EventUnresolved, rec))
			return
		}

		logger.Warn("confirmation wait failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			"transient", chain.IsTransient(err),
			"error", err)

		if err := schedule.Sleep(ctx, t.clock, delay); err != nil {
			return
		}
	}
}

func (t *Tracker) resolve(ctx context.Context, rec txledger.Record, result chain.TerminalResult) {
	status := txledger.StatusConfirmed
	reason := ""
	if result.Status != chain.TerminalSuccess {
		status = txledger.StatusFailed
		reason = result.RevertReason
	}

	if !t.ledger.Update(ctx, rec.ID, status, reason) {
		t.logger.Debug("transaction already reconciled", "tx_id", rec.ID)
		return
	}

	rec.Status = status
	rec.Reason = reason
	ev := t.event(ctx, EventReconciled, rec)
	ev.BlockNumber = result.BlockNumber

	t.logger.Info("transaction reconciled",
		"tx_id", rec.ID,
		"subject", rec.Subject,
		"status", status,
		"block", result.BlockNumber,
		"stale", ev.Stale,
		"context_changed", ev.ContextChanged)

	t.publisher.Publish(ctx, ev)
}

func (t *Tracker) event(ctx context.Context, kind EventKind, rec txledger.Record) Event {
	ev := Event{
		Kind:    kind,
		ID:      rec.ID,
		Subject: rec.Subject,
		ChainID: rec.ChainID,
		Account: rec.Account,
		Status:  rec.Status,
		Reason:  rec.Reason,
		Stale:   rec.IsStale(t.clock.Now(), t.config.StaleHorizon),
	}

	ac, err := t.chain.ReadAccountContext(ctx)
	if err != nil {
		t.logger.Warn("failed to read account context, assuming unchanged", "tx_id", rec.ID, "error", err)
		return ev
	}
	ev.ContextChanged = !ac.Matches(rec.Account, rec.ChainID)
	return ev
}
