package tracker_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/tracker"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

const (
	mainnet = int64(1)
	alice   = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	bob     = "0x0000000000000000000000000000000000000b0b"
)

// MockChainClient is a mock implementation of tracker.ChainClient
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) WaitForConfirmation(ctx context.Context, id string) (chain.TerminalResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(chain.TerminalResult), args.Error(1)
}

func (m *MockChainClient) ReadAccountContext(ctx context.Context) (chain.AccountContext, error) {
	args := m.Called(ctx)
	return args.Get(0).(chain.AccountContext), args.Error(1)
}

var _ tracker.ChainClient = (*MockChainClient)(nil)

// collector records published events
type collector struct {
	mu     sync.Mutex
	events []tracker.Event
}

func (c *collector) Publish(_ context.Context, ev tracker.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []tracker.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tracker.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *tracker.Config {
	return &tracker.Config{
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      time.Second,
		RetryJitterPercent: 0,
		StaleHorizon:       24 * time.Hour,
		ResyncInterval:     time.Minute,
	}
}

func success(block uint64) chain.TerminalResult {
	return chain.TerminalResult{Status: chain.TerminalSuccess, BlockNumber: block}
}

func reverted(reason string) chain.TerminalResult {
	return chain.TerminalResult{Status: chain.TerminalReverted, RevertReason: reason}
}

func transientErr() error {
	return &chain.TransientNetworkError{Err: context.DeadlineExceeded}
}

type fixture struct {
	clock   *clock.Mock
	chain   *MockChainClient
	ledger  *txledger.Ledger
	events  *collector
	tracker *tracker.Tracker
}

func newFixture(t *testing.T, cfg *tracker.Config) *fixture {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC))

	ledger, err := txledger.NewLedger(context.Background(), txledger.NewMemoryStore(), clk, discardLogger())
	require.NoError(t, err)

	chainClient := new(MockChainClient)
	events := &collector{}

	return &fixture{
		clock:   clk,
		chain:   chainClient,
		ledger:  ledger,
		events:  events,
		tracker: tracker.New(cfg, chainClient, ledger, events, clk, discardLogger()),
	}
}

func (f *fixture) activeContext(account string, chainID int64) {
	f.chain.On("ReadAccountContext", mock.Anything).
		Return(chain.AccountContext{Account: account, ChainID: chainID}, nil).
		Maybe()
}

func (f *fixture) record(t *testing.T, id string, subject txledger.Subject) txledger.Record {
	t.Helper()
	rec, err := f.ledger.Record(context.Background(), subject, mainnet,
		txledger.Submission{ID: id, ChainID: mainnet, Account: alice})
	require.NoError(t, err)
	return rec
}

func (f *fixture) status(id string) txledger.Status {
	rec, _ := f.ledger.Get(id)
	return rec.Status
}

// advanceUntil moves virtual time forward one second at a time until cond holds
func (f *fixture) advanceUntil(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		f.clock.Add(time.Second)
		return cond()
	}, 3*time.Second, 5*time.Millisecond)
}
