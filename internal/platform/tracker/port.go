package tracker

import (
	"context"
	"errors"
	"iter"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

var (
	ErrNotStarted = errors.New("tracker not started")
	ErrNotPending = errors.New("transaction is not pending")
)

// Ledger is the part of the transaction ledger the tracker needs
type Ledger interface {
	ListPending(chainID int64) iter.Seq[txledger.Record]
	Get(id string) (txledger.Record, bool)
	Update(ctx context.Context, id string, status txledger.Status, reason string) bool
}

// ChainClient is the part of the chain adapter the tracker needs
type ChainClient interface {
	WaitForConfirmation(ctx context.Context, id string) (chain.TerminalResult, error)
	ReadAccountContext(ctx context.Context) (chain.AccountContext, error)
}

// Publisher receives tracker events
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}
