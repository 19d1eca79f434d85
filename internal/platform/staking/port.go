package staking

import (
	"context"
	"iter"
	"math/big"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/notifier"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// ChainClient is the part of the chain adapter the staking service needs
type ChainClient interface {
	Submit(ctx context.Context, call chain.CallDescriptor) (chain.SubmissionResult, error)
	Read(ctx context.Context, call chain.CallDescriptor) (*big.Int, error)
	ReadAccountContext(ctx context.Context) (chain.AccountContext, error)
}

// Ledger records submitted transactions
type Ledger interface {
	Record(ctx context.Context, subject txledger.Subject, chainID int64, sub txledger.Submission) (txledger.Record, error)
	Get(id string) (txledger.Record, bool)
	ListPending(chainID int64) iter.Seq[txledger.Record]
}

// Tracker waits for the outcome of recorded transactions
type Tracker interface {
	Track(rec txledger.Record) error
}

// Announcer shows submission-time indicators
type Announcer interface {
	AnnounceSubmission(ctx context.Context, id string, subject txledger.Subject)
	AnnounceSubmissionFailed(ctx context.Context, subject txledger.Subject, err error) notifier.Indicator
	AnnounceCancelled(ctx context.Context, subject txledger.Subject) notifier.Indicator
}
