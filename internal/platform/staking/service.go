// Package staking is the entry point the UI uses to submit staking
// transactions and follow them until they are reconciled.
package staking

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/tracker"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// Service composes submission, recording, tracking and notification
type Service struct {
	chain     ChainClient
	ledger    Ledger
	tracker   Tracker
	events    tracker.Subscriber
	announcer Announcer
	logger    *slog.Logger
}

// NewService creates a new staking service
func NewService(
	chainClient ChainClient,
	ledger Ledger,
	txTracker Tracker,
	events tracker.Subscriber,
	announcer Announcer,
	logger *slog.Logger,
) *Service {
	return &Service{
		chain:     chainClient,
		ledger:    ledger,
		tracker:   txTracker,
		events:    events,
		announcer: announcer,
		logger:    logger.With("service", "staking"),
	}
}

// SubmitAndTrack submits call, records the resulting transaction as PENDING,
// shows a loading indicator and starts waiting for its outcome.
//
// A wallet rejection returns ErrUserRejected and a failed submission returns
// ErrSubmissionFailed; neither creates a record.
func (s *Service) SubmitAndTrack(ctx context.Context, call chain.CallDescriptor, subject txledger.Subject) (txledger.Record, error) {
	if !subject.IsValid() {
		return txledger.Record{}, txledger.ErrInvalidSubject
	}

	res, err := s.chain.Submit(ctx, call)
	if err != nil {
		if errors.Is(err, chain.ErrRejectedByUser) {
			s.logger.Info("transaction rejected by user", "subject", subject, "call", call.String())
			s.announcer.AnnounceCancelled(ctx, subject)
			return txledger.Record{}, ErrUserRejected
		}
		s.logger.Warn("transaction submission failed", "subject", subject, "call", call.String(), "error", err)
		s.announcer.AnnounceSubmissionFailed(ctx, subject, err)
		return txledger.Record{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	rec, err := s.ledger.Record(ctx, subject, res.ChainID, txledger.Submission{
		ID:      res.ID,
		ChainID: res.ChainID,
		Account: res.Account,
	})
	if errors.Is(err, txledger.ErrDuplicateTransaction) {
		// Already logged by the ledger; the existing record is authoritative
		return rec, nil
	}
	if err != nil {
		s.logger.Error("submitted transaction could not be recorded", "tx_id", res.ID, "error", err)
		return txledger.Record{}, fmt.Errorf("failed to record transaction %s: %w", res.ID, err)
	}

	s.announcer.AnnounceSubmission(ctx, rec.ID, subject)

	if err := s.tracker.Track(rec); err != nil {
		// The record stays PENDING and the next resync picks it up
		s.logger.Warn("failed to track transaction", "tx_id", rec.ID, "error", err)
	}

	s.logger.Info("transaction submitted",
		"tx_id", rec.ID,
		"subject", subject,
		"chain_id", rec.ChainID)
	return rec, nil
}

// Approve lets the propulsor spend amount tokens. A nil amount approves
// chain.DefaultApproveAmount.
func (s *Service) Approve(ctx context.Context, amount *big.Int) (txledger.Record, error) {
	if amount != nil && amount.Sign() <= 0 {
		return txledger.Record{}, ErrInvalidAmount
	}
	return s.SubmitAndTrack(ctx, chain.ApproveCall(amount), txledger.SubjectApprove)
}

// Deposit stakes amount after checking it against the minimum stake and the
// account's token balance
func (s *Service) Deposit(ctx context.Context, amount *big.Int) (txledger.Record, error) {
	if amount == nil || amount.Sign() <= 0 {
		return txledger.Record{}, ErrInvalidAmount
	}

	account, err := s.activeAccount(ctx)
	if err != nil {
		return txledger.Record{}, err
	}

	minStake, err := s.chain.Read(ctx, chain.MinStakeCall())
	if err != nil {
		return txledger.Record{}, fmt.Errorf("failed to read minimum stake: %w", err)
	}
	if amount.Cmp(minStake) < 0 {
		return txledger.Record{}, fmt.Errorf("%w (%s)", ErrBelowMinimumStake, minStake)
	}

	balance, err := s.chain.Read(ctx, chain.BalanceOfCall(account))
	if err != nil {
		return txledger.Record{}, fmt.Errorf("failed to read balance: %w", err)
	}
	if amount.Cmp(balance) > 0 {
		return txledger.Record{}, ErrInsufficientBalance
	}

	return s.SubmitAndTrack(ctx, chain.DepositCall(amount), txledger.SubjectDeposit)
}

// Withdraw withdraws the whole stake with its earnings
func (s *Service) Withdraw(ctx context.Context) (txledger.Record, error) {
	return s.SubmitAndTrack(ctx, chain.WithdrawCall(), txledger.SubjectWithdraw)
}

// Migrate moves the account's v1 stake to the current propulsor
func (s *Service) Migrate(ctx context.Context) (txledger.Record, error) {
	account, err := s.activeAccount(ctx)
	if err != nil {
		return txledger.Record{}, err
	}

	staked, err := s.chain.Read(ctx, chain.StakedAmountV1Call(account))
	if err != nil {
		return txledger.Record{}, fmt.Errorf("failed to read v1 stake: %w", err)
	}
	if staked.Sign() == 0 {
		return txledger.Record{}, ErrNothingToMigrate
	}

	return s.SubmitAndTrack(ctx, chain.MigrateCall(), txledger.SubjectMigrate)
}

// NeedsApproval reports whether the propulsor has no allowance yet
func (s *Service) NeedsApproval(ctx context.Context) (bool, error) {
	account, err := s.activeAccount(ctx)
	if err != nil {
		return false, err
	}

	allowance, err := s.chain.Read(ctx, chain.AllowanceCall(account))
	if err != nil {
		return false, fmt.Errorf("failed to read allowance: %w", err)
	}
	return allowance.Sign() == 0, nil
}

// OnReconciled calls handler once per transaction that reached a terminal
// status. The returned function unsubscribes.
func (s *Service) OnReconciled(handler func(id string, status txledger.Status)) func() {
	return s.events.Subscribe(func(_ context.Context, ev tracker.Event) {
		if ev.Kind == tracker.EventReconciled {
			handler(ev.ID, ev.Status)
		}
	})
}

// GetPending returns the pending transactions of chainID, oldest first
func (s *Service) GetPending(chainID int64) iter.Seq[txledger.Record] {
	return s.ledger.ListPending(chainID)
}

// Get returns one transaction
func (s *Service) Get(id string) (txledger.Record, error) {
	rec, ok := s.ledger.Get(id)
	if !ok {
		return txledger.Record{}, txledger.ErrTransactionNotFound
	}
	return rec, nil
}

func (s *Service) activeAccount(ctx context.Context) (common.Address, error) {
	ac, err := s.chain.ReadAccountContext(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read account context: %w", err)
	}
	return common.HexToAddress(ac.Account), nil
}
