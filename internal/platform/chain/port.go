// Package chain defines the boundary between the transaction tracking core and
// a blockchain client: what can be submitted, how confirmations are reported
// and which errors the core has to tell apart.
package chain

import (
	"context"
	"math/big"
	"strings"
)

// Adapter is the chain client the core talks to
type Adapter interface {
	// Submit signs and broadcasts the call. It fails with ErrRejectedByUser
	// when the signer declined, or a *SubmissionError otherwise.
	Submit(ctx context.Context, call CallDescriptor) (SubmissionResult, error)

	// WaitForConfirmation blocks until id is mined. It fails with a
	// *TransientNetworkError when the outcome could not be determined yet and
	// with a *PermanentAdapterError when it never will be.
	WaitForConfirmation(ctx context.Context, id string) (TerminalResult, error)

	// ReadAccountContext returns the active account and network
	ReadAccountContext(ctx context.Context) (AccountContext, error)

	// Read executes a view call and decodes a single uint256 result
	Read(ctx context.Context, call CallDescriptor) (*big.Int, error)
}

// SubmissionResult identifies a broadcast transaction
type SubmissionResult struct {
	ID      string
	ChainID int64
	Account string
}

// TerminalStatus is the mined outcome of a transaction
type TerminalStatus string

const (
	TerminalSuccess  TerminalStatus = "success"
	TerminalReverted TerminalStatus = "reverted"
)

// TerminalResult is what WaitForConfirmation resolves with
type TerminalResult struct {
	Status       TerminalStatus
	BlockNumber  uint64
	RevertReason string
}

// AccountContext is the account and network the user is currently connected with
type AccountContext struct {
	Account string
	ChainID int64
}

// Matches reports whether a record made by account on chainID belongs to this context
func (c AccountContext) Matches(account string, chainID int64) bool {
	return c.ChainID == chainID && strings.EqualFold(c.Account, account)
}
