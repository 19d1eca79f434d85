package staking

import "errors"

var (
	ErrUserRejected        = errors.New("transaction rejected by user")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrBelowMinimumStake   = errors.New("amount is below the minimum stake")
	ErrInsufficientBalance = errors.New("amount exceeds token balance")
	ErrNothingToMigrate    = errors.New("no v1 stake to migrate")
)
