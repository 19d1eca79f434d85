package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrRejectedByUser means the signer declined the transaction
	ErrRejectedByUser  = errors.New("transaction rejected by user")
	ErrInvalidArgument = errors.New("invalid call argument")
	ErrUnknownContract = errors.New("unknown contract")
)

// SubmissionError is a non-rejection failure while submitting a transaction
// (insufficient funds, estimation failure, node refused it)
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransientNetworkError is a failure to learn the outcome that may succeed on retry
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// PermanentAdapterError is a failure that retrying will not fix
type PermanentAdapterError struct {
	Err error
}

func (e *PermanentAdapterError) Error() string {
	return fmt.Sprintf("permanent adapter error: %v", e.Err)
}

func (e *PermanentAdapterError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a *TransientNetworkError
func IsTransient(err error) bool {
	var target *TransientNetworkError
	return errors.As(err, &target)
}

// IsPermanent reports whether err is or wraps a *PermanentAdapterError
func IsPermanent(err error) bool {
	var target *PermanentAdapterError
	return errors.As(err, &target)
}

// IsSubmission reports whether err is or wraps a *SubmissionError
func IsSubmission(err error) bool {
	var target *SubmissionError
	return errors.As(err, &target)
}
