package txledger

import "errors"

var (
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrInvalidSubject       = errors.New("invalid transaction subject")
	ErrInvalidStatus        = errors.New("invalid transaction status")
	ErrCorruptRecord        = errors.New("corrupt transaction record")
)
