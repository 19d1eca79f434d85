package ethrpc

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/loworbit/txtrack/internal/platform/chain"
)

// JSON-RPC and EIP-1193 error codes
const (
	codeUserRejected   = 4001
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

func isUserRejection(err error) bool {
	if errors.Is(err, chain.ErrRejectedByUser) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected
}

// submitError maps a failure while building or sending a transaction
func submitError(err error) error {
	if isUserRejection(err) {
		return chain.ErrRejectedByUser
	}
	return &chain.SubmissionError{Err: err}
}

// waitError maps a failure while polling for a receipt. Only requests the node
// will never accept are permanent; everything else may succeed later.
func waitError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeInvalidParams, codeMethodNotFound:
			return &chain.PermanentAdapterError{Err: err}
		}
	}
	return &chain.TransientNetworkError{Err: err}
}

const defaultRevertReason = "transaction reverted"

// revertReason extracts the reason string from a failed eth_call
func revertReason(err error) string {
	if err == nil {
		return defaultRevertReason
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil && reason != "" {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	if reason, ok := strings.CutPrefix(msg, "execution reverted: "); ok && reason != "" {
		return reason
	}
	if msg == "execution reverted" {
		return defaultRevertReason
	}
	return msg
}
