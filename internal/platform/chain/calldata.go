package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Resolver maps a contract role to its address on the active chain
type Resolver func(ContractRole) (common.Address, error)

// Selector returns the 4-byte function selector of a Solidity signature
func Selector(signature string) [4]byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))

	var sel [4]byte
	copy(sel[:], hash.Sum(nil)[:4])
	return sel
}

// EncodeCall builds the calldata for call. Only static 32-byte argument types
// are supported, which covers every staking call.
func EncodeCall(call CallDescriptor, resolve Resolver) ([]byte, error) {
	if want := countParams(call.Signature); want != len(call.Args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArgument, call.Signature, want, len(call.Args))
	}

	sel := Selector(call.Signature)
	data := make([]byte, 0, 4+32*len(call.Args))
	data = append(data, sel[:]...)

	for i, arg := range call.Args {
		switch v := arg.(type) {
		case *big.Int:
			if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
				return nil, fmt.Errorf("%w: argument %d of %s is not a uint256", ErrInvalidArgument, i, call.Method())
			}
			data = append(data, common.LeftPadBytes(v.Bytes(), 32)...)
		case common.Address:
			data = append(data, common.LeftPadBytes(v.Bytes(), 32)...)
		case ContractRole:
			addr, err := resolve(v)
			if err != nil {
				return nil, err
			}
			data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)
		default:
			return nil, fmt.Errorf("%w: unsupported type %T for argument %d of %s", ErrInvalidArgument, arg, i, call.Method())
		}
	}
	return data, nil
}

// DecodeUint256 reads the first 32-byte word of a call result
func DecodeUint256(result []byte) (*big.Int, error) {
	if len(result) < 32 {
		return nil, fmt.Errorf("short call result: %d bytes", len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

func countParams(signature string) int {
	open := strings.IndexByte(signature, '(')
	if open < 0 || !strings.HasSuffix(signature, ")") {
		return -1
	}
	params := signature[open+1 : len(signature)-1]
	if params == "" {
		return 0
	}
	return strings.Count(params, ",") + 1
}
