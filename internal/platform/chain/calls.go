package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ContractRole names a deployed contract independently of its address on a given chain
type ContractRole string

const (
	ContractToken       ContractRole = "token"
	ContractPropulsor   ContractRole = "propulsor"
	ContractPropulsorV1 ContractRole = "propulsor_v1"
)

// CallDescriptor is a contract call: the target contract, the Solidity
// function signature and its arguments. Arguments are *big.Int (uint256),
// common.Address, or a ContractRole resolved to its address at encode time.
type CallDescriptor struct {
	Contract  ContractRole
	Signature string
	Args      []any
}

// Method returns the bare function name of the signature
func (c CallDescriptor) Method() string {
	if i := strings.IndexByte(c.Signature, '('); i >= 0 {
		return c.Signature[:i]
	}
	return c.Signature
}

func (c CallDescriptor) String() string {
	return fmt.Sprintf("%s.%s", c.Contract, c.Method())
}

// DefaultApproveAmount is the allowance granted to the propulsor by Approve (1000 LOCC)
var DefaultApproveAmount = new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ApproveCall lets the propulsor spend amount tokens of the caller.
// A nil amount approves DefaultApproveAmount.
func ApproveCall(amount *big.Int) CallDescriptor {
	if amount == nil {
		amount = DefaultApproveAmount
	}
	return CallDescriptor{
		Contract:  ContractToken,
		Signature: "approve(address,uint256)",
		Args:      []any{ContractPropulsor, amount},
	}
}

// DepositCall stakes amount tokens into the propulsor
func DepositCall(amount *big.Int) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractPropulsor,
		Signature: "deposit(uint256)",
		Args:      []any{amount},
	}
}

// WithdrawCall withdraws the whole stake plus earnings
func WithdrawCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "withdraw()"}
}

// MigrateCall moves a v1 stake into the current propulsor
func MigrateCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "migrate()"}
}

func BalanceOfCall(account common.Address) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractToken,
		Signature: "balanceOf(address)",
		Args:      []any{account},
	}
}

// AllowanceCall reads how much the propulsor may still spend on behalf of owner
func AllowanceCall(owner common.Address) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractToken,
		Signature: "allowance(address,address)",
		Args:      []any{owner, ContractPropulsor},
	}
}

func TotalSupplyCall() CallDescriptor {
	return CallDescriptor{Contract: ContractToken, Signature: "totalSupply()"}
}

func StakedAmountCall(account common.Address) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractPropulsor,
		Signature: "getStakedAmountByAddr(address)",
		Args:      []any{account},
	}
}

// StakedAmountV1Call reads the stake still held by the previous propulsor
func StakedAmountV1Call(account common.Address) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractPropulsorV1,
		Signature: "getStakedAmountByAddr(address)",
		Args:      []any{account},
	}
}

func EarnedAmountCall(account common.Address) CallDescriptor {
	return CallDescriptor{
		Contract:  ContractPropulsor,
		Signature: "getEarnedAmountByAddr(address)",
		Args:      []any{account},
	}
}

// MinStakeCall reads the minimum amount a deposit must reach
func MinStakeCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "getMinStakingToBePropelled()"}
}
