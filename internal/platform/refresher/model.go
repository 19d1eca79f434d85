package refresher

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// Quantity is one on-chain value shown on the staking page
type Quantity string

const (
	QuantityBalance     Quantity = "balance"
	QuantityAllowance   Quantity = "allowance"
	QuantityStaked      Quantity = "staked"
	QuantityStakedV1    Quantity = "staked_v1"
	QuantityEarned      Quantity = "earned"
	QuantityMinStake    Quantity = "min_stake"
	QuantityTotalSupply Quantity = "total_supply"
)

// AllQuantities is what a full refresh reads
var AllQuantities = []Quantity{
	QuantityBalance,
	QuantityAllowance,
	QuantityStaked,
	QuantityStakedV1,
	QuantityEarned,
	QuantityMinStake,
	QuantityTotalSupply,
}

// QuantitiesFor returns the values a confirmed transaction of subject can change
func QuantitiesFor(subject txledger.Subject) []Quantity {
	switch subject {
	case txledger.SubjectApprove:
		return []Quantity{QuantityAllowance}
	case txledger.SubjectDeposit, txledger.SubjectWithdraw:
		return []Quantity{QuantityBalance, QuantityStaked, QuantityEarned, QuantityTotalSupply}
	case txledger.SubjectMigrate:
		return []Quantity{QuantityBalance, QuantityStaked, QuantityStakedV1, QuantityEarned, QuantityTotalSupply}
	}
	return nil
}

// call returns the view call reading q for account
func (q Quantity) call(account common.Address) (chain.CallDescriptor, bool) {
	switch q {
	case QuantityBalance:
		return chain.BalanceOfCall(account), true
	case QuantityAllowance:
		return chain.AllowanceCall(account), true
	case QuantityStaked:
		return chain.StakedAmountCall(account), true
	case QuantityStakedV1:
		return chain.StakedAmountV1Call(account), true
	case QuantityEarned:
		return chain.EarnedAmountCall(account), true
	case QuantityMinStake:
		return chain.MinStakeCall(), true
	case QuantityTotalSupply:
		return chain.TotalSupplyCall(), true
	}
	return chain.CallDescriptor{}, false
}

// Stats is the cached view of one account on one chain
type Stats struct {
	Account     string                `json:"account"`
	ChainID     int64                 `json:"chainId"`
	Values      map[Quantity]*big.Int `json:"values"`
	BlockNumber uint64                `json:"blockNumber"`
	RefreshedAt time.Time             `json:"refreshedAt"`
}

// Value returns q or nil when it was never read
func (s *Stats) Value(q Quantity) *big.Int {
	if s == nil || s.Values == nil {
		return nil
	}
	return s.Values[q]
}

func (s *Stats) clone() *Stats {
	out := &Stats{
		Account:     s.Account,
		ChainID:     s.ChainID,
		Values:      make(map[Quantity]*big.Int, len(s.Values)),
		BlockNumber: s.BlockNumber,
		RefreshedAt: s.RefreshedAt,
	}
	for q, v := range s.Values {
		out.Values[q] = new(big.Int).Set(v)
	}
	return out
}
