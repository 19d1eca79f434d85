package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// StakerPropelledEvent is emitted by the propulsor when a staker wins a propulsion
const StakerPropelledEvent = "StakerPropelled(address,uint256)"

// StakerPropelledTopic is the log topic of StakerPropelledEvent
var StakerPropelledTopic = EventTopic(StakerPropelledEvent)

// EventTopic returns the topic hash of a Solidity event signature
func EventTopic(signature string) common.Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	return common.BytesToHash(hash.Sum(nil))
}

// Propulsion is one StakerPropelled log
type Propulsion struct {
	TxHash      string
	BlockNumber uint64
	Astronaut   string
	FuelEarned  *big.Int
	// Timestamp is zero when the block header could not be read
	Timestamp time.Time
}

// BlocksBetweenPropulsionCall reads how many blocks separate two propulsions
func BlocksBetweenPropulsionCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "getBlocksBetweenPropulsion()"}
}

// LastPropulsionBlockCall reads the block of the latest propulsion
func LastPropulsionBlockCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "getBlockLastPropulsion()"}
}

// FuelToWinCall reads the reward of the next propulsion
func FuelToWinCall() CallDescriptor {
	return CallDescriptor{Contract: ContractPropulsor, Signature: "getFuelToWin()"}
}
