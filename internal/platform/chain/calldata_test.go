package chain_test

import (
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/internal/platform/chain"
)

var (
	propulsorAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	holder        = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
)

func resolver(role chain.ContractRole) (common.Address, error) {
	if role == chain.ContractPropulsor {
		return propulsorAddr, nil
	}
	return common.Address{}, chain.ErrUnknownContract
}

func TestSelector_KnownValues(t *testing.T) {
	tests := map[string]string{
		"approve(address,uint256)":   "095ea7b3",
		"balanceOf(address)":         "70a08231",
		"totalSupply()":              "18160ddd",
		"allowance(address,address)": "dd62ed3e",
		"withdraw()":                 "3ccfd60b",
		"deposit(uint256)":           "b6b55f25",
	}

	for sig, want := range tests {
		t.Run(sig, func(t *testing.T) {
			sel := chain.Selector(sig)
			assert.Equal(t, want, hex.EncodeToString(sel[:]))
		})
	}
}

func TestEncodeCall_Approve(t *testing.T) {
	data, err := chain.EncodeCall(chain.ApproveCall(nil), resolver)
	require.NoError(t, err)
	require.Len(t, data, 4+64)

	assert.Equal(t, "095ea7b3", hex.EncodeToString(data[:4]))
	assert.Equal(t, propulsorAddr.Bytes(), data[4+12:4+32])
	assert.Equal(t, 0, chain.DefaultApproveAmount.Cmp(new(big.Int).SetBytes(data[36:68])))
}

func TestEncodeCall_AllowanceUsesOwnerThenSpender(t *testing.T) {
	data, err := chain.EncodeCall(chain.AllowanceCall(holder), resolver)
	require.NoError(t, err)

	assert.Equal(t, holder.Bytes(), data[4+12:4+32])
	assert.Equal(t, propulsorAddr.Bytes(), data[36+12:36+32])
}

func TestEncodeCall_NoArguments(t *testing.T) {
	data, err := chain.EncodeCall(chain.WithdrawCall(), resolver)
	require.NoError(t, err)
	assert.Equal(t, "3ccfd60b", hex.EncodeToString(data))
}

func TestEncodeCall_Errors(t *testing.T) {
	tests := []struct {
		name string
		call chain.CallDescriptor
		want error
	}{
		{
			name: "argument count mismatch",
			call: chain.CallDescriptor{Contract: chain.ContractPropulsor, Signature: "deposit(uint256)"},
			want: chain.ErrInvalidArgument,
		},
		{
			name: "negative amount",
			call: chain.DepositCall(big.NewInt(-1)),
			want: chain.ErrInvalidArgument,
		},
		{
			name: "nil amount",
			call: chain.DepositCall(nil),
			want: chain.ErrInvalidArgument,
		},
		{
			name: "unsupported type",
			call: chain.CallDescriptor{Signature: "deposit(uint256)", Args: []any{"10"}},
			want: chain.ErrInvalidArgument,
		},
		{
			name: "unresolvable role",
			call: chain.CallDescriptor{Signature: "balanceOf(address)", Args: []any{chain.ContractPropulsorV1}},
			want: chain.ErrUnknownContract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chain.EncodeCall(tt.call, resolver)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeUint256(t *testing.T) {
	word := common.LeftPadBytes(big.NewInt(42).Bytes(), 32)
	v, err := chain.DecodeUint256(word)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	_, err = chain.DecodeUint256([]byte{1, 2})
	assert.Error(t, err)
}

func TestCallDescriptor_Method(t *testing.T) {
	assert.Equal(t, "getStakedAmountByAddr", chain.StakedAmountCall(holder).Method())
	assert.Equal(t, "propulsor_v1.getStakedAmountByAddr", chain.StakedAmountV1Call(holder).String())
}

func TestBlockNumbers_Monotonic(t *testing.T) {
	b := chain.NewBlockNumbers()

	assert.Equal(t, uint64(100), b.Observe(1, 100))
	assert.Equal(t, uint64(100), b.Observe(1, 90))
	assert.Equal(t, uint64(120), b.Observe(1, 120))
	assert.Equal(t, uint64(5), b.Observe(3, 5))

	n, ok := b.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(120), n)

	_, ok = b.Get(42)
	assert.False(t, ok)
}

func TestBlockNumbers_ConcurrentObserve(t *testing.T) {
	b := chain.NewBlockNumbers()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			b.Observe(1, n)
		}(uint64(i))
	}
	wg.Wait()

	n, _ := b.Get(1)
	assert.Equal(t, uint64(50), n)
}

func TestErrorKinds(t *testing.T) {
	inner := errors.New("connection reset")

	transient := error(&chain.TransientNetworkError{Err: inner})
	assert.True(t, chain.IsTransient(transient))
	assert.False(t, chain.IsPermanent(transient))
	assert.ErrorIs(t, transient, inner)

	permanent := error(&chain.PermanentAdapterError{Err: inner})
	assert.True(t, chain.IsPermanent(permanent))
	assert.False(t, chain.IsTransient(permanent))

	submission := error(&chain.SubmissionError{Err: inner})
	assert.True(t, chain.IsSubmission(submission))
	assert.Contains(t, submission.Error(), "connection reset")
}

func TestAccountContext_Matches(t *testing.T) {
	ctx := chain.AccountContext{Account: holder.Hex(), ChainID: 1}

	assert.True(t, ctx.Matches("0x742d35cc6634c0532925a3b844bc454e4438f44e", 1))
	assert.False(t, ctx.Matches(holder.Hex(), 3))
	assert.False(t, ctx.Matches("0x0000000000000000000000000000000000000001", 1))
}

func TestEventTopic_KnownValue(t *testing.T) {
	topic := chain.EventTopic("Transfer(address,address,uint256)")
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", topic.Hex())
	assert.Equal(t, chain.EventTopic(chain.StakerPropelledEvent), chain.StakerPropelledTopic)
}

func TestEncodeCall_PropulsionViews(t *testing.T) {
	for _, call := range []chain.CallDescriptor{
		chain.BlocksBetweenPropulsionCall(),
		chain.LastPropulsionBlockCall(),
		chain.FuelToWinCall(),
	} {
		data, err := chain.EncodeCall(call, resolver)
		require.NoError(t, err)
		sel := chain.Selector(call.Signature)
		assert.Equal(t, sel[:], data, call.String())
	}
}
