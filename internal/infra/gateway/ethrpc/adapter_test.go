package ethrpc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/internal/infra/gateway/ethrpc"
	"github.com/loworbit/txtrack/internal/platform/chain"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var (
	tokenAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	propulsorAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
	gwei          = big.NewInt(1_000_000_000)
)

// MockBackend is a mock implementation of ethrpc.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Header), args.Error(1)
}

func (m *MockBackend) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Header), args.Error(1)
}

func (m *MockBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Log), args.Error(1)
}

func (m *MockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *MockBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*types.Transaction), args.Bool(1), args.Error(2)
}

func (m *MockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var _ ethrpc.Backend = (*MockBackend)(nil)

// jsonRPCError mimics an error object returned by a node
type jsonRPCError struct {
	code int
	msg  string
	data any
}

func (e *jsonRPCError) Error() string  { return e.msg }
func (e *jsonRPCError) ErrorCode() int { return e.code }
func (e *jsonRPCError) ErrorData() any { return e.data }

func newAdapter(t *testing.T, backend ethrpc.Backend) (*ethrpc.Adapter, *ethrpc.KeySigner, *clock.Mock) {
	t.Helper()
	signer, err := ethrpc.NewKeySigner(testKey)
	require.NoError(t, err)

	clk := clock.NewMock()
	cfg := &ethrpc.Config{
		ChainID: 1,
		Contracts: map[chain.ContractRole]common.Address{
			chain.ContractToken:     tokenAddr,
			chain.ContractPropulsor: propulsorAddr,
		},
		PollInterval: 4 * time.Second,
	}
	a, err := ethrpc.New(cfg, backend, signer, nil, nil, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return a, signer, clk
}

func expectFees(backend *MockBackend) {
	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(7), nil)
	backend.On("SuggestGasTipCap", mock.Anything).Return(new(big.Int).Set(gwei), nil)
	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).
		Return(&types.Header{BaseFee: new(big.Int).Mul(gwei, big.NewInt(10))}, nil)
}

func TestNewKeySigner(t *testing.T) {
	signer, err := ethrpc.NewKeySigner("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7"), signer.Address())

	_, err = ethrpc.NewKeySigner("zz")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &ethrpc.Config{ChainID: 1}
	assert.Error(t, cfg.Validate())

	cfg.Contracts = map[chain.ContractRole]common.Address{
		chain.ContractToken:     tokenAddr,
		chain.ContractPropulsor: propulsorAddr,
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
}

func TestAdapter_SubmitBuildsDynamicFeeTx(t *testing.T) {
	backend := new(MockBackend)
	expectFees(backend)
	backend.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return *msg.To == tokenAddr
	})).Return(uint64(50_000), nil)

	var sent *types.Transaction
	backend.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
		Return(nil)

	a, signer, _ := newAdapter(t, backend)
	res, err := a.Submit(context.Background(), chain.ApproveCall(nil))
	require.NoError(t, err)
	require.NotNil(t, sent)

	assert.Equal(t, sent.Hash().Hex(), res.ID)
	assert.Equal(t, int64(1), res.ChainID)
	assert.Equal(t, signer.Address().Hex(), res.Account)

	assert.Equal(t, uint8(types.DynamicFeeTxType), sent.Type())
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(60_000), sent.Gas())
	assert.Equal(t, 0, sent.GasTipCap().Cmp(gwei))
	assert.Equal(t, 0, sent.GasFeeCap().Cmp(new(big.Int).Mul(gwei, big.NewInt(21))))
	assert.Equal(t, tokenAddr, *sent.To())
	assert.Equal(t, "0x095ea7b3", hexutil.Encode(sent.Data()[:4]))

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), sent)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
}

func TestAdapter_SubmitUserRejection(t *testing.T) {
	backend := new(MockBackend)
	expectFees(backend)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).
		Return(&jsonRPCError{code: 4001, msg: "User denied transaction signature"})

	a, _, _ := newAdapter(t, backend)
	_, err := a.Submit(context.Background(), chain.WithdrawCall())
	assert.ErrorIs(t, err, chain.ErrRejectedByUser)
}

func TestAdapter_SubmitFailure(t *testing.T) {
	backend := new(MockBackend)
	expectFees(backend)
	backend.On("EstimateGas", mock.Anything, mock.Anything).
		Return(uint64(0), errors.New("execution reverted: Amount too low"))

	a, _, _ := newAdapter(t, backend)
	_, err := a.Submit(context.Background(), chain.DepositCall(big.NewInt(1)))

	assert.True(t, chain.IsSubmission(err))
	assert.Contains(t, err.Error(), "Amount too low")
	backend.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestAdapter_UnknownContract(t *testing.T) {
	backend := new(MockBackend)
	a, signer, _ := newAdapter(t, backend)

	_, err := a.Read(context.Background(), chain.StakedAmountV1Call(signer.Address()))
	assert.ErrorIs(t, err, chain.ErrUnknownContract)
	backend.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdapter_WaitForConfirmationPollsUntilMined(t *testing.T) {
	backend := new(MockBackend)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound).Twice()
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1234)}, nil).Once()

	a, _, clk := newAdapter(t, backend)
	done := make(chan chain.TerminalResult, 1)
	go func() {
		res, err := a.WaitForConfirmation(context.Background(), common.HexToHash("0xabc").Hex())
		assert.NoError(t, err)
		done <- res
	}()

	var res chain.TerminalResult
	require.Eventually(t, func() bool {
		select {
		case res = <-done:
			return true
		default:
			clk.Add(4 * time.Second)
			return false
		}
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, chain.TerminalSuccess, res.Status)
	assert.Equal(t, uint64(1234), res.BlockNumber)
	backend.AssertNumberOfCalls(t, "TransactionReceipt", 3)
}

func TestAdapter_WaitForConfirmationRecoversRevertReason(t *testing.T) {
	backend := new(MockBackend)
	a, signer, _ := newAdapter(t, backend)

	tx, err := signer.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: gwei,
		GasFeeCap: gwei,
		Gas:       100_000,
		To:        &propulsorAddr,
		Value:     new(big.Int),
		Data:      []byte{0x3c, 0xcf, 0xd6, 0x0b},
	}), big.NewInt(1))
	require.NoError(t, err)

	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack("Nothing to withdraw")
	require.NoError(t, err)
	revertData := append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)

	backend.On("TransactionReceipt", mock.Anything, tx.Hash()).
		Return(&types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(50)}, nil)
	backend.On("TransactionByHash", mock.Anything, tx.Hash()).Return(tx, false, nil)
	backend.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.From == signer.Address() && *msg.To == propulsorAddr
	}), big.NewInt(49)).
		Return(nil, &jsonRPCError{code: 3, msg: "execution reverted", data: hexutil.Encode(revertData)})

	res, err := a.WaitForConfirmation(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, chain.TerminalReverted, res.Status)
	assert.Equal(t, "Nothing to withdraw", res.RevertReason)
	assert.Equal(t, uint64(50), res.BlockNumber)
}

func TestAdapter_WaitForConfirmationErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), permanent: false},
		{name: "internal error", err: &jsonRPCError{code: -32603, msg: "internal error"}, permanent: false},
		{name: "rate limited", err: &jsonRPCError{code: -32005, msg: "limit exceeded"}, permanent: false},
		{name: "invalid params", err: &jsonRPCError{code: -32602, msg: "invalid argument"}, permanent: true},
		{name: "method not found", err: &jsonRPCError{code: -32601, msg: "method not found"}, permanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockBackend)
			backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, tt.err)
			a, _, _ := newAdapter(t, backend)

			_, err := a.WaitForConfirmation(context.Background(), common.HexToHash("0x1").Hex())
			assert.Equal(t, tt.permanent, chain.IsPermanent(err))
			assert.Equal(t, !tt.permanent, chain.IsTransient(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAdapter_WaitForConfirmationMalformedHash(t *testing.T) {
	a, _, _ := newAdapter(t, new(MockBackend))

	for _, id := range []string{"", "0xA", "not-a-hash", "0x1234"} {
		_, err := a.WaitForConfirmation(context.Background(), id)
		assert.True(t, chain.IsPermanent(err), id)
	}
}

func TestAdapter_WaitForConfirmationCancelled(t *testing.T) {
	backend := new(MockBackend)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
	a, _, _ := newAdapter(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.WaitForConfirmation(ctx, common.HexToHash("0x1").Hex())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_Read(t *testing.T) {
	backend := new(MockBackend)
	backend.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return *msg.To == tokenAddr && hexutil.Encode(msg.Data[:4]) == "0x70a08231"
	}), (*big.Int)(nil)).Return(common.LeftPadBytes(big.NewInt(500).Bytes(), 32), nil)

	a, signer, _ := newAdapter(t, backend)
	v, err := a.Read(context.Background(), chain.BalanceOfCall(signer.Address()))
	require.NoError(t, err)
	assert.Equal(t, int64(500), v.Int64())
}

func TestAdapter_CurrentBlockIsMonotonic(t *testing.T) {
	backend := new(MockBackend)
	backend.On("BlockNumber", mock.Anything).Return(uint64(100), nil).Once()
	backend.On("BlockNumber", mock.Anything).Return(uint64(98), nil).Once()

	a, _, _ := newAdapter(t, backend)
	first, err := a.CurrentBlock(context.Background())
	require.NoError(t, err)
	second, err := a.CurrentBlock(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(100), first)
	assert.Equal(t, uint64(100), second)
}

func TestAdapter_VerifyChain(t *testing.T) {
	backend := new(MockBackend)
	backend.On("ChainID", mock.Anything).Return(big.NewInt(3), nil).Once()
	backend.On("ChainID", mock.Anything).Return(big.NewInt(1), nil).Once()

	a, _, _ := newAdapter(t, backend)
	assert.True(t, chain.IsPermanent(a.VerifyChain(context.Background())))
	assert.NoError(t, a.VerifyChain(context.Background()))
}

func TestAdapter_ReadAccountContext(t *testing.T) {
	a, signer, _ := newAdapter(t, new(MockBackend))
	ac, err := a.ReadAccountContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), ac.Account)
	assert.Equal(t, int64(1), ac.ChainID)
}

func TestAdapter_Propulsions(t *testing.T) {
	astronaut := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	other := common.HexToAddress("0x5555555555555555555555555555555555555555")
	blockA := common.HexToHash("0xaa")
	blockB := common.HexToHash("0xbb")
	fuel := func(n int64) []byte { return common.LeftPadBytes(big.NewInt(n).Bytes(), 32) }

	logs := []types.Log{
		{
			// indexed astronaut
			Topics:      []common.Hash{chain.StakerPropelledTopic, common.BytesToHash(astronaut.Bytes())},
			Data:        fuel(40),
			BlockNumber: 90,
			BlockHash:   blockA,
			TxHash:      common.HexToHash("0x01"),
		},
		{
			// both values in data
			Topics:      []common.Hash{chain.StakerPropelledTopic},
			Data:        append(common.LeftPadBytes(other.Bytes(), 32), fuel(25)...),
			BlockNumber: 90,
			BlockHash:   blockA,
			TxHash:      common.HexToHash("0x02"),
		},
		{
			Topics:      []common.Hash{chain.StakerPropelledTopic},
			Data:        fuel(1),
			BlockNumber: 95,
			BlockHash:   blockB,
			TxHash:      common.HexToHash("0x03"),
		},
		{
			Topics:      []common.Hash{chain.StakerPropelledTopic, common.BytesToHash(astronaut.Bytes())},
			Data:        fuel(7),
			BlockNumber: 96,
			BlockHash:   blockB,
			TxHash:      common.HexToHash("0x04"),
			Removed:     true,
		},
	}

	backend := new(MockBackend)
	backend.On("FilterLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return q.FromBlock.Uint64() == 80 && q.ToBlock.Uint64() == 100 &&
			len(q.Addresses) == 1 && q.Addresses[0] == propulsorAddr &&
			q.Topics[0][0] == chain.StakerPropelledTopic
	})).Return(logs, nil)
	backend.On("HeaderByHash", mock.Anything, blockA).Return(&types.Header{Time: 1_620_000_000}, nil).Once()

	a, _, _ := newAdapter(t, backend)
	got, err := a.Propulsions(context.Background(), 80, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, astronaut.Hex(), got[0].Astronaut)
	assert.Equal(t, int64(40), got[0].FuelEarned.Int64())
	assert.Equal(t, common.HexToHash("0x01").Hex(), got[0].TxHash)
	assert.Equal(t, time.Unix(1_620_000_000, 0).UTC(), got[0].Timestamp)

	assert.Equal(t, other.Hex(), got[1].Astronaut)
	assert.Equal(t, int64(25), got[1].FuelEarned.Int64())
	assert.Equal(t, uint64(90), got[1].BlockNumber)
	backend.AssertExpectations(t)
}

func TestAdapter_PropulsionsFilterError(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FilterLogs", mock.Anything, mock.Anything).Return(nil, errors.New("query returned more than 10000 results"))

	a, _, _ := newAdapter(t, backend)
	_, err := a.Propulsions(context.Background(), 0, 100)
	assert.ErrorContains(t, err, "failed to filter propulsion logs")
}
