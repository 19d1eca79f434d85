// Package ethrpc implements the chain adapter over an Ethereum JSON-RPC node.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/loworbit/txtrack/internal/platform/chain"
)

// Backend is the subset of *ethclient.Client the adapter uses
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Config holds configuration for the adapter
type Config struct {
	ChainID      int64
	Contracts    map[chain.ContractRole]common.Address
	PollInterval time.Duration
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("chain id is required")
	}
	if _, ok := c.Contracts[chain.ContractToken]; !ok {
		return fmt.Errorf("token contract address is required")
	}
	if _, ok := c.Contracts[chain.ContractPropulsor]; !ok {
		return fmt.Errorf("propulsor contract address is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 4 * time.Second
	}
	return nil
}

// Adapter implements chain.Adapter
type Adapter struct {
	config  *Config
	backend Backend
	signer  Signer
	limiter *rate.Limiter
	blocks  *chain.BlockNumbers
	clock   clock.Clock
	logger  *slog.Logger
	nonceMu sync.Mutex
}

// Dial connects to an Ethereum node
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}
	return client, nil
}

// New creates an adapter. limiter and blocks may be nil.
func New(
	config *Config,
	backend Backend,
	signer Signer,
	limiter *rate.Limiter,
	blocks *chain.BlockNumbers,
	clk clock.Clock,
	logger *slog.Logger,
) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = chain.NewBlockNumbers()
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Adapter{
		config:  config,
		backend: backend,
		signer:  signer,
		limiter: limiter,
		blocks:  blocks,
		clock:   clk,
		logger:  logger.With("component", "ethrpc"),
	}, nil
}

// VerifyChain checks that the node serves the configured chain
func (a *Adapter) VerifyChain(ctx context.Context) error {
	if err := a.throttle(ctx); err != nil {
		return err
	}
	id, err := a.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if id.Int64() != a.config.ChainID {
		return &chain.PermanentAdapterError{
			Err: fmt.Errorf("node serves chain %s, configured for %d", id, a.config.ChainID),
		}
	}
	return nil
}

// ReadAccountContext returns the signer's account on the configured chain
func (a *Adapter) ReadAccountContext(_ context.Context) (chain.AccountContext, error) {
	return chain.AccountContext{
		Account: a.signer.Address().Hex(),
		ChainID: a.config.ChainID,
	}, nil
}

// Submit builds, signs and broadcasts an EIP-1559 transaction for call
func (a *Adapter) Submit(ctx context.Context, call chain.CallDescriptor) (chain.SubmissionResult, error) {
	to, err := a.resolve(call.Contract)
	if err != nil {
		return chain.SubmissionResult{}, &chain.SubmissionError{Err: err}
	}
	data, err := chain.EncodeCall(call, a.resolve)
	if err != nil {
		return chain.SubmissionResult{}, &chain.SubmissionError{Err: err}
	}

	from := a.signer.Address()
	chainID := big.NewInt(a.config.ChainID)

	// Nonce allocation and broadcast must not interleave between submissions
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()

	if err := a.throttle(ctx); err != nil {
		return chain.SubmissionResult{}, submitError(err)
	}
	nonce, err := a.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return chain.SubmissionResult{}, submitError(fmt.Errorf("failed to get nonce: %w", err))
	}

	tip, feeCap, err := a.fees(ctx)
	if err != nil {
		return chain.SubmissionResult{}, submitError(err)
	}

	if err := a.throttle(ctx); err != nil {
		return chain.SubmissionResult{}, submitError(err)
	}
	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})
	if err != nil {
		return chain.SubmissionResult{}, submitError(fmt.Errorf("failed to estimate gas: %w", err))
	}
	gas = gas * 6 / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})

	signed, err := a.signer.SignTx(tx, chainID)
	if err != nil {
		return chain.SubmissionResult{}, submitError(err)
	}

	if err := a.throttle(ctx); err != nil {
		return chain.SubmissionResult{}, submitError(err)
	}
	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		return chain.SubmissionResult{}, submitError(fmt.Errorf("failed to send transaction: %w", err))
	}

	a.logger.Info("transaction sent",
		"tx_hash", signed.Hash().Hex(),
		"call", call.String(),
		"nonce", nonce,
		"gas", gas)

	return chain.SubmissionResult{
		ID:      signed.Hash().Hex(),
		ChainID: a.config.ChainID,
		Account: from.Hex(),
	}, nil
}

// WaitForConfirmation polls for the receipt of id every PollInterval
func (a *Adapter) WaitForConfirmation(ctx context.Context, id string) (chain.TerminalResult, error) {
	raw, err := hexutil.Decode(id)
	if err != nil || len(raw) != common.HashLength {
		return chain.TerminalResult{}, &chain.PermanentAdapterError{
			Err: fmt.Errorf("malformed transaction hash %q", id),
		}
	}
	hash := common.BytesToHash(raw)

	ticker := a.clock.Ticker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := a.throttle(ctx); err != nil {
			return chain.TerminalResult{}, err
		}
		receipt, err := a.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return a.terminal(ctx, hash, receipt), nil
		case errors.Is(err, ethereum.NotFound):
			// not mined yet
		case ctx.Err() != nil:
			return chain.TerminalResult{}, ctx.Err()
		default:
			return chain.TerminalResult{}, waitError(err)
		}

		select {
		case <-ctx.Done():
			return chain.TerminalResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Read runs a view call and decodes its uint256 result
func (a *Adapter) Read(ctx context.Context, call chain.CallDescriptor) (*big.Int, error) {
	to, err := a.resolve(call.Contract)
	if err != nil {
		return nil, err
	}
	data, err := chain.EncodeCall(call, a.resolve)
	if err != nil {
		return nil, err
	}

	if err := a.throttle(ctx); err != nil {
		return nil, err
	}
	out, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call, err)
	}
	return chain.DecodeUint256(out)
}

// CurrentBlock returns the highest block number seen so far on the configured chain
func (a *Adapter) CurrentBlock(ctx context.Context) (uint64, error) {
	if err := a.throttle(ctx); err != nil {
		return 0, err
	}
	n, err := a.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return a.blocks.Observe(a.config.ChainID, n), nil
}

// Propulsions returns the StakerPropelled logs of the propulsor between
// fromBlock and toBlock inclusive, oldest first
func (a *Adapter) Propulsions(ctx context.Context, fromBlock, toBlock uint64) ([]chain.Propulsion, error) {
	addr, err := a.resolve(chain.ContractPropulsor)
	if err != nil {
		return nil, err
	}

	if err := a.throttle(ctx); err != nil {
		return nil, err
	}
	logs, err := a.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{chain.StakerPropelledTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter propulsion logs: %w", err)
	}

	times := make(map[common.Hash]time.Time)
	out := make([]chain.Propulsion, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		p, err := decodePropulsion(l)
		if err != nil {
			a.logger.Warn("skipping malformed propulsion log",
				"tx_hash", l.TxHash.Hex(),
				"error", err)
			continue
		}

		ts, ok := times[l.BlockHash]
		if !ok {
			ts = a.blockTime(ctx, l.BlockHash)
			times[l.BlockHash] = ts
		}
		p.Timestamp = ts

		a.blocks.Observe(a.config.ChainID, l.BlockNumber)
		out = append(out, p)
	}
	return out, nil
}

// blockTime returns the timestamp of a block, or zero when it cannot be read
func (a *Adapter) blockTime(ctx context.Context, hash common.Hash) time.Time {
	if err := a.throttle(ctx); err != nil {
		return time.Time{}
	}
	head, err := a.backend.HeaderByHash(ctx, hash)
	if err != nil {
		a.logger.Warn("failed to load block header", "block_hash", hash.Hex(), "error", err)
		return time.Time{}
	}
	return time.Unix(int64(head.Time), 0).UTC()
}

// decodePropulsion accepts the astronaut either as an indexed topic or as the
// first data word
func decodePropulsion(l types.Log) (chain.Propulsion, error) {
	p := chain.Propulsion{
		TxHash:      l.TxHash.Hex(),
		BlockNumber: l.BlockNumber,
	}

	switch {
	case len(l.Topics) >= 2 && len(l.Data) >= 32:
		p.Astronaut = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
		p.FuelEarned = new(big.Int).SetBytes(l.Data[:32])
	case len(l.Data) >= 64:
		p.Astronaut = common.BytesToAddress(l.Data[12:32]).Hex()
		p.FuelEarned = new(big.Int).SetBytes(l.Data[32:64])
	default:
		return chain.Propulsion{}, fmt.Errorf("unexpected log layout: %d topics, %d data bytes", len(l.Topics), len(l.Data))
	}
	return p, nil
}

func (a *Adapter) terminal(ctx context.Context, hash common.Hash, receipt *types.Receipt) chain.TerminalResult {
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
		a.blocks.Observe(a.config.ChainID, block)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return chain.TerminalResult{Status: chain.TerminalSuccess, BlockNumber: block}
	}

	return chain.TerminalResult{
		Status:       chain.TerminalReverted,
		BlockNumber:  block,
		RevertReason: a.replayRevert(ctx, hash, block),
	}
}

// replayRevert re-executes a reverted transaction on the state it ran against
// to recover the revert reason, which receipts do not carry
func (a *Adapter) replayRevert(ctx context.Context, hash common.Hash, block uint64) string {
	if err := a.throttle(ctx); err != nil {
		return defaultRevertReason
	}
	tx, _, err := a.backend.TransactionByHash(ctx, hash)
	if err != nil {
		a.logger.Warn("failed to load reverted transaction", "tx_hash", hash.Hex(), "error", err)
		return defaultRevertReason
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		from = a.signer.Address()
	}

	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block - 1)
	}

	if err := a.throttle(ctx); err != nil {
		return defaultRevertReason
	}
	_, callErr := a.backend.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, at)
	return revertReason(callErr)
}

func (a *Adapter) fees(ctx context.Context) (*big.Int, *big.Int, error) {
	if err := a.throttle(ctx); err != nil {
		return nil, nil, err
	}
	tip, err := a.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}

	if err := a.throttle(ctx); err != nil {
		return nil, nil, err
	}
	head, err := a.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return tip, feeCap, nil
}

func (a *Adapter) resolve(role chain.ContractRole) (common.Address, error) {
	addr, ok := a.config.Contracts[role]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on chain %d", chain.ErrUnknownContract, role, a.config.ChainID)
	}
	return addr, nil
}

func (a *Adapter) throttle(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

var _ chain.Adapter = (*Adapter)(nil)
