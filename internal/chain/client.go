// Package chain is the JSON-RPC adapter for the payment router. It wraps
// go-ethereum's ethclient with the narrow surface the detector, optimizer,
// and orchestrator need: block height and timestamps, Transfer log queries,
// token reads, quotes, gas estimation, and signed transaction submission
// with a bounded confirmation wait.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// TransferEvent is one decoded ERC-20 Transfer log.
type TransferEvent struct {
	TxHash      common.Hash
	From        common.Address
	To          common.Address
	Amount      *big.Int
	BlockNumber uint64
}

// Client wraps an ethclient connection. All read methods wrap provider
// failures in domain.ErrTransientRPC so callers can retry polls safely.
type Client struct {
	eth *ethclient.Client

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// Dial connects to the JSON-RPC endpoint and verifies it answers a chain id
// request.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("chain: rpc url: %w", domain.ErrConfiguration)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	if _, err := eth.ChainID(ctx); err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	return &Client{eth: eth, decimals: make(map[common.Address]uint8)}, nil
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Eth exposes the raw ethclient for the signer.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

func rpcErr(op string, err error) error {
	return fmt.Errorf("chain: %s: %v: %w", op, err, domain.ErrTransientRPC)
}

// BlockNumber returns the current chain height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, rpcErr("block number", err)
	}
	return n, nil
}

// BlockTime returns the unix timestamp of the given block.
func (c *Client) BlockTime(ctx context.Context, number uint64) (uint64, error) {
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, rpcErr("header by number", err)
	}
	return header.Time, nil
}

// FilterTransfers queries Transfer(from, to) logs on token over the inclusive
// block range. Events are returned in emission order.
func (c *Client) FilterTransfers(ctx context.Context, token, from, to common.Address, fromBlock, toBlock uint64) ([]TransferEvent, error) {
	if fromBlock > toBlock {
		return nil, nil
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics: [][]common.Hash{
			{transferTopic},
			{common.BytesToHash(from.Bytes())},
			{common.BytesToHash(to.Bytes())},
		},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, rpcErr("filter transfers", err)
	}

	events := make([]TransferEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 || len(lg.Data) < 32 {
			continue
		}
		events = append(events, TransferEvent{
			TxHash:      lg.TxHash,
			From:        common.BytesToAddress(lg.Topics[1].Bytes()),
			To:          common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount:      new(big.Int).SetBytes(lg.Data[:32]),
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

// TokenDecimals reads a token's decimals, caching the answer. The zero value
// on error lets the caller apply its own default.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.RLock()
	d, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	out, err := c.call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	d = out[0].(uint8)

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()
	return d, nil
}

// TokenBalance reads balanceOf(holder) on token.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, erc20ABI, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance reads allowance(owner, spender) on token.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// EthBalance reads the native balance of addr.
func (c *Client) EthBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, rpcErr("balance at", err)
	}
	return bal, nil
}

// SuggestGasPrice returns the provider's current fee suggestion. There is no
// escalation strategy for stalled transactions.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, rpcErr("suggest gas price", err)
	}
	return price, nil
}

// call performs a read-only contract call and unpacks the outputs.
func (c *Client) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	ret, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, rpcErr("call "+method, err)
	}
	out, err := contract.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s returned no values", method)
	}
	return out, nil
}

// Simulate performs a read-only call of the intended transaction from the
// given sender. A revert surfaces as domain.ErrSimulationFailed with the
// decoded reason where the provider exposes one.
func (c *Client) Simulate(ctx context.Context, from, to common.Address, data []byte) error {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	if _, err := c.eth.CallContract(ctx, msg, nil); err != nil {
		return fmt.Errorf("chain: %s: %w", revertReason(err), domain.ErrSimulationFailed)
	}
	return nil
}

// EstimateGas estimates the gas a transaction would consume.
func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, rpcErr("estimate gas", err)
	}
	return gas, nil
}

// WaitMined polls for the receipt of hash until it appears or the timeout
// elapses. Exceeding the budget returns domain.ErrConfirmTimeout.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		// ethereum.NotFound means not yet mined; anything else is a provider
		// hiccup. Keep polling until the deadline either way.
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("chain: tx %s not mined after %s: %w", hash.Hex(), timeout, domain.ErrConfirmTimeout)
		case <-ticker.C:
		}
	}
}

// revertReason extracts the useful tail of a provider revert error.
func revertReason(err error) string {
	s := err.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}

// ParseRouteCreated scans receipt logs for the hop router's RouteCreated
// event and returns the route id, or false when the event is absent.
func ParseRouteCreated(receipt *types.Receipt) (string, bool) {
	eventID := hopRouterABI.Events["RouteCreated"].ID
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != eventID {
			continue
		}
		vals, err := hopRouterABI.Unpack("RouteCreated", lg.Data)
		if err != nil || len(vals) == 0 {
			continue
		}
		if id, ok := vals[0].(*big.Int); ok {
			return id.String(), true
		}
	}
	return "", false
}
