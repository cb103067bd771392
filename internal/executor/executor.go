// Package executor drives on-chain settlement: direct transfers through the
// hop-routing contract, swap-then-route settlements, and refunds. Every
// submit walks the same state machine, Validating through Confirming, and a
// transaction is only ever sent after a read-only simulation succeeded.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/swap"
)

// Backend is the read side of the chain the executor needs. chain.Client
// implements it.
type Backend interface {
	Simulate(ctx context.Context, from, to common.Address, data []byte) error
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	WaitMined(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error)
	EthBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Sender submits signed transactions. chain.Signer implements it.
type Sender interface {
	Address() common.Address
	Send(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (common.Hash, error)
}

// HopView is the routing contract's read surface. chain.HopRouter implements
// it.
type HopView interface {
	Address() common.Address
	Owner(ctx context.Context) (common.Address, error)
	UserBalance(ctx context.Context, token, user common.Address, decimals uint8) (*big.Int, error)
	ContractBalance(ctx context.Context, token common.Address, decimals uint8) (*big.Int, error)
}

// RouteFinder yields the best swap route for a pair. swap.Optimizer
// implements it.
type RouteFinder interface {
	BestRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (swap.Route, error)
}

// Config carries the executor's contract addresses and policies.
type Config struct {
	HeldToken      common.Address // token the service custodies between detect and settle
	HeldDecimals   uint8
	RouterV2       common.Address
	RouterV3       common.Address
	SupportWallet  common.Address
	Slippage       float64
	CommissionPct  int64
	ConfirmTimeout time.Duration
	SettleDelay    time.Duration
	RoutingGas     GasPolicy
	RefundGas      GasPolicy
}

// Executor owns settlement execution. All writes go through the single
// signing wallet; callers serialize concurrent settlements above this layer.
type Executor struct {
	backend Backend
	signer  Sender
	hop     HopView
	routes  RouteFinder
	cfg     Config
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds an Executor.
func New(backend Backend, signer Sender, hop HopView, routes RouteFinder, cfg Config, log *slog.Logger) *Executor {
	return &Executor{
		backend: backend,
		signer:  signer,
		hop:     hop,
		routes:  routes,
		cfg:     cfg,
		log:     log.With(slog.String("component", "executor")),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newAttempt(mode domain.TransferMode) *domain.SettlementAttempt {
	return &domain.SettlementAttempt{
		ID:    uuid.NewString(),
		Mode:  mode,
		State: domain.StateValidating,
	}
}

// run walks one transaction through Simulating → GasEstimating → Submitting
// → Confirming, recording progress on the attempt. The returned receipt is
// non-nil only in StateCompleted.
func (e *Executor) run(ctx context.Context, attempt *domain.SettlementAttempt, to common.Address, data []byte, gas GasPolicy) (*types.Receipt, error) {
	from := e.signer.Address()

	attempt.State = domain.StateSimulating
	if err := e.backend.Simulate(ctx, from, to, data); err != nil {
		e.fail(attempt, err)
		return nil, err
	}

	attempt.State = domain.StateGasEstimating
	estimate, err := e.backend.EstimateGas(ctx, from, to, data)
	if err != nil {
		e.log.WarnContext(ctx, "gas estimate failed, using fallback",
			slog.String("attempt", attempt.ID), slog.Uint64("fallback", gas.Fallback), slog.Any("error", err))
	}
	limit := gas.Limit(estimate, err)

	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		e.fail(attempt, err)
		return nil, err
	}

	attempt.State = domain.StateSubmitting
	hash, err := e.signer.Send(ctx, to, data, limit, gasPrice)
	if err != nil {
		e.fail(attempt, err)
		return nil, fmt.Errorf("submitting transaction: %w", err)
	}
	attempt.TxHash = hash.Hex()

	attempt.State = domain.StateConfirming
	receipt, err := e.backend.WaitMined(ctx, hash, e.cfg.ConfirmTimeout)
	if err != nil {
		e.fail(attempt, err)
		return nil, err
	}
	attempt.BlockNumber = receipt.BlockNumber.Uint64()
	attempt.GasUsed = receipt.GasUsed

	if receipt.Status == types.ReceiptStatusFailed {
		attempt.State = domain.StateReverted
		attempt.Failure = domain.FailureReverted
		return nil, fmt.Errorf("%w: tx %s", domain.ErrReverted, attempt.TxHash)
	}

	attempt.State = domain.StateCompleted
	return receipt, nil
}

// recordRouteID extracts the routing identifier from the receipt's logs.
// The event missing is logged but never fails a settlement, the on-chain
// action already succeeded.
func (e *Executor) recordRouteID(ctx context.Context, attempt *domain.SettlementAttempt, receipt *types.Receipt) {
	if id, ok := chain.ParseRouteCreated(receipt); ok {
		attempt.RouteID = id
		return
	}
	e.log.WarnContext(ctx, "route identifier event not found in receipt",
		slog.String("attempt", attempt.ID), slog.String("tx", attempt.TxHash))
}

func (e *Executor) fail(attempt *domain.SettlementAttempt, err error) {
	attempt.State = domain.StateFailed
	attempt.Failure = domain.ClassifyFailure(err)
}

// ensureAllowance approves spender for amount when the current allowance is
// below it. Approvals ride the refund gas band, they are cheap single-slot
// writes.
func (e *Executor) ensureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	current, err := e.backend.Allowance(ctx, token, e.signer.Address(), spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	data, err := chain.PackApprove(spender, amount)
	if err != nil {
		return fmt.Errorf("packing approve: %w", err)
	}
	attempt := newAttempt(domain.ModeInstant)
	if _, err := e.run(ctx, attempt, token, data, e.cfg.RefundGas); err != nil {
		return fmt.Errorf("approving %s for %s: %w", token.Hex(), spender.Hex(), err)
	}
	e.log.InfoContext(ctx, "allowance granted",
		slog.String("token", token.Hex()), slog.String("spender", spender.Hex()), slog.String("tx", attempt.TxHash))
	return nil
}

func validAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: malformed address %q", domain.ErrValidation, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(amount string, decimals uint8) (*big.Int, error) {
	wei, err := chain.ParseUnits(amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", domain.ErrValidation, amount, err)
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	return wei, nil
}

// applyCommission deducts the configured commission when the request is a
// retry. Returns the payable amount and the retained commission, both in
// token units.
func (e *Executor) applyCommission(amount *big.Int, failedAttempts int) (payable, retained *big.Int) {
	if failedAttempts <= 0 || e.cfg.CommissionPct <= 0 {
		return amount, big.NewInt(0)
	}
	payable = new(big.Int).Mul(amount, big.NewInt(100-e.cfg.CommissionPct))
	payable.Div(payable, big.NewInt(100))
	retained = new(big.Int).Sub(amount, payable)
	return payable, retained
}
