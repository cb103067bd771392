package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/swap"
)

// v2 fee-on-transfer fallback bypasses estimation, the plain variant's
// estimate already failed by then.
const feeOnTransferGasLimit = 500_000

// SwapRequest converts held tokens to TokenOut and routes the proceeds to
// the recipient. FailedAttempts above zero marks a retry and triggers the
// commission.
type SwapRequest struct {
	AmountIn       string
	TokenOut       string
	Recipient      string
	TokenDecimals  uint8 // decimals of TokenOut
	TokenSymbol    string
	FailedAttempts int
}

// SwapResult reports the outcome of a swap settlement. When Refunded is set
// the swap failed after funds were held and the refund fields describe the
// compensating transfer.
type SwapResult struct {
	SwapMethod         string
	SwapPath           []string
	TokensReceived     string
	RouteID            string
	SwapTxHash         string
	RouteTxHash        string
	Refunded           bool
	RefundTxHash       string
	RefundAmount       string
	CommissionRetained string
}

// Swap runs the full swap settlement: pick the best route, approve and
// execute the swap, measure the real proceeds, then deposit and route them.
// Any failure after validation refunds the originally held amount.
func (e *Executor) Swap(ctx context.Context, req SwapRequest) (SwapResult, *domain.SettlementAttempt, error) {
	attempt := newAttempt(domain.ModeInstant)

	recipient, err := validAddress(req.Recipient)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, attempt, err
	}
	tokenOut, err := validAddress(req.TokenOut)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, attempt, err
	}
	outDecimals := req.TokenDecimals
	if outDecimals == 0 {
		outDecimals = 18
	}
	held, err := parseAmount(req.AmountIn, e.cfg.HeldDecimals)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, attempt, err
	}

	payable, retained := e.applyCommission(held, req.FailedAttempts)

	balance, err := e.backend.TokenBalance(ctx, e.cfg.HeldToken, e.signer.Address())
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, attempt, err
	}
	if balance.Cmp(payable) < 0 {
		err := fmt.Errorf("%w: held balance %s below settlement amount %s",
			domain.ErrConfiguration, balance, payable)
		e.fail(attempt, err)
		return SwapResult{}, attempt, err
	}

	result, err := e.swapAndRoute(ctx, attempt, tokenOut, outDecimals, recipient, payable)
	if err == nil {
		result.CommissionRetained = chain.FormatUnits(retained, e.cfg.HeldDecimals)
		return result, attempt, nil
	}

	// The swap leg failed while we hold the client's funds. Compensate with
	// a refund of the payable amount; commission was already taken above.
	e.log.ErrorContext(ctx, "swap settlement failed, refunding",
		slog.String("attempt", attempt.ID), slog.Any("error", err))

	refund, _, refundErr := e.Refund(ctx, RefundRequest{
		Amount:         chain.FormatUnits(payable, e.cfg.HeldDecimals),
		OriginalSender: req.Recipient,
	})
	if refundErr != nil {
		return SwapResult{}, attempt, errors.Join(err, fmt.Errorf("refund also failed: %w", refundErr))
	}
	return SwapResult{
		Refunded:           true,
		RefundTxHash:       refund.TxHash,
		RefundAmount:       refund.Amount,
		CommissionRetained: chain.FormatUnits(retained, e.cfg.HeldDecimals),
	}, attempt, err
}

// swapAndRoute performs the ordered steps: allowance for the venue, swap,
// balance delta, allowance for the routing contract, deposit, route.
func (e *Executor) swapAndRoute(ctx context.Context, attempt *domain.SettlementAttempt, tokenOut common.Address, outDecimals uint8, recipient common.Address, amountIn *big.Int) (SwapResult, error) {
	route, err := e.routes.BestRoute(ctx, e.cfg.HeldToken, tokenOut, amountIn)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}
	minOut := swap.MinOut(route.ExpectedOut, e.cfg.Slippage)

	venue := e.cfg.RouterV2
	if route.Venue == swap.VenueV3 {
		venue = e.cfg.RouterV3
	}
	if err := e.ensureAllowance(ctx, e.cfg.HeldToken, venue, amountIn); err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}

	before, err := e.backend.TokenBalance(ctx, tokenOut, e.signer.Address())
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}

	swapTx, swapMethod, err := e.executeSwap(ctx, route, amountIn, minOut)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}

	after, err := e.backend.TokenBalance(ctx, tokenOut, e.signer.Address())
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}
	received := new(big.Int).Sub(after, before)
	if received.Sign() <= 0 {
		err := fmt.Errorf("%w: swap produced no output tokens", domain.ErrReverted)
		e.fail(attempt, err)
		return SwapResult{}, err
	}

	if err := e.ensureAllowance(ctx, tokenOut, e.hop.Address(), received); err != nil {
		e.fail(attempt, err)
		return SwapResult{}, err
	}

	depositData, err := chain.PackHopDeposit(tokenOut, received, outDecimals)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, fmt.Errorf("packing deposit: %w", err)
	}
	depositAttempt := newAttempt(domain.ModeInstant)
	if _, err := e.run(ctx, depositAttempt, e.hop.Address(), depositData, e.cfg.RoutingGas); err != nil {
		e.fail(attempt, err)
		return SwapResult{}, fmt.Errorf("depositing proceeds: %w", err)
	}

	routeData, err := chain.PackHopInstant(tokenOut, recipient, received, outDecimals)
	if err != nil {
		e.fail(attempt, err)
		return SwapResult{}, fmt.Errorf("packing routing call: %w", err)
	}
	receipt, err := e.run(ctx, attempt, e.hop.Address(), routeData, e.cfg.RoutingGas)
	if err != nil {
		return SwapResult{}, err
	}
	e.recordRouteID(ctx, attempt, receipt)

	path := make([]string, len(route.Path))
	for i, a := range route.Path {
		path[i] = a.Hex()
	}
	e.log.InfoContext(ctx, "swap settlement completed",
		slog.String("method", swapMethod),
		slog.String("received", chain.FormatUnits(received, outDecimals)),
		slog.String("route_tx", attempt.TxHash))

	return SwapResult{
		SwapMethod:     swapMethod,
		SwapPath:       path,
		TokensReceived: chain.FormatUnits(received, outDecimals),
		RouteID:        attempt.RouteID,
		SwapTxHash:     swapTx,
		RouteTxHash:    attempt.TxHash,
	}, nil
}

// executeSwap submits the winning route's swap call. The V2 plain variant
// falls back to the fee-on-transfer variant at a fixed gas limit when it
// fails, some tokens take a transfer cut that breaks the plain path's
// output accounting.
func (e *Executor) executeSwap(ctx context.Context, route swap.Route, amountIn, minOut *big.Int) (txHash, method string, err error) {
	to := e.signer.Address()

	if route.Venue == swap.VenueV2 {
		deadline := big.NewInt(time.Now().Add(20 * time.Minute).Unix())
		data, err := chain.PackV2Swap(amountIn, minOut, route.Path, to, deadline)
		if err != nil {
			return "", "", fmt.Errorf("packing v2 swap: %w", err)
		}
		attempt := newAttempt(domain.ModeInstant)
		if _, err = e.run(ctx, attempt, e.cfg.RouterV2, data, e.cfg.RoutingGas); err == nil {
			return attempt.TxHash, "swapExactTokensForTokens", nil
		}
		e.log.WarnContext(ctx, "v2 swap failed, retrying fee-on-transfer variant", slog.Any("error", err))

		data, err = chain.PackV2SwapFeeOnTransfer(amountIn, minOut, route.Path, to, deadline)
		if err != nil {
			return "", "", fmt.Errorf("packing fee-on-transfer swap: %w", err)
		}
		fallback := newAttempt(domain.ModeInstant)
		if err := e.submitFixedGas(ctx, fallback, e.cfg.RouterV2, data, feeOnTransferGasLimit); err != nil {
			return "", "", err
		}
		return fallback.TxHash, "swapExactTokensForTokensSupportingFeeOnTransferTokens", nil
	}

	if len(route.Path) == 2 {
		data, err := chain.PackV3ExactInputSingle(route.Path[0], route.Path[1], route.Fees[0], to, amountIn, minOut)
		if err != nil {
			return "", "", fmt.Errorf("packing v3 swap: %w", err)
		}
		attempt := newAttempt(domain.ModeInstant)
		if _, err := e.run(ctx, attempt, e.cfg.RouterV3, data, e.cfg.RoutingGas); err != nil {
			return "", "", err
		}
		return attempt.TxHash, "exactInputSingle", nil
	}

	encoded, err := swap.EncodePath(route.Path, route.Fees)
	if err != nil {
		return "", "", fmt.Errorf("encoding v3 path: %w", err)
	}
	data, err := chain.PackV3ExactInput(encoded, to, amountIn, minOut)
	if err != nil {
		return "", "", fmt.Errorf("packing v3 path swap: %w", err)
	}
	attempt := newAttempt(domain.ModeInstant)
	if _, err := e.run(ctx, attempt, e.cfg.RouterV3, data, e.cfg.RoutingGas); err != nil {
		return "", "", err
	}
	return attempt.TxHash, "exactInput", nil
}

// submitFixedGas sends with a fixed gas limit, skipping simulation and
// estimation.
func (e *Executor) submitFixedGas(ctx context.Context, attempt *domain.SettlementAttempt, to common.Address, data []byte, gasLimit uint64) error {
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		e.fail(attempt, err)
		return err
	}
	attempt.State = domain.StateSubmitting
	hash, err := e.signer.Send(ctx, to, data, gasLimit, gasPrice)
	if err != nil {
		e.fail(attempt, err)
		return fmt.Errorf("submitting transaction: %w", err)
	}
	attempt.TxHash = hash.Hex()

	attempt.State = domain.StateConfirming
	receipt, err := e.backend.WaitMined(ctx, hash, e.cfg.ConfirmTimeout)
	if err != nil {
		e.fail(attempt, err)
		return err
	}
	attempt.BlockNumber = receipt.BlockNumber.Uint64()
	attempt.GasUsed = receipt.GasUsed
	if receipt.Status == 0 {
		attempt.State = domain.StateReverted
		attempt.Failure = domain.FailureReverted
		return fmt.Errorf("%w: tx %s", domain.ErrReverted, attempt.TxHash)
	}
	attempt.State = domain.StateCompleted
	return nil
}
