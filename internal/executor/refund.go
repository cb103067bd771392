package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// RefundRequest returns held tokens after a failed flow. The refund is paid
// to the configured support wallet for manual reconciliation; OriginalSender
// is recorded for bookkeeping. A retry (FailedAttempts > 0) pays the
// configured commission.
type RefundRequest struct {
	Amount         string
	OriginalSender string
	FailedAttempts int
}

// RefundResult reports a completed refund.
type RefundResult struct {
	TxHash             string
	BlockNumber        uint64
	GasUsed            uint64
	Amount             string
	CommissionRetained string
}

// Refund sends the held amount, minus any retry commission, to the support
// wallet through the routing contract's instant entry point.
func (e *Executor) Refund(ctx context.Context, req RefundRequest) (RefundResult, *domain.SettlementAttempt, error) {
	attempt := newAttempt(domain.ModeInstant)

	if req.OriginalSender != "" {
		if _, err := validAddress(req.OriginalSender); err != nil {
			e.fail(attempt, err)
			return RefundResult{}, attempt, err
		}
	}
	if e.cfg.SupportWallet == (common.Address{}) {
		err := fmt.Errorf("%w: support wallet not configured", domain.ErrConfiguration)
		e.fail(attempt, err)
		return RefundResult{}, attempt, err
	}
	amount, err := parseAmount(req.Amount, e.cfg.HeldDecimals)
	if err != nil {
		e.fail(attempt, err)
		return RefundResult{}, attempt, err
	}

	payable, retained := e.applyCommission(amount, req.FailedAttempts)

	data, err := chain.PackHopInstant(e.cfg.HeldToken, e.cfg.SupportWallet, payable, e.cfg.HeldDecimals)
	if err != nil {
		e.fail(attempt, err)
		return RefundResult{}, attempt, fmt.Errorf("packing refund call: %w", err)
	}

	if _, err := e.run(ctx, attempt, e.hop.Address(), data, e.cfg.RefundGas); err != nil {
		return RefundResult{}, attempt, err
	}

	e.log.InfoContext(ctx, "refund completed",
		slog.String("original_sender", req.OriginalSender),
		slog.String("amount", chain.FormatUnits(payable, e.cfg.HeldDecimals)),
		slog.String("commission", chain.FormatUnits(retained, e.cfg.HeldDecimals)),
		slog.String("tx", attempt.TxHash))

	return RefundResult{
		TxHash:             attempt.TxHash,
		BlockNumber:        attempt.BlockNumber,
		GasUsed:            attempt.GasUsed,
		Amount:             chain.FormatUnits(payable, e.cfg.HeldDecimals),
		CommissionRetained: chain.FormatUnits(retained, e.cfg.HeldDecimals),
	}, attempt, nil
}
