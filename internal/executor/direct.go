package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// DirectRequest is a settlement of already-held tokens straight through the
// routing contract, no swap involved.
type DirectRequest struct {
	Amount        string
	Recipient     string
	Mode          domain.TransferMode
	TokenAddress  string
	TokenDecimals uint8
	TokenSymbol   string
}

// DirectResult reports a completed direct settlement.
type DirectResult struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	RouteID     string
	Mode        domain.TransferMode
}

// Direct settles req through the routing contract's instant or secure entry
// point. The attempt is returned alongside the error so callers can persist
// the terminal state either way.
func (e *Executor) Direct(ctx context.Context, req DirectRequest) (DirectResult, *domain.SettlementAttempt, error) {
	attempt := newAttempt(req.Mode)

	if !req.Mode.Valid() {
		err := fmt.Errorf("%w: unknown transfer mode %q", domain.ErrValidation, req.Mode)
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}
	recipient, err := validAddress(req.Recipient)
	if err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}
	token, err := validAddress(req.TokenAddress)
	if err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}
	decimals := req.TokenDecimals
	if decimals == 0 {
		decimals = 18
	}
	amount, err := parseAmount(req.Amount, decimals)
	if err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}

	if err := e.preflight(ctx, token, amount, decimals); err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}

	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, err
	}

	var data []byte
	switch req.Mode {
	case domain.ModeSecure:
		// is48h false and zero hop count let the contract pick the schedule.
		data, err = chain.PackHopSecure(token, recipient, amount, false, big.NewInt(0), decimals)
	default:
		data, err = chain.PackHopInstant(token, recipient, amount, decimals)
	}
	if err != nil {
		e.fail(attempt, err)
		return DirectResult{}, attempt, fmt.Errorf("packing settlement call: %w", err)
	}

	receipt, err := e.run(ctx, attempt, e.hop.Address(), data, e.cfg.RoutingGas)
	if err != nil {
		return DirectResult{}, attempt, err
	}
	e.recordRouteID(ctx, attempt, receipt)

	e.log.InfoContext(ctx, "direct settlement completed",
		slog.String("mode", string(req.Mode)),
		slog.String("token", req.TokenSymbol),
		slog.String("amount", req.Amount),
		slog.String("tx", attempt.TxHash))

	return DirectResult{
		TxHash:      attempt.TxHash,
		BlockNumber: attempt.BlockNumber,
		GasUsed:     attempt.GasUsed,
		RouteID:     attempt.RouteID,
		Mode:        req.Mode,
	}, attempt, nil
}

// preflight rejects settlements the contract would revert anyway: the signer
// must own the routing contract, hold ETH for gas, and the contract must
// have the funds credited.
func (e *Executor) preflight(ctx context.Context, token common.Address, amount *big.Int, decimals uint8) error {
	owner, err := e.hop.Owner(ctx)
	if err != nil {
		return err
	}
	if owner != e.signer.Address() {
		return fmt.Errorf("%w: signing wallet %s is not the routing contract owner %s",
			domain.ErrConfiguration, e.signer.Address().Hex(), owner.Hex())
	}

	ethBal, err := e.backend.EthBalance(ctx, e.signer.Address())
	if err != nil {
		return err
	}
	if ethBal.Sign() == 0 {
		return fmt.Errorf("%w: signing wallet has no ETH for gas", domain.ErrConfiguration)
	}

	userBal, err := e.hop.UserBalance(ctx, token, e.signer.Address(), decimals)
	if err != nil {
		return err
	}
	contractBal, err := e.hop.ContractBalance(ctx, token, decimals)
	if err != nil {
		return err
	}
	if userBal.Cmp(amount) < 0 || contractBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient routing contract funds: user %s, contract %s, need %s",
			domain.ErrValidation, userBal, contractBal, amount)
	}
	return nil
}
