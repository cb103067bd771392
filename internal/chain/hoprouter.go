package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// HopRouter exposes the view surface of the external hop-routing contract.
// Mutating calls go through calldata builders plus the signer instead, so the
// executor can simulate and gas-estimate them first.
type HopRouter struct {
	c       *Client
	address common.Address
}

// NewHopRouter binds a router view client to the deployed contract address.
func NewHopRouter(c *Client, address common.Address) *HopRouter {
	return &HopRouter{c: c, address: address}
}

// Address returns the deployed contract address.
func (h *HopRouter) Address() common.Address { return h.address }

// Owner returns the contract owner.
func (h *HopRouter) Owner(ctx context.Context) (common.Address, error) {
	out, err := h.c.call(ctx, h.address, hopRouterABI, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// UserBalance returns the contract-internal balance credited to user for the
// given token.
func (h *HopRouter) UserBalance(ctx context.Context, token, user common.Address, decimals uint8) (*big.Int, error) {
	out, err := h.c.call(ctx, h.address, hopRouterABI, "GetUserBalance", token, user, decimals)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ContractBalance returns the contract's total holdings of the given token.
func (h *HopRouter) ContractBalance(ctx context.Context, token common.Address, decimals uint8) (*big.Int, error) {
	out, err := h.c.call(ctx, h.address, hopRouterABI, "GetContractBalance", token, decimals)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// RouteStatus reads both metadata views plus the remaining-time estimate for
// a route and folds them into one report.
func (h *HopRouter) RouteStatus(ctx context.Context, routeID *big.Int) (domain.RouteStatus, error) {
	var st domain.RouteStatus

	basic, err := h.c.call(ctx, h.address, hopRouterABI, "getRouteMetaBasic", routeID)
	if err != nil {
		return st, err
	}
	st.RouteID = basic[0].(*big.Int).String()
	st.Amount = basic[1].(*big.Int).String()
	st.Sender = basic[2].(common.Address).Hex()
	st.Receiver = basic[3].(common.Address).Hex()
	st.Token = basic[4].(common.Address).Hex()
	st.CreatedAt = basic[5].(*big.Int).Int64()
	st.NextStepTime = basic[6].(*big.Int).Int64()

	progress, err := h.c.call(ctx, h.address, hopRouterABI, "getRouteMetaProgress", routeID)
	if err != nil {
		return st, err
	}
	st.TotalSteps = progress[1].(*big.Int).Int64()
	st.CompletedSteps = progress[2].(*big.Int).Int64()
	st.Completed = progress[3].(bool)
	st.AvgDelay = progress[4].(*big.Int).Int64()
	st.IsSecure = progress[5].(bool)
	st.CompletedAt = progress[6].(*big.Int).Int64()

	remaining, err := h.c.call(ctx, h.address, hopRouterABI, "estimateRemainingTime", routeID)
	if err != nil {
		return st, err
	}
	st.EstimatedRemainingSeconds = remaining[0].(*big.Int).Int64()

	return st, nil
}
