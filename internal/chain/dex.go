package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DexClient bundles the quoting entry points of both AMM venues. All methods
// are read-only; the optimizer treats any individual error as "no candidate
// from this path".
type DexClient struct {
	c         *Client
	routerV2  common.Address
	quoterV3  common.Address
	factoryV3 common.Address
}

// NewDexClient builds a DexClient against the configured venue contracts.
func NewDexClient(c *Client, routerV2, quoterV3, factoryV3 common.Address) *DexClient {
	return &DexClient{c: c, routerV2: routerV2, quoterV3: quoterV3, factoryV3: factoryV3}
}

// AmountsOut quotes a constant-product path via getAmountsOut, returning the
// final hop's output.
func (d *DexClient) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	out, err := d.c.call(ctx, d.routerV2, routerV2ABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts := out[0].([]*big.Int)
	if len(amounts) == 0 {
		return big.NewInt(0), nil
	}
	return amounts[len(amounts)-1], nil
}

// PoolExists checks the concentrated-liquidity factory for a pool at the
// given fee tier. Avoids wasting a quote call on pools that do not exist.
func (d *DexClient) PoolExists(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (bool, error) {
	out, err := d.c.call(ctx, d.factoryV3, factoryV3ABI, "getPool", tokenA, tokenB, big.NewInt(int64(fee)))
	if err != nil {
		return false, err
	}
	pool := out[0].(common.Address)
	return pool != (common.Address{}), nil
}

// QuoteSingle quotes a single-hop concentrated-liquidity swap.
func (d *DexClient) QuoteSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	out, err := d.c.call(ctx, d.quoterV3, quoterV3ABI, "quoteExactInputSingle",
		tokenIn, tokenOut, big.NewInt(int64(fee)), amountIn, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// QuotePath quotes a multi-hop concentrated-liquidity swap over an encoded
// path.
func (d *DexClient) QuotePath(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	out, err := d.c.call(ctx, d.quoterV3, quoterV3ABI, "quoteExactInput", path, amountIn)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}
