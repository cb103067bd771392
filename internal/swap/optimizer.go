// Package swap finds the best on-chain swap route across the constant-product
// and concentrated-liquidity venues. The candidate set is small and bounded
// (direct plus two-hop through a couple of bridge tokens), so the search is
// exhaustive rather than heuristic.
package swap

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// Quoter is the quoting surface of the AMM venues. chain.DexClient implements
// it against live contracts.
type Quoter interface {
	AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error)
	PoolExists(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (bool, error)
	QuoteSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
	QuotePath(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error)
}

// Venue names.
const (
	VenueV2 = "V2"
	VenueV3 = "V3"
)

// Route is one swap candidate. Fees is populated for V3 routes only, one
// entry per hop. Ephemeral, consumed immediately by the executor.
type Route struct {
	Venue       string
	Path        []common.Address
	Fees        []uint32
	ExpectedOut *big.Int
}

// Optimizer searches the candidate routes for a given pair and amount.
type Optimizer struct {
	quoter   Quoter
	bridges  []common.Address
	feeTiers []uint32
	log      *slog.Logger
}

// NewOptimizer builds an Optimizer over the configured bridge tokens and
// concentrated-liquidity fee tiers.
func NewOptimizer(quoter Quoter, bridges []common.Address, feeTiers []uint32, log *slog.Logger) *Optimizer {
	return &Optimizer{
		quoter:   quoter,
		bridges:  bridges,
		feeTiers: feeTiers,
		log:      log.With(slog.String("component", "optimizer")),
	}
}

// BestRoute returns the candidate with the largest expected output, ties
// going to the first found (constant-product paths are probed first). A zero
// quote counts as no route; if nothing quotes positive the search reports
// domain.ErrNoLiquidity. Individual quote failures are swallowed, a venue
// that errors simply contributes no candidate.
func (o *Optimizer) BestRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (Route, error) {
	var best Route
	bestOut := big.NewInt(0)

	consider := func(candidate Route) {
		if candidate.ExpectedOut != nil && candidate.ExpectedOut.Cmp(bestOut) > 0 {
			best = candidate
			bestOut = candidate.ExpectedOut
		}
	}

	// Constant-product, direct then two-hop.
	for _, path := range o.v2Paths(tokenIn, tokenOut) {
		out, err := o.quoter.AmountsOut(ctx, amountIn, path)
		if err != nil {
			o.log.DebugContext(ctx, "v2 quote failed", slog.Int("hops", len(path)-1), slog.Any("error", err))
			continue
		}
		consider(Route{Venue: VenueV2, Path: path, ExpectedOut: out})
	}

	// Concentrated-liquidity, direct at each fee tier.
	for _, fee := range o.feeTiers {
		exists, err := o.quoter.PoolExists(ctx, tokenIn, tokenOut, fee)
		if err != nil || !exists {
			continue
		}
		out, err := o.quoter.QuoteSingle(ctx, tokenIn, tokenOut, fee, amountIn)
		if err != nil {
			o.log.DebugContext(ctx, "v3 quote failed", slog.Uint64("fee", uint64(fee)), slog.Any("error", err))
			continue
		}
		consider(Route{Venue: VenueV3, Path: []common.Address{tokenIn, tokenOut}, Fees: []uint32{fee}, ExpectedOut: out})
	}

	// Concentrated-liquidity, two-hop through each bridge at every fee-tier
	// combination. Both legs are checked for pool existence before spending
	// a quote call.
	for _, bridge := range o.bridges {
		if bridge == tokenIn || bridge == tokenOut {
			continue
		}
		for _, feeA := range o.feeTiers {
			okA, err := o.quoter.PoolExists(ctx, tokenIn, bridge, feeA)
			if err != nil || !okA {
				continue
			}
			for _, feeB := range o.feeTiers {
				okB, err := o.quoter.PoolExists(ctx, bridge, tokenOut, feeB)
				if err != nil || !okB {
					continue
				}
				tokens := []common.Address{tokenIn, bridge, tokenOut}
				fees := []uint32{feeA, feeB}
				encoded, err := EncodePath(tokens, fees)
				if err != nil {
					continue
				}
				out, err := o.quoter.QuotePath(ctx, encoded, amountIn)
				if err != nil {
					o.log.DebugContext(ctx, "v3 path quote failed",
						slog.String("bridge", bridge.Hex()), slog.Any("error", err))
					continue
				}
				consider(Route{Venue: VenueV3, Path: tokens, Fees: fees, ExpectedOut: out})
			}
		}
	}

	if bestOut.Sign() <= 0 {
		return Route{}, domain.ErrNoLiquidity
	}
	return best, nil
}

func (o *Optimizer) v2Paths(tokenIn, tokenOut common.Address) [][]common.Address {
	paths := [][]common.Address{{tokenIn, tokenOut}}
	for _, bridge := range o.bridges {
		if bridge == tokenIn || bridge == tokenOut {
			continue
		}
		paths = append(paths, []common.Address{tokenIn, bridge, tokenOut})
	}
	return paths
}
