package swap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

var (
	tokenIn  = common.HexToAddress("0x2cFc85d8E48F8EAB294be644d9E25C3030863003")
	tokenOut = common.HexToAddress("0x79A02482A880bCE3F13e09Da970dC34db4CD24d1")
	weth     = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdc     = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeQuoter struct {
	v2      map[string]*big.Int // key: joined path hex
	pools   map[string]bool     // key: a-b-fee
	single  map[string]*big.Int // key: in-out-fee
	multi   map[string]*big.Int // key: encoded path hex
	v2Err   error
	poolErr error
}

func pathKey(path []common.Address) string {
	k := ""
	for _, a := range path {
		k += a.Hex() + "-"
	}
	return k
}

func poolKey(a, b common.Address, fee uint32) string {
	return pathKey([]common.Address{a, b}) + string(rune(fee))
}

func (f *fakeQuoter) AmountsOut(_ context.Context, _ *big.Int, path []common.Address) (*big.Int, error) {
	if f.v2Err != nil {
		return nil, f.v2Err
	}
	if out, ok := f.v2[pathKey(path)]; ok {
		return out, nil
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeQuoter) PoolExists(_ context.Context, a, b common.Address, fee uint32) (bool, error) {
	if f.poolErr != nil {
		return false, f.poolErr
	}
	return f.pools[poolKey(a, b, fee)], nil
}

func (f *fakeQuoter) QuoteSingle(_ context.Context, in, out common.Address, fee uint32, _ *big.Int) (*big.Int, error) {
	if v, ok := f.single[poolKey(in, out, fee)]; ok {
		return v, nil
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeQuoter) QuotePath(_ context.Context, path []byte, _ *big.Int) (*big.Int, error) {
	if v, ok := f.multi[common.Bytes2Hex(path)]; ok {
		return v, nil
	}
	return nil, errors.New("execution reverted")
}

func newOptimizer(q Quoter) *Optimizer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOptimizer(q, []common.Address{weth, usdc}, []uint32{500, 3000, 10000}, log)
}

func TestBestRoutePrefersLargestOutput(t *testing.T) {
	q := &fakeQuoter{
		v2: map[string]*big.Int{
			pathKey([]common.Address{tokenIn, tokenOut}):       big.NewInt(900),
			pathKey([]common.Address{tokenIn, weth, tokenOut}): big.NewInt(950),
		},
		pools: map[string]bool{
			poolKey(tokenIn, tokenOut, 3000): true,
		},
		single: map[string]*big.Int{
			poolKey(tokenIn, tokenOut, 3000): big.NewInt(1000),
		},
	}

	route, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, VenueV3, route.Venue)
	assert.Equal(t, []uint32{3000}, route.Fees)
	assert.Equal(t, int64(1000), route.ExpectedOut.Int64())
}

func TestBestRouteTiesGoToV2(t *testing.T) {
	q := &fakeQuoter{
		v2: map[string]*big.Int{
			pathKey([]common.Address{tokenIn, tokenOut}): big.NewInt(1000),
		},
		pools: map[string]bool{
			poolKey(tokenIn, tokenOut, 500): true,
		},
		single: map[string]*big.Int{
			poolKey(tokenIn, tokenOut, 500): big.NewInt(1000),
		},
	}

	route, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, VenueV2, route.Venue, "equal quotes keep the first candidate found")
}

func TestBestRouteTwoHopV3(t *testing.T) {
	encoded, err := EncodePath([]common.Address{tokenIn, weth, tokenOut}, []uint32{500, 3000})
	require.NoError(t, err)

	q := &fakeQuoter{
		pools: map[string]bool{
			poolKey(tokenIn, weth, 500):   true,
			poolKey(weth, tokenOut, 3000): true,
		},
		multi: map[string]*big.Int{
			common.Bytes2Hex(encoded): big.NewInt(1234),
		},
	}

	route, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, VenueV3, route.Venue)
	assert.Equal(t, []common.Address{tokenIn, weth, tokenOut}, route.Path)
	assert.Equal(t, []uint32{500, 3000}, route.Fees)
}

func TestBestRouteNoLiquidity(t *testing.T) {
	_, err := newOptimizer(&fakeQuoter{}).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrNoLiquidity)
}

func TestBestRouteZeroQuoteIsNoRoute(t *testing.T) {
	q := &fakeQuoter{
		v2: map[string]*big.Int{
			pathKey([]common.Address{tokenIn, tokenOut}): big.NewInt(0),
		},
	}
	_, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrNoLiquidity)
}

func TestBestRouteSurvivesQuoteErrors(t *testing.T) {
	q := &fakeQuoter{
		v2Err:   errors.New("provider down"),
		poolErr: errors.New("provider down"),
	}
	_, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrNoLiquidity, "venue errors degrade to no candidate")
}

func TestBestRouteSkipsBridgeEqualToEndpoints(t *testing.T) {
	q := &fakeQuoter{
		v2: map[string]*big.Int{
			pathKey([]common.Address{tokenIn, weth}): big.NewInt(500),
		},
	}
	route, err := newOptimizer(q).BestRoute(context.Background(), tokenIn, weth, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenIn, weth}, route.Path, "no two-hop through the output token itself")
}
