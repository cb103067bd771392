package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ABI fragments for every contract surface the router touches: ERC-20
// tokens, the constant-product (V2) router, the concentrated-liquidity (V3)
// router/quoter/factory, and the external hop-routing contract. Only the
// entry points actually called are declared.

const erc20JSON = `[
	{"type":"event","name":"Transfer","inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const routerV2JSON = `[
	{"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"type":"function","name":"swapExactTokensForTokensSupportingFeeOnTransferTokens","stateMutability":"nonpayable","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[]}
]`

const routerV3JSON = `[
	{"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[
		{"name":"params","type":"tuple","components":[
			{"name":"tokenIn","type":"address"},
			{"name":"tokenOut","type":"address"},
			{"name":"fee","type":"uint24"},
			{"name":"recipient","type":"address"},
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMinimum","type":"uint256"},
			{"name":"sqrtPriceLimitX96","type":"uint160"}]}],
		"outputs":[{"name":"amountOut","type":"uint256"}]},
	{"type":"function","name":"exactInput","stateMutability":"payable","inputs":[
		{"name":"params","type":"tuple","components":[
			{"name":"path","type":"bytes"},
			{"name":"recipient","type":"address"},
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMinimum","type":"uint256"}]}],
		"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const quoterV3JSON = `[
	{"type":"function","name":"quoteExactInputSingle","stateMutability":"nonpayable","inputs":[
		{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},
		{"name":"fee","type":"uint24"},{"name":"amountIn","type":"uint256"},
		{"name":"sqrtPriceLimitX96","type":"uint160"}],
		"outputs":[{"name":"amountOut","type":"uint256"}]},
	{"type":"function","name":"quoteExactInput","stateMutability":"nonpayable","inputs":[
		{"name":"path","type":"bytes"},{"name":"amountIn","type":"uint256"}],
		"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const factoryV3JSON = `[
	{"type":"function","name":"getPool","stateMutability":"view","inputs":[
		{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],
		"outputs":[{"name":"pool","type":"address"}]}
]`

const hopRouterJSON = `[
	{"type":"function","name":"sendInstant","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},{"name":"receiver","type":"address"},
		{"name":"amount","type":"uint256"},{"name":"tokenDecimals","type":"uint8"}],
		"outputs":[{"name":"routeId","type":"uint256"}]},
	{"type":"function","name":"sendSecure","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},{"name":"receiver","type":"address"},
		{"name":"amount","type":"uint256"},{"name":"is48h","type":"bool"},
		{"name":"hopsCountUser","type":"uint256"},{"name":"tokenDecimals","type":"uint8"}],
		"outputs":[{"name":"routeId","type":"uint256"}]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"tokenDecimals","type":"uint8"}],
		"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"GetUserBalance","stateMutability":"view","inputs":[
		{"name":"token","type":"address"},{"name":"user","type":"address"},{"name":"tokenDecimals","type":"uint8"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"GetContractBalance","stateMutability":"view","inputs":[
		{"name":"token","type":"address"},{"name":"tokenDecimals","type":"uint8"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getRouteMetaBasic","stateMutability":"view","inputs":[{"name":"routeId","type":"uint256"}],
		"outputs":[
			{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},
			{"name":"sender","type":"address"},{"name":"receiver","type":"address"},
			{"name":"token","type":"address"},{"name":"createdAt","type":"uint256"},
			{"name":"nextStepTime","type":"uint256"}]},
	{"type":"function","name":"getRouteMetaProgress","stateMutability":"view","inputs":[{"name":"routeId","type":"uint256"}],
		"outputs":[
			{"name":"id","type":"uint256"},{"name":"totalSteps","type":"uint256"},
			{"name":"completedSteps","type":"uint256"},{"name":"completed","type":"bool"},
			{"name":"avgDelay","type":"uint256"},{"name":"isSecure","type":"bool"},
			{"name":"completedAt","type":"uint256"}]},
	{"type":"function","name":"estimateRemainingTime","stateMutability":"view","inputs":[{"name":"routeId","type":"uint256"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"RouteCreated","inputs":[
		{"name":"id","type":"uint256","indexed":false},
		{"name":"sender","type":"address","indexed":false},
		{"name":"receiver","type":"address","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"steps","type":"uint256","indexed":false},
		{"name":"isSecure","type":"bool","indexed":false},
		{"name":"tokenDecimals","type":"uint8","indexed":false}]},
	{"type":"event","name":"RouteCompleted","inputs":[
		{"name":"id","type":"uint256","indexed":false}]}
]`

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("chain: parsing abi: %v", err))
	}
	return parsed
}

var (
	erc20ABI     = mustParseABI(erc20JSON)
	routerV2ABI  = mustParseABI(routerV2JSON)
	routerV3ABI  = mustParseABI(routerV3JSON)
	quoterV3ABI  = mustParseABI(quoterV3JSON)
	factoryV3ABI = mustParseABI(factoryV3JSON)
	hopRouterABI = mustParseABI(hopRouterJSON)

	transferTopic = erc20ABI.Events["Transfer"].ID
)

// ---------------------------------------------------------------------------
// Calldata builders. Packing only fails on programmer error (argument type
// mismatch against the fragments above), so these return errors rather than
// panic but callers can treat failures as fatal.
// ---------------------------------------------------------------------------

// PackApprove builds ERC-20 approve(spender, amount) calldata.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// PackTransfer builds ERC-20 transfer(to, amount) calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// PackV2Swap builds swapExactTokensForTokens calldata.
func PackV2Swap(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerV2ABI.Pack("swapExactTokensForTokens", amountIn, minOut, path, to, deadline)
}

// PackV2SwapFeeOnTransfer builds the fee-on-transfer swap variant calldata.
func PackV2SwapFeeOnTransfer(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerV2ABI.Pack("swapExactTokensForTokensSupportingFeeOnTransferTokens", amountIn, minOut, path, to, deadline)
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// PackV3ExactInputSingle builds exactInputSingle calldata for a single-hop
// concentrated-liquidity swap.
func PackV3ExactInputSingle(tokenIn, tokenOut common.Address, fee uint32, recipient common.Address, amountIn, minOut *big.Int) ([]byte, error) {
	return routerV3ABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(fee)),
		Recipient:         recipient,
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// PackV3ExactInput builds exactInput calldata for a multi-hop swap over an
// encoded path.
func PackV3ExactInput(path []byte, recipient common.Address, amountIn, minOut *big.Int) ([]byte, error) {
	return routerV3ABI.Pack("exactInput", exactInputParams{
		Path:             path,
		Recipient:        recipient,
		AmountIn:         amountIn,
		AmountOutMinimum: minOut,
	})
}

// PackHopInstant builds sendInstant calldata on the hop-routing contract.
func PackHopInstant(token, receiver common.Address, amount *big.Int, decimals uint8) ([]byte, error) {
	return hopRouterABI.Pack("sendInstant", token, receiver, amount, decimals)
}

// PackHopSecure builds sendSecure calldata. is48h selects the extended
// schedule; hopsCountUser of zero lets the contract pick the hop count.
func PackHopSecure(token, receiver common.Address, amount *big.Int, is48h bool, hopsCountUser *big.Int, decimals uint8) ([]byte, error) {
	return hopRouterABI.Pack("sendSecure", token, receiver, amount, is48h, hopsCountUser, decimals)
}

// PackHopDeposit builds deposit calldata on the hop-routing contract.
func PackHopDeposit(token common.Address, amount *big.Int, decimals uint8) ([]byte, error) {
	return hopRouterABI.Pack("deposit", token, amount, decimals)
}
