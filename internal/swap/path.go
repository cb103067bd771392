package swap

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EncodePath packs a concentrated-liquidity multi-hop path: each hop is the
// 20-byte token address followed by a 3-byte fee, ending with the final
// token. len(fees) must be len(tokens)-1.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path shape mismatch: %d tokens, %d fees", len(tokens), len(fees))
	}
	buf := make([]byte, 0, len(tokens)*20+len(fees)*3)
	for i, fee := range fees {
		buf = append(buf, tokens[i].Bytes()...)
		buf = append(buf, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	buf = append(buf, tokens[len(tokens)-1].Bytes()...)
	return buf, nil
}

// MinOut applies the slippage tolerance to a quoted output. The tolerance is
// quantized to thousandths before the integer math so the result never
// exceeds expectedOut*(1-slippage).
func MinOut(expectedOut *big.Int, slippage float64) *big.Int {
	factor := int64(math.Floor((1 - slippage) * 1000))
	if factor < 0 {
		factor = 0
	}
	out := new(big.Int).Mul(expectedOut, big.NewInt(factor))
	return out.Div(out, big.NewInt(1000))
}
