package swap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePathTwoHop(t *testing.T) {
	encoded, err := EncodePath([]common.Address{tokenIn, weth, tokenOut}, []uint32{500, 3000})
	require.NoError(t, err)
	require.Len(t, encoded, 20+3+20+3+20)

	assert.Equal(t, tokenIn.Bytes(), encoded[:20])
	assert.Equal(t, []byte{0x00, 0x01, 0xf4}, encoded[20:23]) // 500
	assert.Equal(t, weth.Bytes(), encoded[23:43])
	assert.Equal(t, []byte{0x00, 0x0b, 0xb8}, encoded[43:46]) // 3000
	assert.Equal(t, tokenOut.Bytes(), encoded[46:])
}

func TestEncodePathShapeMismatch(t *testing.T) {
	_, err := EncodePath([]common.Address{tokenIn, tokenOut}, []uint32{500, 3000})
	assert.Error(t, err)

	_, err = EncodePath([]common.Address{tokenIn}, nil)
	assert.Error(t, err)
}

func TestMinOut(t *testing.T) {
	// 5% slippage quantized to thousandths: 1000 * 950 / 1000.
	assert.Equal(t, int64(950), MinOut(big.NewInt(1000), 0.05).Int64())
	assert.Equal(t, int64(1000), MinOut(big.NewInt(1000), 0).Int64())
	assert.Equal(t, int64(0), MinOut(big.NewInt(1000), 1).Int64())

	// Rounds down, never up.
	assert.Equal(t, int64(94), MinOut(big.NewInt(100), 0.055).Int64())
}
