package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRouteCreated(t *testing.T) {
	event := hopRouterABI.Events["RouteCreated"]
	data, err := event.Inputs.Pack(
		big.NewInt(7421),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
		big.NewInt(1e18),
		big.NewInt(3),
		true,
		uint8(18),
	)
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		{Topics: []common.Hash{{0xde, 0xad}}}, // unrelated event
		{Topics: []common.Hash{event.ID}, Data: data},
	}}

	id, ok := ParseRouteCreated(receipt)
	require.True(t, ok)
	assert.Equal(t, "7421", id)
}

func TestParseRouteCreatedAbsent(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{
		{Topics: []common.Hash{{0xde, 0xad}}},
	}}
	_, ok := ParseRouteCreated(receipt)
	assert.False(t, ok)

	_, ok = ParseRouteCreated(&types.Receipt{})
	assert.False(t, ok)
}

func TestPackHelpersProduceSelectors(t *testing.T) {
	spender := common.HexToAddress("0x1111111111111111111111111111111111111111")

	data, err := PackApprove(spender, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, erc20ABI.Methods["approve"].ID, data[:4])

	data, err = PackHopInstant(spender, spender, big.NewInt(1), 18)
	require.NoError(t, err)
	assert.Equal(t, hopRouterABI.Methods["sendInstant"].ID, data[:4])

	data, err = PackHopSecure(spender, spender, big.NewInt(1), false, big.NewInt(0), 18)
	require.NoError(t, err)
	assert.Equal(t, hopRouterABI.Methods["sendSecure"].ID, data[:4])

	data, err = PackV3ExactInputSingle(spender, spender, 3000, spender, big.NewInt(1), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, routerV3ABI.Methods["exactInputSingle"].ID, data[:4])
}
