package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0x" + strings.Repeat("ab", 32)
	cfg.Contracts.HopRouter = "0x1111111111111111111111111111111111111111"
	cfg.Contracts.HeldToken = "0x2222222222222222222222222222222222222222"
	cfg.Contracts.USDC = "0x3333333333333333333333333333333333333333"
	cfg.Contracts.RouterV2 = "0x4444444444444444444444444444444444444444"
	cfg.Contracts.RouterV3 = "0x5555555555555555555555555555555555555555"
	cfg.Contracts.QuoterV3 = "0x6666666666666666666666666666666666666666"
	cfg.Contracts.FactoryV3 = "0x7777777777777777777777777777777777777777"
	cfg.Support.Wallet = "0x8888888888888888888888888888888888888888"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Wallet.PrivateKey = ""
	cfg.Contracts.HopRouter = "not-an-address"
	cfg.Swap.Slippage = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "wallet:")
	assert.Contains(t, msg, "hop_router")
	assert.Contains(t, msg, "slippage")
}

func TestValidateGasBands(t *testing.T) {
	cfg := validConfig()
	cfg.Execution.RoutingGas.Fallback = 10_000_000 // above ceiling

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing_gas.fallback")
}

func TestValidateRedisOptionalWithMemoryBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Detection.StoreBackend = "memory"
	cfg.Redis.Addr = ""
	require.NoError(t, cfg.Validate())

	cfg.Detection.StoreBackend = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"

[detection]
max_age = "5m"
tolerance = "0.02"

[server]
port = 9100
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("VPNROUTER_SERVER_PORT", "9200")
	t.Setenv("VPNROUTER_DETECTION_DENOMINATIONS", "1, 2, 5")
	t.Setenv("VPNROUTER_WALLET_PRIVATE_KEY", "deadbeef")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Detection.MaxAge.Duration)
	assert.Equal(t, "0.02", cfg.Detection.Tolerance)
	assert.Equal(t, 9200, cfg.Server.Port, "env wins over file")
	assert.Equal(t, []string{"1", "2", "5"}, cfg.Detection.Denominations)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	// Untouched sections keep defaults.
	assert.Equal(t, int64(480), cfg.Chain.ChainID)
	assert.Equal(t, []int{500, 3000, 10000}, cfg.Swap.FeeTiers)
}

func TestDefaultsValidateOnceSecretsSupplied(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err, "defaults alone miss wallet, contracts, and support")
}
