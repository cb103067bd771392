// Package config defines the top-level configuration for the payment router
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by VPNROUTER_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Contracts ContractsConfig `toml:"contracts"`
	Detection DetectionConfig `toml:"detection"`
	Swap      SwapConfig      `toml:"swap"`
	Execution ExecutionConfig `toml:"execution"`
	Support   SupportConfig   `toml:"support"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the signing wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds the RPC endpoint and chain parameters.
type ChainConfig struct {
	RpcURL  string `toml:"rpc_url"`
	ChainID int64  `toml:"chain_id"`
}

// ContractsConfig holds the deployed contract addresses the router talks to.
type ContractsConfig struct {
	HopRouter    string `toml:"hop_router"`
	HeldToken    string `toml:"held_token"`
	WETH         string `toml:"weth"`
	USDC         string `toml:"usdc"`
	RouterV2     string `toml:"router_v2"`
	RouterV3     string `toml:"router_v3"`
	QuoterV3     string `toml:"quoter_v3"`
	FactoryV3    string `toml:"factory_v3"`
	HeldDecimals int    `toml:"held_decimals"`
}

// DetectionConfig holds transfer-detection policy.
type DetectionConfig struct {
	MaxAge        duration `toml:"max_age"`
	Tolerance     string   `toml:"tolerance"`
	Denominations []string `toml:"denominations"`
	// StoreBackend selects where session cursors and the idempotency set
	// live: "redis" or "memory".
	StoreBackend string `toml:"store_backend"`
}

// SwapConfig holds route-optimizer policy.
type SwapConfig struct {
	FeeTiers      []int   `toml:"fee_tiers"`
	Slippage      float64 `toml:"slippage"`
	CommissionPct int64   `toml:"commission_pct"`
}

// ExecutionConfig holds the orchestrator's timing and gas policy.
type ExecutionConfig struct {
	ConfirmTimeout duration  `toml:"confirm_timeout"`
	SettleDelay    duration  `toml:"settle_delay"`
	RoutingGas     GasConfig `toml:"routing_gas"`
	RefundGas      GasConfig `toml:"refund_gas"`
}

// GasConfig is one gas band: estimate multiplier, clamp range, and the fixed
// fallback used when estimation fails.
type GasConfig struct {
	Multiplier float64 `toml:"multiplier"`
	Floor      uint64  `toml:"floor"`
	Ceiling    uint64  `toml:"ceiling"`
	Fallback   uint64  `toml:"fallback"`
}

// SupportConfig holds the refund destination and the contact surfaced to
// users on financial failures.
type SupportConfig struct {
	Wallet string `toml:"wallet"`
	Email  string `toml:"email"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the transaction
// archive.
type S3Config struct {
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the API when set; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting. Requires the Redis backend.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// DexScreenerURL backs the read-only pair info proxy for the UI.
	DexScreenerURL string `toml:"dexscreener_url"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RpcURL:  "https://worldchain-mainnet.g.alchemy.com/public",
			ChainID: 480,
		},
		Contracts: ContractsConfig{
			WETH:         "0x4200000000000000000000000000000000000006",
			HeldDecimals: 18,
		},
		Detection: DetectionConfig{
			MaxAge:        duration{600 * time.Second},
			Tolerance:     "0.01",
			Denominations: []string{"5", "10", "20", "50", "100"},
			StoreBackend:  "redis",
		},
		Swap: SwapConfig{
			FeeTiers:      []int{500, 3000, 10000},
			Slippage:      0.05,
			CommissionPct: 2,
		},
		Execution: ExecutionConfig{
			ConfirmTimeout: duration{300 * time.Second},
			SettleDelay:    duration{0},
			RoutingGas:     GasConfig{Multiplier: 1.3, Floor: 500_000, Ceiling: 8_000_000, Fallback: 2_000_000},
			RefundGas:      GasConfig{Multiplier: 1.2, Floor: 100_000, Ceiling: 3_000_000, Fallback: 500_000},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vpnrouter",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "vpnrouter-archive",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{1 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateWindow:     duration{1 * time.Minute},
			DexScreenerURL: "https://api.dexscreener.com",
		},
		Notify: NotifyConfig{
			Events: []string{"settlement_failed", "refund_failed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — a credential source is required: every settlement signs.
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if c.Chain.RpcURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}

	// Contracts — every address the router calls must be present and valid.
	for _, f := range []struct{ name, value string }{
		{"hop_router", c.Contracts.HopRouter},
		{"held_token", c.Contracts.HeldToken},
		{"weth", c.Contracts.WETH},
		{"usdc", c.Contracts.USDC},
		{"router_v2", c.Contracts.RouterV2},
		{"router_v3", c.Contracts.RouterV3},
		{"quoter_v3", c.Contracts.QuoterV3},
		{"factory_v3", c.Contracts.FactoryV3},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Sprintf("contracts: %s must not be empty", f.name))
		} else if !common.IsHexAddress(f.value) {
			errs = append(errs, fmt.Sprintf("contracts: %s is not a valid address: %q", f.name, f.value))
		}
	}
	if c.Contracts.HeldDecimals <= 0 || c.Contracts.HeldDecimals > 36 {
		errs = append(errs, fmt.Sprintf("contracts: held_decimals must be 1-36, got %d", c.Contracts.HeldDecimals))
	}

	// Detection
	if c.Detection.MaxAge.Duration <= 0 {
		errs = append(errs, "detection: max_age must be positive")
	}
	if c.Detection.Tolerance == "" {
		errs = append(errs, "detection: tolerance must not be empty")
	}
	if b := strings.ToLower(c.Detection.StoreBackend); b != "redis" && b != "memory" {
		errs = append(errs, fmt.Sprintf("detection: store_backend must be redis or memory, got %q", c.Detection.StoreBackend))
	}

	// Swap
	if len(c.Swap.FeeTiers) == 0 {
		errs = append(errs, "swap: fee_tiers must not be empty")
	}
	for _, tier := range c.Swap.FeeTiers {
		if tier <= 0 || tier >= 1_000_000 {
			errs = append(errs, fmt.Sprintf("swap: fee tier %d out of range", tier))
		}
	}
	if c.Swap.Slippage < 0 || c.Swap.Slippage >= 1 {
		errs = append(errs, fmt.Sprintf("swap: slippage must be in [0, 1), got %g", c.Swap.Slippage))
	}
	if c.Swap.CommissionPct < 0 || c.Swap.CommissionPct >= 100 {
		errs = append(errs, fmt.Sprintf("swap: commission_pct must be 0-99, got %d", c.Swap.CommissionPct))
	}

	// Execution
	if c.Execution.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "execution: confirm_timeout must be positive")
	}
	for _, g := range []struct {
		name string
		cfg  GasConfig
	}{
		{"routing_gas", c.Execution.RoutingGas},
		{"refund_gas", c.Execution.RefundGas},
	} {
		if g.cfg.Multiplier < 1 {
			errs = append(errs, fmt.Sprintf("execution: %s.multiplier must be >= 1", g.name))
		}
		if g.cfg.Floor == 0 || g.cfg.Ceiling < g.cfg.Floor {
			errs = append(errs, fmt.Sprintf("execution: %s floor/ceiling range is invalid", g.name))
		}
		if g.cfg.Fallback < g.cfg.Floor || g.cfg.Fallback > g.cfg.Ceiling {
			errs = append(errs, fmt.Sprintf("execution: %s.fallback must lie within [floor, ceiling]", g.name))
		}
	}

	// Support
	if c.Support.Wallet == "" {
		errs = append(errs, "support: wallet must not be empty")
	} else if !common.IsHexAddress(c.Support.Wallet) {
		errs = append(errs, fmt.Sprintf("support: wallet is not a valid address: %q", c.Support.Wallet))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis — required only when detection state lives there.
	if strings.ToLower(c.Detection.StoreBackend) == "redis" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when detection.store_backend is redis")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
