package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VPNROUTER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VPNROUTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "VPNROUTER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "VPNROUTER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "VPNROUTER_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RpcURL, "VPNROUTER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "VPNROUTER_CHAIN_CHAIN_ID")

	// ── Contracts ──
	setStr(&cfg.Contracts.HopRouter, "VPNROUTER_CONTRACTS_HOP_ROUTER")
	setStr(&cfg.Contracts.HeldToken, "VPNROUTER_CONTRACTS_HELD_TOKEN")
	setStr(&cfg.Contracts.WETH, "VPNROUTER_CONTRACTS_WETH")
	setStr(&cfg.Contracts.USDC, "VPNROUTER_CONTRACTS_USDC")
	setStr(&cfg.Contracts.RouterV2, "VPNROUTER_CONTRACTS_ROUTER_V2")
	setStr(&cfg.Contracts.RouterV3, "VPNROUTER_CONTRACTS_ROUTER_V3")
	setStr(&cfg.Contracts.QuoterV3, "VPNROUTER_CONTRACTS_QUOTER_V3")
	setStr(&cfg.Contracts.FactoryV3, "VPNROUTER_CONTRACTS_FACTORY_V3")
	setInt(&cfg.Contracts.HeldDecimals, "VPNROUTER_CONTRACTS_HELD_DECIMALS")

	// ── Detection ──
	setDuration(&cfg.Detection.MaxAge, "VPNROUTER_DETECTION_MAX_AGE")
	setStr(&cfg.Detection.Tolerance, "VPNROUTER_DETECTION_TOLERANCE")
	setStringSlice(&cfg.Detection.Denominations, "VPNROUTER_DETECTION_DENOMINATIONS")
	setStr(&cfg.Detection.StoreBackend, "VPNROUTER_DETECTION_STORE_BACKEND")

	// ── Swap ──
	setFloat64(&cfg.Swap.Slippage, "VPNROUTER_SWAP_SLIPPAGE")
	setInt64(&cfg.Swap.CommissionPct, "VPNROUTER_SWAP_COMMISSION_PCT")

	// ── Execution ──
	setDuration(&cfg.Execution.ConfirmTimeout, "VPNROUTER_EXECUTION_CONFIRM_TIMEOUT")
	setDuration(&cfg.Execution.SettleDelay, "VPNROUTER_EXECUTION_SETTLE_DELAY")

	// ── Support ──
	setStr(&cfg.Support.Wallet, "VPNROUTER_SUPPORT_WALLET")
	setStr(&cfg.Support.Email, "VPNROUTER_SUPPORT_EMAIL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "VPNROUTER_DATABASE_DSN")
	setStr(&cfg.Database.Host, "VPNROUTER_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VPNROUTER_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VPNROUTER_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "VPNROUTER_DATABASE_USER")
	setStr(&cfg.Database.Password, "VPNROUTER_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VPNROUTER_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "VPNROUTER_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "VPNROUTER_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "VPNROUTER_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VPNROUTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VPNROUTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VPNROUTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VPNROUTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VPNROUTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VPNROUTER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "VPNROUTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VPNROUTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "VPNROUTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VPNROUTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VPNROUTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VPNROUTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VPNROUTER_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "VPNROUTER_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VPNROUTER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VPNROUTER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VPNROUTER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VPNROUTER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VPNROUTER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "VPNROUTER_SERVER_RATE_WINDOW")
	setStr(&cfg.Server.DexScreenerURL, "VPNROUTER_SERVER_DEXSCREENER_URL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VPNROUTER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VPNROUTER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VPNROUTER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VPNROUTER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VPNROUTER_MODE")
	setStr(&cfg.LogLevel, "VPNROUTER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
