package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/Ortegaa03/vpnchain-router/internal/blob/s3"
	"github.com/Ortegaa03/vpnchain-router/internal/cache/memory"
	"github.com/Ortegaa03/vpnchain-router/internal/cache/redis"
	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/config"
	routercrypto "github.com/Ortegaa03/vpnchain-router/internal/crypto"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/executor"
	"github.com/Ortegaa03/vpnchain-router/internal/notify"
	"github.com/Ortegaa03/vpnchain-router/internal/platform/dexscreener"
	"github.com/Ortegaa03/vpnchain-router/internal/server/handler"
	"github.com/Ortegaa03/vpnchain-router/internal/service"
	"github.com/Ortegaa03/vpnchain-router/internal/store/postgres"
	"github.com/Ortegaa03/vpnchain-router/internal/swap"
	"github.com/Ortegaa03/vpnchain-router/internal/watcher"
)

// Dependencies bundles everything the operating modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Payments    *service.PaymentService
	Settlements *service.SettlementService
	Routes      *service.RouteService
	Archiver    *service.Archiver

	RateLimiter domain.RateLimiter
	SignalBus   *redis.SignalBus // nil with the memory backend
	DexScreener *dexscreener.Client
	Health      map[string]handler.Pinger
	Notifier    *notify.Notifier
}

// Wire constructs every concrete dependency from the configuration. The
// cleanup function releases resources in reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	// --- Signing key ---
	keyHex, err := routercrypto.LoadKey(routercrypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: signing key: %w", err))
	}

	// --- Chain ---
	chainClient, err := chain.Dial(ctx, cfg.Chain.RpcURL)
	if err != nil {
		return fail(fmt.Errorf("wire: chain: %w", err))
	}
	closers = append(closers, chainClient.Close)
	deps.Health["chain"] = func(ctx context.Context) error {
		_, err := chainClient.BlockNumber(ctx)
		return err
	}

	signer, err := chain.NewSigner(chainClient, keyHex, cfg.Chain.ChainID)
	if err != nil {
		return fail(fmt.Errorf("wire: signer: %w", err))
	}

	dex := chain.NewDexClient(
		chainClient,
		common.HexToAddress(cfg.Contracts.RouterV2),
		common.HexToAddress(cfg.Contracts.QuoterV3),
		common.HexToAddress(cfg.Contracts.FactoryV3),
	)
	hop := chain.NewHopRouter(chainClient, common.HexToAddress(cfg.Contracts.HopRouter))

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)
	deps.Health["postgres"] = pgClient.Pool().Ping

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
	}
	records := postgres.NewTransactionStore(pgClient.Pool())

	// --- Detection state: Redis or in-process ---
	var (
		sessions  domain.SessionStore
		processed domain.ProcessedSet
		locks     domain.LockManager
		bus       domain.SignalBus
	)
	if strings.ToLower(cfg.Detection.StoreBackend) == "redis" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Health["redis"] = redisClient.Ping

		sessions = redis.NewSessionStore(redisClient)
		processed = redis.NewProcessedSet(redisClient)
		locks = redis.NewLockManager(redisClient)
		signalBus := redis.NewSignalBus(redisClient)
		bus = signalBus
		deps.SignalBus = signalBus
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	} else {
		sessions = memory.NewSessionStore()
		processed = memory.NewProcessedSet()
		locks = memory.NewLockManager()
	}

	// --- Detection ---
	tracker := watcher.NewTracker(sessions, chainClient, cfg.Detection.MaxAge.Duration)
	detector := watcher.NewDetector(
		tracker,
		chainClient,
		processed,
		cfg.Detection.Tolerance,
		cfg.Detection.Denominations,
		cfg.Detection.MaxAge.Duration,
		logger,
	)

	// --- Route optimization ---
	bridges := []common.Address{
		common.HexToAddress(cfg.Contracts.WETH),
		common.HexToAddress(cfg.Contracts.USDC),
	}
	feeTiers := make([]uint32, len(cfg.Swap.FeeTiers))
	for i, tier := range cfg.Swap.FeeTiers {
		feeTiers[i] = uint32(tier)
	}
	optimizer := swap.NewOptimizer(dex, bridges, feeTiers, logger)

	// --- Execution ---
	exec := executor.New(chainClient, signer, hop, optimizer, executor.Config{
		HeldToken:      common.HexToAddress(cfg.Contracts.HeldToken),
		HeldDecimals:   uint8(cfg.Contracts.HeldDecimals),
		RouterV2:       common.HexToAddress(cfg.Contracts.RouterV2),
		RouterV3:       common.HexToAddress(cfg.Contracts.RouterV3),
		SupportWallet:  common.HexToAddress(cfg.Support.Wallet),
		Slippage:       cfg.Swap.Slippage,
		CommissionPct:  cfg.Swap.CommissionPct,
		ConfirmTimeout: cfg.Execution.ConfirmTimeout.Duration,
		SettleDelay:    cfg.Execution.SettleDelay.Duration,
		RoutingGas: executor.GasPolicy{
			Multiplier: cfg.Execution.RoutingGas.Multiplier,
			Floor:      cfg.Execution.RoutingGas.Floor,
			Ceiling:    cfg.Execution.RoutingGas.Ceiling,
			Fallback:   cfg.Execution.RoutingGas.Fallback,
		},
		RefundGas: executor.GasPolicy{
			Multiplier: cfg.Execution.RefundGas.Multiplier,
			Floor:      cfg.Execution.RefundGas.Floor,
			Ceiling:    cfg.Execution.RefundGas.Ceiling,
			Fallback:   cfg.Execution.RefundGas.Fallback,
		},
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Archive storage ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: s3: %w", err))
	}
	deps.Health["s3"] = s3Client.Health

	// --- Services ---
	deps.Payments = service.NewPaymentService(detector, logger)
	deps.Settlements = service.NewSettlementService(
		exec, records, locks, bus, deps.Notifier, cfg.Support.Email, logger,
	)
	deps.Routes = service.NewRouteService(hop, logger)
	deps.Archiver = service.NewArchiver(
		records, s3blob.NewWriter(s3Client), cfg.S3.ArchiveInterval.Duration, logger,
	)

	if cfg.Server.DexScreenerURL != "" {
		deps.DexScreener = dexscreener.New(cfg.Server.DexScreenerURL)
	}

	return deps, cleanup, nil
}
