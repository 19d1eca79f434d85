package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/loworbit/txtrack/internal/infra/gateway/ethrpc"
	"github.com/loworbit/txtrack/internal/infra/ledgerstore"
	infraRedis "github.com/loworbit/txtrack/internal/infra/redis"
	"github.com/loworbit/txtrack/internal/platform/chain"
	"github.com/loworbit/txtrack/internal/platform/notifier"
	"github.com/loworbit/txtrack/internal/platform/refresher"
	"github.com/loworbit/txtrack/internal/platform/staking"
	"github.com/loworbit/txtrack/internal/platform/tracker"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/internal/transport/httpapi"
	"github.com/loworbit/txtrack/internal/transport/httpapi/handler"
	"github.com/loworbit/txtrack/internal/transport/httpapi/middleware"
	"github.com/loworbit/txtrack/pkg/config"
	"github.com/loworbit/txtrack/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithFormat(cfg.Env, cfg.LogFormat, os.Stdout)
	log.Info("Starting txtrack API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"chain_id", cfg.ChainID,
		"ledger_store", cfg.LedgerStore,
	)

	// Load chains configuration
	chainsConfig, err := config.LoadChainsConfig(cfg.ChainsConfigPath)
	if err != nil {
		log.Error("Failed to load chains config", "error", err)
		os.Exit(1)
	}
	chainCfg, ok := chainsConfig.GetChain(cfg.ChainID)
	if !ok {
		log.Error("Chain is not configured", "chain_id", cfg.ChainID, "supported", chainsConfig.GetChainIDs())
		os.Exit(1)
	}

	// Redis is optional unless it holds the ledger
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		if cfg.LedgerStore == config.StoreRedis {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisAvailable = false
		log.Warn("Redis unavailable, using in-memory stats cache", "error", err)
	} else {
		log.Info("Redis connection established")
	}

	// Open the ledger store
	store, err := ledgerstore.Open(ctx, cfg, redisClient)
	if err != nil {
		log.Error("Failed to open ledger store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Ledger store opened", "backend", store.Backend)

	// Connect to the chain
	ethClient, err := ethrpc.Dial(ctx, cfg.EthRPCURL)
	if err != nil {
		log.Error("Failed to connect to Ethereum node", "error", err)
		os.Exit(1)
	}
	defer ethClient.Close()

	signer, err := ethrpc.NewKeySigner(cfg.SignerPrivateKey)
	if err != nil {
		log.Error("Failed to load signer key", "error", err)
		os.Exit(1)
	}

	contracts := map[chain.ContractRole]common.Address{
		chain.ContractToken:     chainCfg.TokenAddress(),
		chain.ContractPropulsor: chainCfg.PropulsorAddress(),
	}
	if v1, ok := chainCfg.PropulsorV1Address(); ok {
		contracts[chain.ContractPropulsorV1] = v1
	}

	var limiter *rate.Limiter
	if cfg.RPCRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPCRateLimit), cfg.RPCRateLimit)
	}

	clk := clock.New()
	adapter, err := ethrpc.New(&ethrpc.Config{
		ChainID:      cfg.ChainID,
		Contracts:    contracts,
		PollInterval: cfg.ReceiptPollInterval,
	}, ethClient, signer, limiter, chain.NewBlockNumbers(), clk, log.Logger)
	if err != nil {
		log.Error("Failed to create chain adapter", "error", err)
		os.Exit(1)
	}

	if cfg.VerifyChain {
		if err := adapter.VerifyChain(ctx); err != nil {
			log.Error("Chain verification failed", "error", err)
			os.Exit(1)
		}
	}
	log.Info("Chain adapter initialized",
		"chain", chainCfg.Name,
		"account", signer.Address().Hex())

	// Initialize the ledger
	ledger, err := txledger.NewLedger(ctx, store.Store, clk, log.Logger)
	if err != nil {
		log.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	// Event bus and tracker
	bus := tracker.NewBus(log.Logger)
	trackerCfg := &tracker.Config{
		RetryBaseDelay:     cfg.TrackerRetryBase,
		RetryMaxDelay:      cfg.TrackerRetryMaxDelay,
		RetryJitterPercent: tracker.DefaultConfig().RetryJitterPercent,
		MaxRetries:         cfg.TrackerMaxRetries,
		StaleHorizon:       cfg.StaleHorizon,
		ResyncInterval:     cfg.ResyncInterval,
	}
	txTracker := tracker.New(trackerCfg, adapter, ledger, bus, clk, log.Logger)

	// Notifier: indicators go to the log and, when available, to Redis subscribers
	sinks := notifier.MultiSink{notifier.NewLogSink(log.Logger)}
	if redisAvailable {
		sinks = append(sinks, infraRedis.NewNotificationPublisher(redisClient, ""))
	}
	notes, err := notifier.New(cfg.NotifierCapacity, sinks, clk, log.Logger)
	if err != nil {
		log.Error("Failed to create notifier", "error", err)
		os.Exit(1)
	}
	bus.Subscribe(notes.OnEvent)

	// Stat refresher
	var statCache refresher.Cache = refresher.NewMemoryCache()
	if redisAvailable {
		statCache = infraRedis.NewStatCache(redisClient, cfg.StatsTTL, log.Logger)
	}
	stats := refresher.New(&refresher.Config{Interval: cfg.StatsRefreshInterval}, adapter, statCache, clk, log.Logger)
	bus.Subscribe(stats.OnEvent)

	// Propulsion countdown and history; a propulsion also refreshes the account stats
	propulsionCfg := refresher.DefaultPropulsionConfig()
	propulsionCfg.PollInterval = cfg.PropulsionPollInterval
	propulsionCfg.Lookback = cfg.PropulsionLookback
	propulsions := refresher.NewPropulsionWatcher(propulsionCfg, adapter, adapter, stats, clk, log.Logger)

	// Staking facade
	stakingSvc := staking.NewService(adapter, ledger, txTracker, bus, notes, log.Logger)

	// Initialize HTTP handlers
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)
	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"ledger_store": store.Ping,
		"chain": func(ctx context.Context) error {
			_, err := adapter.CurrentBlock(ctx)
			return err
		},
	})

	r := httpapi.NewRouter(httpapi.Config{
		Logger:              log,
		AllowedOrigins:      cfg.AllowedOrigins,
		StakingHandler:      handler.NewStakingHandler(stakingSvc, chainCfg.TokenDecimals),
		TransactionHandler:  handler.NewTransactionHandler(stakingSvc, cfg.ChainID),
		NotificationHandler: handler.NewNotificationHandler(notes),
		StatsHandler:        handler.NewStatsHandler(stats, chainCfg.TokenDecimals, cfg.ChainID),
		PropulsionHandler:   handler.NewPropulsionHandler(propulsions, chainCfg.TokenDecimals),
		EventsHandler:       handler.NewEventsHandler(bus, 0, log.Logger),
		HealthHandler:       healthHandler,
		JWTMiddleware:       middleware.JWTMiddleware(jwtSvc),
	})

	srv := newServer(ctx, ":"+cfg.Port, r)

	// Resume waiting on pending records, then keep resyncing
	txTracker.Start(ctx)
	go txTracker.Run(ctx)
	log.Info("Tracker started", "watching", txTracker.Watching())

	go stats.Run(ctx)
	go propulsions.Run(ctx)

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	txTracker.Stop()
	stats.Stop()
	propulsions.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}

	// Confirmation waits end with ctx; let them finish their ledger writes
	txTracker.Wait()

	log.Info("Server stopped gracefully")
}
