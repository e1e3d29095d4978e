package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/chain"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/config"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/events"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/flags"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/jito"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/metrics"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/rpc"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/scheduler"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/server"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/storage"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/strategy"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/tokens"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	strategyName := flag.String("strategy", "", "single | rebalance | arbitrage (overrides STRATEGY)")
	once := flag.Bool("once", false, "run a single round and exit")
	flag.Parse()

	cfg := config.Load()
	if *strategyName != "" {
		cfg.Strategy = *strategyName
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("swapbot stopped with error")
	}
	logger.Info("swapbot stopped")
}

func run(ctx context.Context, cfg *config.Config, once bool, logger *logrus.Logger) error {
	w, err := wallet.Load(cfg.WalletPrivateKey, cfg.WalletKeypairPath)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	logger.WithField("wallet", w.Address()).Info("wallet loaded")

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RPCRateLimit,
		Logger:       logger,
	})
	node := chain.NewClient(rpcClient, logger)

	registry := tokens.NewRegistry(node)
	if cfg.TokenRegistryPath != "" {
		if err := registry.LoadFile(cfg.TokenRegistryPath); err != nil {
			return err
		}
	}

	routes := swapengine.NewJupiterRoutes(jupiter.NewClient(cfg.JupiterURL, cfg.JupiterAPIKey).WithTimeout(cfg.HTTPTimeout))
	relay := swapengine.NewJitoRelay(jito.NewClient(jito.Config{
		BaseURL:      cfg.JitoURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.JitoRateLimit,
		Logger:       logger,
	}))

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	engine, err := swapengine.New(swapengine.Deps{
		Quotes:       routes,
		Instructions: routes,
		Tables:       node,
		Simulator:    node,
		Checkpoints:  node,
		Fees:         node,
		Relay:        relay,
		Signer:       w,
	}, swapengine.Config{
		MaxAttempts:          cfg.SwapMaxAttempts,
		RetryBackoff:         cfg.SwapRetryBackoff,
		SlippageStep:         cfg.SlippageStep,
		MaxSlippageBps:       cfg.MaxSlippageBps,
		SimulationRounds:     cfg.SimulationRounds,
		ComputeUnitMarginPct: cfg.ComputeUnitMarginPct,
		DefaultPriorityFee:   cfg.DefaultPriorityFee,
		TipLamports:          cfg.TipLamports,
		PollInterval:         cfg.BundlePollInterval,
		PollAttempts:         cfg.BundlePollAttempts,
		Resubmit:             swapengine.ResubmitMode(cfg.ResubmitMode),
		CheckpointMaxAge:     cfg.CheckpointMaxAge,
	}, logger)
	if err != nil {
		return err
	}
	engine.WithMetrics(m)

	strat, schedCfg, err := buildStrategy(ctx, cfg, registry, routes, node, w, logger)
	if err != nil {
		return err
	}
	schedCfg.MaxDuration = cfg.MaxRunDuration
	schedCfg.Once = once

	// Redis is optional: without it flags and history live in memory.
	var (
		flagStore flags.Backend
		history   storage.SettlementStore
	)
	memory := events.NewMemoryStore(0)
	sinks := events.Fanout{memory}
	history = memory
	flagStore = flags.NewMemoryStore()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis unreachable, using in-memory flags and history")
		} else {
			store, err := flags.NewStore(rdb)
			if err != nil {
				return err
			}
			flagStore = store
			redisEvents := events.NewRedisStore(rdb, logger)
			history = redisEvents
			sinks = events.Fanout{memory, redisEvents}
			logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
		}
	}

	runner := scheduler.NewRunner(strat, engine, schedCfg, logger).
		WithFlags(flagStore).
		WithSink(sinks).
		WithMetrics(m)

	var srv *server.Server
	if cfg.StatusAddr != "" {
		srv, err = server.NewServer(server.ServerDeps{
			Config: server.ServerConfig{
				Addr:      cfg.StatusAddr,
				APIKey:    cfg.StatusAPIKey,
				RateLimit: cfg.StatusRateLimit,
			},
			Handlers: &server.Handlers{
				Scheduler:   runner,
				Wallet:      w.Address(),
				Flags:       flagStore,
				Settlements: history,
				Quotes:      routes,
				Tokens:      registry,
				Logger:      logger,
			},
		})
		if err != nil {
			return err
		}
		go func() {
			logger.WithField("addr", cfg.StatusAddr).Info("status server listening")
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("status server failed")
			}
		}()
	}

	runErr := runner.Run(ctx)

	if srv != nil {
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("status server shutdown failed")
		}
	}
	return runErr
}

// buildStrategy resolves token symbols and raw amounts for the selected
// strategy and returns it with its round timing.
func buildStrategy(
	ctx context.Context,
	cfg *config.Config,
	registry *tokens.Registry,
	quotes swapengine.QuoteProvider,
	balances strategy.BalanceSource,
	w *wallet.Wallet,
	logger *logrus.Logger,
) (strategy.Strategy, scheduler.Config, error) {
	target := func(symbolOrMint string) (strategy.Target, error) {
		mint, err := registry.Resolve(symbolOrMint)
		if err != nil {
			return strategy.Target{}, err
		}
		return strategy.Target{Mint: mint, Symbol: registry.Symbol(mint)}, nil
	}
	rawAmount := func(t strategy.Target, amount string) (uint64, error) {
		decimals, err := registry.Decimals(ctx, t.Mint)
		if err != nil {
			return 0, err
		}
		return tokens.ToRaw(amount, decimals)
	}
	targets := func(list []string) ([]strategy.Target, error) {
		out := make([]strategy.Target, 0, len(list))
		for _, s := range list {
			t, err := target(s)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}

	switch cfg.Strategy {
	case "single":
		in, err := target(cfg.SingleInput)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		out, err := target(cfg.SingleOutput)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		amount, err := rawAmount(in, cfg.SingleAmount)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		s, err := strategy.NewSingle(strategy.SingleConfig{
			Input:       in,
			Output:      out,
			Amount:      amount,
			SlippageBps: cfg.SingleSlippageBps,
		})
		return s, scheduler.Config{Interval: cfg.SingleInterval}, err

	case "rebalance":
		source, err := target(cfg.RebalanceSource)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		amount, err := rawAmount(source, cfg.RebalanceAmount)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		list, err := targets(cfg.RebalanceTargets)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		s, err := strategy.NewRebalance(strategy.RebalanceConfig{
			Owner:        w.PublicKey(),
			Source:       source,
			SourceAmount: amount,
			SlippageBps:  cfg.RebalanceSlippageBps,
			Targets:      list,
		}, quotes, balances, logger)
		return s, scheduler.Config{Interval: cfg.RebalanceInterval, Pacing: cfg.RebalancePacing}, err

	case "arbitrage":
		base, err := target(cfg.ArbBase)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		amount, err := rawAmount(base, cfg.ArbAmount)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		list, err := targets(cfg.ArbIntermediates)
		if err != nil {
			return nil, scheduler.Config{}, err
		}
		s, err := strategy.NewArbitrage(strategy.ArbitrageConfig{
			Base:             base,
			Amount:           amount,
			SlippageBps:      cfg.ArbSlippageBps,
			Threshold:        cfg.ArbThreshold,
			MaxAttempts:      cfg.ArbMaxAttempts,
			SimulationRounds: cfg.ArbSimulationRounds,
			Intermediates:    list,
		}, quotes, logger)
		return s, scheduler.Config{Interval: cfg.ArbInterval, Pacing: cfg.ArbPacing}, err
	}
	return nil, scheduler.Config{}, fmt.Errorf("unknown strategy %q", cfg.Strategy)
}
