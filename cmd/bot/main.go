package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mex-balancer-bot-go/internal/analyzer"
	"mex-balancer-bot-go/internal/binance"
	"mex-balancer-bot-go/internal/bot"
	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/fees"
	"mex-balancer-bot-go/internal/jito"
	"mex-balancer-bot-go/internal/jupiter"
	"mex-balancer-bot-go/internal/logger"
	"mex-balancer-bot-go/internal/rugcheck"
	"mex-balancer-bot-go/internal/security"
	"mex-balancer-bot-go/internal/sniper"
	"mex-balancer-bot-go/internal/trader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	log.Info("Configuration loaded", zap.Bool("dry_run", cfg.Trading.DryRun), zap.Bool("jito", cfg.Jito.Enabled))

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewDatabase(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := database.NewStore(db)

	sec, err := security.NewManager(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize key encryption", zap.Error(err))
	}
	wallet, err := chain.LoadWallet(cfg.Solana.WalletKey, sec)
	if err != nil {
		log.Fatal("Failed to load trading wallet", zap.Error(err))
	}
	rpcClient := chain.NewRPCClient(&cfg.Solana, wallet, log)
	log.Info("Trading wallet loaded", zap.String("address", rpcClient.WalletAddress()))

	jupClient := jupiter.NewRestClient(&cfg.Jupiter, log)
	rugClient := rugcheck.NewClient(&cfg.RugCheck, log)
	dasClient := chain.NewDASClient(cfg.Solana.DASURL(), log)
	prices := binance.NewPriceFeed(&cfg.Binance, log)

	// A typed nil *jito.Client would not compare equal to nil inside the sniper.
	var bundles jito.BundleSender
	if cfg.Jito.Enabled {
		bundles = jito.NewClient(&cfg.Jito, log)
	}

	tokenAnalyzer := analyzer.New(cfg.Analyzer, rugClient, dasClient, jupClient, log)
	feeManager := fees.NewManager(cfg.Fees, rpcClient, cfg.Trading.DryRun, log)
	executor := sniper.New(cfg.Trading, cfg.Jupiter, cfg.Jito, jupClient, rpcClient, bundles, log)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	log.Info("Authorized on Telegram", zap.String("account", api.Self.UserName))
	notifier := bot.NewNotifier(api, cfg.Telegram.ChannelID, log)

	engine, err := trader.NewEngine(log, cfg.Trading, store, executor, feeManager, notifier)
	if err != nil {
		log.Fatal("Failed to create position monitor", zap.Error(err))
	}

	telegram := bot.New(api, &cfg, bot.Deps{
		Store:    store,
		Analyzer: tokenAnalyzer,
		Executor: executor,
		Monitor:  engine,
		Fees:     feeManager,
		Prices:   prices,
		Notifier: notifier,
	}, log)

	server := trader.NewAPIServer(engine, cfg.Server.Port, log)
	server.Start()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){engine.Run, telegram.RunHeartbeat, telegram.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	mode := "🟢 LIVE"
	if cfg.Trading.DryRun {
		mode = "🧪 DRY RUN"
	}
	if err := notifier.NotifyChannel(ctx, fmt.Sprintf("🚀 *MEX BALANCER ONLINE*\nMode: %s\nStrategy: %s", mode, engine.Strategy().Name()), true); err != nil {
		log.Warn("Failed to announce startup", zap.Error(err))
	}
	log.Info("MEX Balancer is running", zap.String("mode", mode))

	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	wg.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Bot has been shut down.")
}
