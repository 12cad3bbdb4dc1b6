package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solsniper-bot/internal/bot"
	"github.com/rovshanmuradov/solsniper-bot/internal/config"
	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/license"
	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/metrics"
	"github.com/rovshanmuradov/solsniper-bot/internal/server"
	"github.com/rovshanmuradov/solsniper-bot/internal/session"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/database"
	"github.com/rovshanmuradov/solsniper-bot/internal/tokeninfo"
	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
)

const pollTimeout = 60 // seconds, Telegram long polling

func main() {
	configPath := flag.String("config", "", "path to config file (json/yaml), optional")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "💥 Failed to load config:", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	logCfg.LogFile = cfg.LogFile
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "💥 Failed to create logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("💥 Bot stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("🚀 Starting SolSniper bot", zap.Int("workers", cfg.Workers))

	if err := license.Check(ctx, license.Settings{
		Key:          cfg.License,
		AccountID:    cfg.KeygenAccountID,
		ProductToken: cfg.KeygenProductToken,
		ProductID:    cfg.KeygenProductID,
	}, log.Logger); err != nil {
		return fmt.Errorf("license validation failed: %w", err)
	}

	shutdown := bot.NewShutdownHandler(log.Logger, bot.DefaultShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()

	store, err := database.Open(ctx, cfg.DatabaseURL, log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	shutdown.Add("store", store)

	ledger, err := solbc.NewClient(cfg.RPCList, log.Logger)
	if err != nil {
		return fmt.Errorf("rpc client: %w", err)
	}
	ledger.SetObserver(collector)

	aggregator := jupiter.NewClient(cfg.JupiterURL, ledger, log.Logger,
		jupiter.WithAPIKey(cfg.JupiterAPIKey),
		jupiter.WithRateLimit(cfg.RateLimitRPS),
		jupiter.WithTimeout(cfg.HTTPTimeout),
		jupiter.WithObserver(collector),
	)

	tokens := tokeninfo.NewService(cfg.TokenListURL, cfg.DexScreenerURL, cfg.HTTPTimeout, log.Logger)

	events := trading.NewEventBus(log.Logger)
	events.Subscribe(collector)
	events.RegisterHandler(trading.TradeFailedEvent{}, trading.NewFailureAudit(log.Logger))
	shutdown.AddFunc("events", func() error {
		events.Wait()
		return nil
	})

	trader := trading.NewService(trading.Config{
		Store:      store,
		Ledger:     ledger,
		Aggregator: aggregator,
		Tokens:     tokens,
		Events:     events,
		Logger:     log.Logger,
	})

	sessions, err := session.Open(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	shutdown.Add("sessions", sessions)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram api: %w", err)
	}
	log.Info("🤖 Authorized on Telegram", zap.String("username", api.Self.UserName))

	tg := bot.New(bot.Config{
		Sender:   api,
		Trader:   trader,
		Sessions: sessions,
		Logger:   log.Logger,
		Workers:  cfg.Workers,
	})
	if err := tg.RegisterCommands(); err != nil {
		log.Warn("Failed to register bot commands", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		ops := server.New(server.Config{
			Addr:    cfg.HTTPAddr,
			Metrics: collector.Handler(),
			Checks: []server.Check{
				{Name: "rpc", Run: ledger.Ping},
				{Name: "store", Run: func(ctx context.Context) error {
					_, err := store.Stats(ctx)
					return err
				}},
			},
			Logs:   log.Recent(),
			Nodes:  ledger.Pool().Stats,
			Logger: log.Logger,
		})
		g.Go(func() error { return ops.Run(gctx) })
	}

	g.Go(func() error {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = pollTimeout
		updates := api.GetUpdatesChan(u)
		go func() {
			<-gctx.Done()
			api.StopReceivingUpdates()
		}()
		if err := tg.Run(gctx, updates); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("telegram updates channel closed")
		}
		return nil
	})

	log.Info("✅ Bot is running")
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("👋 Bot shutting down gracefully")
	return err
}
