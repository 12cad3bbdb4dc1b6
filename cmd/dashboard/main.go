package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/config"
	"github.com/rovshanmuradov/solsniper-bot/internal/dashboard"
	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/database"
)

func main() {
	_ = godotenv.Load()

	defaultDB := os.Getenv("DATABASE_URL")
	if defaultDB == "" {
		defaultDB = config.DefaultDatabaseURL
	}
	dbURL := flag.String("database", defaultDB, "database_url of the bot store")
	refresh := flag.Duration("refresh", dashboard.DefaultRefresh, "refresh interval")
	limit := flag.Int("limit", dashboard.DefaultLimit, "number of recent trades to show")
	logFile := flag.String("log", "dashboard.log", "log file")
	flag.Parse()

	if err := run(*dbURL, *refresh, *limit, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, "dashboard:", err)
		os.Exit(1)
	}
}

func run(dbURL string, refresh time.Duration, limit int, logFile string) error {
	// Логи только в файл: stdout занят интерфейсом
	cfg := logger.DefaultConfig()
	cfg.LogFile = logFile
	cfg.NoConsole = true
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, dbURL, log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close store", zap.Error(err))
		}
	}()

	model := dashboard.New(dashboard.Config{
		Source:  store,
		Refresh: refresh,
		Limit:   limit,
		Logger:  log.Logger,
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
