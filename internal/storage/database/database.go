// Package database opens the storage engine selected by database_url.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/config"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/postgres"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/sqlite"
)

const (
	connectTries = 5
	connectDelay = 500 * time.Millisecond
)

// Open connects to the store and applies migrations. Postgres connections
// are retried, since the database often starts alongside the bot.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (storage.Store, error) {
	target, err := config.ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	switch target.Engine {
	case config.EnginePostgres:
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = connectDelay
		store, err = backoff.Retry(ctx, func() (storage.Store, error) {
			return postgres.New(ctx, target.DSN, logger)
		},
			backoff.WithBackOff(policy),
			backoff.WithMaxTries(connectTries),
			backoff.WithNotify(func(err error, next time.Duration) {
				logger.Warn("Database not ready, retrying",
					zap.Error(err),
					zap.Duration("next_attempt_in", next))
			}),
		)
	case config.EngineSQLite:
		store, err = sqlite.New(ctx, target.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported engine %q", target.Engine)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("Store ready", zap.String("engine", string(target.Engine)))
	return store, nil
}
