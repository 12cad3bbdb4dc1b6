// internal/storage/sqlite/users.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var createdAt int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (telegram_id, username, wallet_address, private_key)
			VALUES (?, ?, ?, ?)
			RETURNING id, created_at`,
			user.TelegramID, user.Username, user.WalletAddress, user.PrivateKey,
		).Scan(&user.ID, &createdAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %d: %w", user.TelegramID, storage.ErrAlreadyExists)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		user.CreatedAt = unixTime(createdAt)

		if _, err := tx.ExecContext(ctx, `INSERT INTO settings (telegram_id) VALUES (?)`, user.TelegramID); err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, wallet_address, private_key, created_at
		FROM users WHERE telegram_id = ?`, telegramID,
	).Scan(&user.ID, &user.TelegramID, &user.Username, &user.WalletAddress, &user.PrivateKey, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", telegramID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = unixTime(createdAt)
	return &user, nil
}

func (s *Store) GetSettings(ctx context.Context, telegramID int64) (models.Settings, error) {
	var (
		slippage, autoBuy, priority string
		mev                         bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT slippage, auto_buy_amount, mev_protection, priority_fee
		FROM settings WHERE telegram_id = ?`, telegramID,
	).Scan(&slippage, &autoBuy, &mev, &priority)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultSettings(telegramID), nil
		}
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return storage.DecodeSettings(telegramID, slippage, autoBuy, mev, priority)
}

func (s *Store) UpdateSettings(ctx context.Context, telegramID int64, update models.SettingsUpdate) error {
	changes := update.Changes()
	if len(changes) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	for _, change := range changes {
		if !storage.ValidSettingsField(change.Field) {
			return fmt.Errorf("unknown settings field %q", change.Field)
		}
		assignments = append(assignments, string(change.Field)+" = ?")
		args = append(args, change.Value)
	}
	args = append(args, telegramID)
	query := "UPDATE settings SET " + strings.Join(assignments, ", ") + " WHERE telegram_id = ?"

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("settings of %d: %w", telegramID, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM trades),
			(SELECT count(*) FROM positions WHERE amount > 0)`,
	).Scan(&stats.Users, &stats.Trades, &stats.Positions)
	if err != nil {
		return models.Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	return stats, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
