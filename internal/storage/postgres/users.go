// internal/storage/postgres/users.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

// CreateUser inserts the user together with its default settings row.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (telegram_id, username, wallet_address, private_key)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			user.TelegramID, user.Username, user.WalletAddress, user.PrivateKey,
		).Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("user %d: %w", user.TelegramID, storage.ErrAlreadyExists)
			}
			return fmt.Errorf("insert user: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO settings (telegram_id) VALUES ($1)`, user.TelegramID); err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, username, wallet_address, private_key, created_at
		FROM users WHERE telegram_id = $1`, telegramID,
	).Scan(&user.ID, &user.TelegramID, &user.Username, &user.WalletAddress, &user.PrivateKey, &user.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("user %d: %w", telegramID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetSettings returns the defaults when the user has no settings row.
func (s *Store) GetSettings(ctx context.Context, telegramID int64) (models.Settings, error) {
	var (
		slippage, autoBuy, priority string
		mev                         bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT slippage::text, auto_buy_amount::text, mev_protection, priority_fee
		FROM settings WHERE telegram_id = $1`, telegramID,
	).Scan(&slippage, &autoBuy, &mev, &priority)
	if err != nil {
		if isNotFoundError(err) {
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
	for i, change := range changes {
		if !storage.ValidSettingsField(change.Field) {
			return fmt.Errorf("unknown settings field %q", change.Field)
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", change.Field, i+1))
		args = append(args, change.Value)
	}
	args = append(args, telegramID)
	query := fmt.Sprintf("UPDATE settings SET %s WHERE telegram_id = $%d", strings.Join(assignments, ", "), len(args))

	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("settings of %d: %w", telegramID, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.pool.QueryRow(ctx, `
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
