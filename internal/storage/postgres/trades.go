// internal/storage/postgres/trades.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

const (
	insertTradeSQL = `
		INSERT INTO trades (telegram_id, token_address, trade_type, amount_in, amount_out, signature, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at`

	// Amount is merged in one statement; it is never read back first.
	upsertPositionSQL = `
		INSERT INTO positions (telegram_id, token_address, symbol, name, amount, entry_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id, token_address)
		DO UPDATE SET amount = positions.amount + EXCLUDED.amount, updated_at = now()`

	selectTradeColumns = `
		SELECT id, telegram_id, token_address, trade_type, amount_in::text, amount_out::text,
		       COALESCE(signature, ''), status, created_at
		FROM trades`
)

func (s *Store) LogTrade(ctx context.Context, trade *models.Trade) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return insertTrade(ctx, tx, trade)
	})
}

func (s *Store) UpsertPosition(ctx context.Context, delta models.PositionDelta) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return upsertPosition(ctx, tx, delta)
	})
}

func (s *Store) RecordTrade(ctx context.Context, trade *models.Trade, delta models.PositionDelta) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertTrade(ctx, tx, trade); err != nil {
			return err
		}
		return upsertPosition(ctx, tx, delta)
	})
}

// GetTrades returns the newest trades of a user first.
func (s *Store) GetTrades(ctx context.Context, telegramID int64, limit int) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, selectTradeColumns+`
		WHERE telegram_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, telegramID, storage.TradeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return collectTrades(rows)
}

// RecentTrades returns the newest trades across all users.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, selectTradeColumns+`
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, storage.TradeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	return collectTrades(rows)
}

// GetPositions lists open positions, most recently touched first.
func (s *Store) GetPositions(ctx context.Context, telegramID int64) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT telegram_id, token_address, symbol, name, amount::text, entry_price::text, created_at, updated_at
		FROM positions
		WHERE telegram_id = $1 AND amount > 0
		ORDER BY updated_at DESC`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var (
			p          models.Position
			amount     string
			entryPrice sql.NullString
		)
		if err := rows.Scan(&p.TelegramID, &p.TokenAddress, &p.Symbol, &p.Name, &amount, &entryPrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.Amount, err = storage.ParseDecimal("amount", amount); err != nil {
			return nil, err
		}
		if p.EntryPrice, err = storage.ParseNullDecimal("entry_price", entryPrice); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func (s *Store) DeletePosition(ctx context.Context, telegramID int64, tokenAddress string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM positions WHERE telegram_id = $1 AND token_address = $2`, telegramID, tokenAddress)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("position %s: %w", tokenAddress, storage.ErrNotFound)
		}
		return nil
	})
}

func insertTrade(ctx context.Context, tx pgx.Tx, trade *models.Trade) error {
	if trade.Status == "" {
		trade.Status = models.TradeStatusCompleted
	}
	err := tx.QueryRow(ctx, insertTradeSQL,
		trade.TelegramID, trade.TokenAddress, string(trade.Side),
		trade.AmountIn.String(), trade.AmountOut.String(), trade.Signature, trade.Status,
	).Scan(&trade.ID, &trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func upsertPosition(ctx context.Context, tx pgx.Tx, delta models.PositionDelta) error {
	_, err := tx.Exec(ctx, upsertPositionSQL,
		delta.TelegramID, delta.TokenAddress, delta.Symbol, delta.Name,
		delta.Amount.String(), storage.NullDecimalArg(delta.EntryPrice),
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func collectTrades(rows pgx.Rows) ([]models.Trade, error) {
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var (
			t                   models.Trade
			side                string
			amountIn, amountOut string
		)
		if err := rows.Scan(&t.ID, &t.TelegramID, &t.TokenAddress, &side, &amountIn, &amountOut, &t.Signature, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.TradeSide(side)
		var err error
		if t.AmountIn, err = storage.ParseDecimal("amount_in", amountIn); err != nil {
			return nil, err
		}
		if t.AmountOut, err = storage.ParseDecimal("amount_out", amountOut); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}
