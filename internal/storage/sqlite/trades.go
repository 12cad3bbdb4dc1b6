// internal/storage/sqlite/trades.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

const (
	insertTradeSQL = `
		INSERT INTO trades (telegram_id, token_address, trade_type, amount_in, amount_out, signature, status)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)
		RETURNING id, created_at`

	upsertPositionSQL = `
		INSERT INTO positions (telegram_id, token_address, symbol, name, amount, entry_price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id, token_address)
		DO UPDATE SET amount = amount + excluded.amount,
		              updated_at = CAST(strftime('%s', 'now') AS INTEGER)
		RETURNING typeof(amount)`

	selectTradeColumns = `
		SELECT id, telegram_id, token_address, trade_type, amount_in, amount_out,
		       COALESCE(signature, ''), status, created_at
		FROM trades`
)

func (s *Store) LogTrade(ctx context.Context, trade *models.Trade) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertTrade(ctx, tx, trade)
	})
}

func (s *Store) UpsertPosition(ctx context.Context, delta models.PositionDelta) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertPosition(ctx, tx, delta)
	})
}

func (s *Store) RecordTrade(ctx context.Context, trade *models.Trade, delta models.PositionDelta) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTrade(ctx, tx, trade); err != nil {
			return err
		}
		return upsertPosition(ctx, tx, delta)
	})
}

func (s *Store) GetTrades(ctx context.Context, telegramID int64, limit int) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, selectTradeColumns+`
		WHERE telegram_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, telegramID, storage.TradeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return collectTrades(rows)
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, selectTradeColumns+`
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, storage.TradeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	return collectTrades(rows)
}

func (s *Store) GetPositions(ctx context.Context, telegramID int64) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, token_address, symbol, name, CAST(amount AS TEXT), entry_price, created_at, updated_at
		FROM positions
		WHERE telegram_id = ? AND amount > 0
		ORDER BY updated_at DESC, id DESC`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var (
			p                    models.Position
			amount               string
			entryPrice           sql.NullString
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&p.TelegramID, &p.TokenAddress, &p.Symbol, &p.Name, &amount, &entryPrice, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.Amount, err = storage.ParseDecimal("amount", amount); err != nil {
			return nil, err
		}
		if p.EntryPrice, err = storage.ParseNullDecimal("entry_price", entryPrice); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = unixTime(createdAt), unixTime(updatedAt)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func (s *Store) DeletePosition(ctx context.Context, telegramID int64, tokenAddress string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE telegram_id = ? AND token_address = ?`, telegramID, tokenAddress)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("position %s: %w", tokenAddress, storage.ErrNotFound)
		}
		return nil
	})
}

func insertTrade(ctx context.Context, tx *sql.Tx, trade *models.Trade) error {
	if trade.Status == "" {
		trade.Status = models.TradeStatusCompleted
	}
	var createdAt int64
	err := tx.QueryRowContext(ctx, insertTradeSQL,
		trade.TelegramID, trade.TokenAddress, string(trade.Side),
		trade.AmountIn.String(), trade.AmountOut.String(), trade.Signature, trade.Status,
	).Scan(&trade.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	trade.CreatedAt = unixTime(createdAt)
	return nil
}

// upsertPosition merges the delta into an INTEGER column. SQLite turns an
// overflowing sum into REAL, so the stored type is checked and the
// transaction rolled back when the result is no longer exact.
func upsertPosition(ctx context.Context, tx *sql.Tx, delta models.PositionDelta) error {
	amount, err := storage.Int64Amount(delta.Amount)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	var storedType string
	err = tx.QueryRowContext(ctx, upsertPositionSQL,
		delta.TelegramID, delta.TokenAddress, delta.Symbol, delta.Name,
		amount, storage.NullDecimalArg(delta.EntryPrice),
	).Scan(&storedType)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	if storedType != "integer" {
		return fmt.Errorf("upsert position: merged amount overflows: %w", storage.ErrAmountOutOfRange)
	}
	return nil
}

func collectTrades(rows *sql.Rows) ([]models.Trade, error) {
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var (
			t                   models.Trade
			side                string
			amountIn, amountOut string
			createdAt           int64
		)
		if err := rows.Scan(&t.ID, &t.TelegramID, &t.TokenAddress, &side, &amountIn, &amountOut, &t.Signature, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.TradeSide(side)
		t.CreatedAt = unixTime(createdAt)
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
