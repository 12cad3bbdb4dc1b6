// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/types"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrAmountOutOfRange is returned by engines that cannot hold a token
	// amount exactly. The write is rejected and nothing is stored.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// DefaultTradesLimit is used by GetTrades when limit <= 0.
const DefaultTradesLimit = 10

// Store определяет интерфейс для работы с хранилищем.
// Каждая операция выполняется в отдельной транзакции.
type Store interface {
	// Пользователи
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)

	// Настройки
	GetSettings(ctx context.Context, telegramID int64) (models.Settings, error)
	UpdateSettings(ctx context.Context, telegramID int64, update models.SettingsUpdate) error

	// Сделки
	LogTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, telegramID int64, limit int) ([]models.Trade, error)
	RecentTrades(ctx context.Context, limit int) ([]models.Trade, error)

	// Позиции
	UpsertPosition(ctx context.Context, delta models.PositionDelta) error
	GetPositions(ctx context.Context, telegramID int64) ([]models.Position, error)
	DeletePosition(ctx context.Context, telegramID int64, tokenAddress string) error

	// RecordTrade appends the trade and merges the position delta atomically.
	RecordTrade(ctx context.Context, trade *models.Trade, delta models.PositionDelta) error

	Stats(ctx context.Context) (models.Stats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// ValidSettingsField reports whether f is on the column allow-list.
func ValidSettingsField(f models.SettingsField) bool {
	switch f {
	case models.FieldSlippage, models.FieldAutoBuyAmount, models.FieldMEVProtection, models.FieldPriorityFee:
		return true
	}
	return false
}

// TradeLimit normalises a caller supplied page size.
func TradeLimit(limit int) int {
	if limit <= 0 {
		return DefaultTradesLimit
	}
	return limit
}

// Int64Amount converts a whole token amount for engines with 64-bit integer
// columns.
func Int64Amount(d decimal.Decimal) (int64, error) {
	b := d.BigInt()
	if !d.Equal(decimal.NewFromBigInt(b, 0)) || !b.IsInt64() {
		return 0, fmt.Errorf("%s: %w", d, ErrAmountOutOfRange)
	}
	return b.Int64(), nil
}

// ParseDecimal decodes a NUMERIC column selected as text.
func ParseDecimal(column string, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", column, err)
	}
	return d, nil
}

// ParseNullDecimal is ParseDecimal for nullable columns.
func ParseNullDecimal(column string, raw sql.NullString) (decimal.NullDecimal, error) {
	if !raw.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseDecimal(column, raw.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// NullDecimalArg converts an optional decimal to a driver argument.
func NullDecimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// DecodeSettings builds Settings from raw column values. An unknown
// priority tier falls back to the default one.
func DecodeSettings(telegramID int64, slippage, autoBuy string, mev bool, priority string) (models.Settings, error) {
	settings := models.DefaultSettings(telegramID)
	var err error
	if settings.Slippage, err = ParseDecimal("slippage", slippage); err != nil {
		return models.Settings{}, err
	}
	if settings.AutoBuyAmount, err = ParseDecimal("auto_buy_amount", autoBuy); err != nil {
		return models.Settings{}, err
	}
	settings.MEVProtection = mev
	if level, err := types.ParsePriorityLevel(priority); err == nil {
		settings.PriorityFee = level
	}
	return settings, nil
}
