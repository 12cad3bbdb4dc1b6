// internal/storage/models/trade.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

const TradeStatusCompleted = "completed"

// Trade is an append-only record of an executed swap.
//
// For a buy AmountIn is SOL spent and AmountOut is tokens received in
// smallest units; for a sell it is the other way round.
type Trade struct {
	ID           int64
	TelegramID   int64
	TokenAddress string
	Side         TradeSide
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	Signature    string
	Status       string
	CreatedAt    time.Time
}

// Position is the running token amount a user holds, in smallest units.
type Position struct {
	TelegramID   int64
	TokenAddress string
	Symbol       string
	Name         string
	Amount       decimal.Decimal
	EntryPrice   decimal.NullDecimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PositionDelta is merged into a position: added on buy, negative on sell.
// Symbol, Name and EntryPrice are only used when the row is created.
type PositionDelta struct {
	TelegramID   int64
	TokenAddress string
	Symbol       string
	Name         string
	Amount       decimal.Decimal
	EntryPrice   decimal.NullDecimal
}

// Stats is an aggregate snapshot for the operator dashboard.
type Stats struct {
	Users     int64
	Trades    int64
	Positions int64
}
