// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// SendOptions определяет опции для отправки транзакций.
type SendOptions struct {
	SkipPreflight bool
	MaxRetries    uint
}

// Ledger is the read-mostly view of the chain the trading flow needs.
type Ledger interface {
	// Строгие чтения: ошибка RPC возвращается вызывающему.
	SOLBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)

	// Нестрогие чтения для отображения: при ошибке ноль.
	SOLBalanceOrZero(ctx context.Context, owner solana.PublicKey) decimal.Decimal
	TokenBalanceOrZero(ctx context.Context, owner, mint solana.PublicKey) uint64

	// Отправить подписанную транзакцию.
	SendRawTransaction(ctx context.Context, raw []byte, opts SendOptions) (solana.Signature, error)
}
