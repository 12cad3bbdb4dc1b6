// internal/trading/errors.go
package trading

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
)

var (
	ErrNotRegistered  = errors.New("user is not registered")
	ErrInvalidAddress = errors.New("invalid token address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNoHoldings     = errors.New("no token balance to sell")
	// ErrLedgerUnavailable wraps an RPC failure during a trade. The balance
	// is unknown, so the trade is refused rather than assuming zero.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// InsufficientFundsError is returned when the wallet holds less SOL than
// the buy needs.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s SOL, available %s SOL",
		e.Required.String(), e.Available.StringFixed(4))
}

// Stage names where a trade stopped. Aggregator failures report the
// aggregator stage.
const (
	StageValidate = "validate"
	StageBalance  = "balance"
	StageSign     = "sign"
	StageRecord   = "record"
)

// FailureStage classifies err for events and metrics.
func FailureStage(err error) string {
	var aggErr *jupiter.AggregatorError
	var fundsErr *InsufficientFundsError
	switch {
	case errors.As(err, &aggErr):
		return string(aggErr.Stage)
	case errors.Is(err, ErrLedgerUnavailable), errors.As(err, &fundsErr), errors.Is(err, ErrNoHoldings):
		return StageBalance
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrNotRegistered):
		return StageValidate
	default:
		return StageSign
	}
}
