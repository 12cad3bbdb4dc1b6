// internal/types/slippage.go
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxSlippageBps caps slippage at 100%.
const MaxSlippageBps = 10_000

// SlippagePresets are the percentages offered as buttons.
var SlippagePresets = []int{5, 10, 15, 25}

// SlippageBps converts a slippage percentage (15 = 15%) to basis points,
// rounding to the nearest point.
func SlippageBps(percent decimal.Decimal) (uint16, error) {
	bps := percent.Mul(decimal.NewFromInt(100)).Round(0)
	if !bps.IsPositive() || bps.GreaterThan(decimal.NewFromInt(MaxSlippageBps)) {
		return 0, fmt.Errorf("slippage %s%% out of range", percent)
	}
	return uint16(bps.IntPart()), nil
}
