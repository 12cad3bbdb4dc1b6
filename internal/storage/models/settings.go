// internal/storage/models/settings.go
package models

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solsniper-bot/internal/types"
)

var (
	DefaultSlippage      = decimal.NewFromInt(15)
	DefaultAutoBuyAmount = decimal.RequireFromString("0.1")
)

// Settings are the per-user trading preferences, one row per user.
type Settings struct {
	TelegramID    int64
	Slippage      decimal.Decimal // percent, 15 = 15%
	AutoBuyAmount decimal.Decimal // SOL
	MEVProtection bool
	PriorityFee   types.PriorityLevel
}

// DefaultSettings returns the values a freshly registered user gets.
func DefaultSettings(telegramID int64) Settings {
	return Settings{
		TelegramID:    telegramID,
		Slippage:      DefaultSlippage,
		AutoBuyAmount: DefaultAutoBuyAmount,
		MEVProtection: true,
		PriorityFee:   types.PriorityMedium,
	}
}

// SlippageBps converts the stored percentage for a quote request.
func (s Settings) SlippageBps() (uint16, error) {
	return types.SlippageBps(s.Slippage)
}

// SettingsField is the allow-list of columns UpdateSettings may touch.
type SettingsField string

const (
	FieldSlippage      SettingsField = "slippage"
	FieldAutoBuyAmount SettingsField = "auto_buy_amount"
	FieldMEVProtection SettingsField = "mev_protection"
	FieldPriorityFee   SettingsField = "priority_fee"
)

// SettingsUpdate is a partial update; nil fields are left untouched.
type SettingsUpdate struct {
	Slippage      *decimal.Decimal
	AutoBuyAmount *decimal.Decimal
	MEVProtection *bool
	PriorityFee   *types.PriorityLevel
}

// SettingsChange is one column assignment of an update.
type SettingsChange struct {
	Field SettingsField
	Value any
}

// Changes lists the assignments in a fixed column order. Decimals are
// passed as strings so both engines keep exact values.
func (u SettingsUpdate) Changes() []SettingsChange {
	var out []SettingsChange
	if u.Slippage != nil {
		out = append(out, SettingsChange{FieldSlippage, u.Slippage.String()})
	}
	if u.AutoBuyAmount != nil {
		out = append(out, SettingsChange{FieldAutoBuyAmount, u.AutoBuyAmount.String()})
	}
	if u.MEVProtection != nil {
		out = append(out, SettingsChange{FieldMEVProtection, *u.MEVProtection})
	}
	if u.PriorityFee != nil {
		out = append(out, SettingsChange{FieldPriorityFee, string(*u.PriorityFee)})
	}
	return out
}
