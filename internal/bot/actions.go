// internal/bot/actions.go
package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solsniper-bot/internal/wallet"
)

// ActionKind is the tag of a decoded callback button.
type ActionKind int

const (
	ActionMenu ActionKind = iota + 1
	ActionBuyPrompt
	ActionBuyAmount
	ActionBuyCustom
	ActionSellMenu
	ActionSellToken
	ActionSellPercent
	ActionWallet
	ActionExportKey
	ActionRefreshBalance
	ActionPositions
	ActionTrades
	ActionSettings
	ActionSetSlippage
	ActionBack
)

var ErrUnknownAction = errors.New("unknown action")

// Action is callback data decoded once at the edge. Only the field that
// belongs to Kind is set.
type Action struct {
	Kind     ActionKind
	Amount   decimal.Decimal // ActionBuyAmount
	Token    string          // ActionSellToken
	Percent  int             // ActionSellPercent, ActionSetSlippage
	Original string
}

// Wire prefixes. Telegram limits callback data to 64 bytes; the longest
// payload is selltoken:<44 chars>.
const (
	dataMenu           = "menu"
	dataBuy            = "buy"
	dataBuyAmount      = "buy:"
	dataBuyCustom      = "buy_custom"
	dataSell           = "sell"
	dataSellToken      = "selltoken:"
	dataSellPercent    = "sell:"
	dataWallet         = "wallet"
	dataExportKey      = "export_key"
	dataRefreshBalance = "refresh_balance"
	dataPositions      = "positions"
	dataTrades         = "trades"
	dataSettings       = "settings"
	dataSlippage       = "slippage:"
	dataBack           = "back_main"
)

var simpleActions = map[string]ActionKind{
	dataMenu:           ActionMenu,
	dataBuy:            ActionBuyPrompt,
	dataBuyCustom:      ActionBuyCustom,
	dataSell:           ActionSellMenu,
	dataWallet:         ActionWallet,
	dataExportKey:      ActionExportKey,
	dataRefreshBalance: ActionRefreshBalance,
	dataPositions:      ActionPositions,
	dataTrades:         ActionTrades,
	dataSettings:       ActionSettings,
	dataBack:           ActionBack,
}

// ParseAction decodes callback data.
func ParseAction(data string) (Action, error) {
	if kind, ok := simpleActions[data]; ok {
		return Action{Kind: kind, Original: data}, nil
	}

	switch {
	case strings.HasPrefix(data, dataBuyAmount):
		amount, err := decimal.NewFromString(strings.TrimPrefix(data, dataBuyAmount))
		if err != nil || !amount.IsPositive() {
			return Action{}, fmt.Errorf("%w: bad buy amount in %q", ErrUnknownAction, data)
		}
		return Action{Kind: ActionBuyAmount, Amount: amount, Original: data}, nil

	case strings.HasPrefix(data, dataSellToken):
		token := strings.TrimPrefix(data, dataSellToken)
		if !wallet.LooksLikeAddress(token) {
			return Action{}, fmt.Errorf("%w: bad token in %q", ErrUnknownAction, data)
		}
		return Action{Kind: ActionSellToken, Token: token, Original: data}, nil

	case strings.HasPrefix(data, dataSellPercent):
		pct, err := strconv.Atoi(strings.TrimPrefix(data, dataSellPercent))
		if err != nil || pct < 1 || pct > 100 {
			return Action{}, fmt.Errorf("%w: bad percent in %q", ErrUnknownAction, data)
		}
		return Action{Kind: ActionSellPercent, Percent: pct, Original: data}, nil

	case strings.HasPrefix(data, dataSlippage):
		pct, err := strconv.Atoi(strings.TrimPrefix(data, dataSlippage))
		if err != nil || pct < 1 || pct > 100 {
			return Action{}, fmt.Errorf("%w: bad slippage in %q", ErrUnknownAction, data)
		}
		return Action{Kind: ActionSetSlippage, Percent: pct, Original: data}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

// Data encodes the action back into callback data.
func (a Action) Data() string {
	switch a.Kind {
	case ActionBuyAmount:
		return dataBuyAmount + a.Amount.String()
	case ActionSellToken:
		return dataSellToken + a.Token
	case ActionSellPercent:
		return dataSellPercent + strconv.Itoa(a.Percent)
	case ActionSetSlippage:
		return dataSlippage + strconv.Itoa(a.Percent)
	}
	for data, kind := range simpleActions {
		if kind == a.Kind {
			return data
		}
	}
	return ""
}

// maxCallbackData is Telegram's limit on callback data, in bytes.
const maxCallbackData = 64

// solDecimals is lamport precision.
const solDecimals = 9

func buyAmountData(amount string) string { return dataBuyAmount + amount }

// retryBuyData repeats a buy at lamport precision. A typed amount that still
// does not fit the callback limit, or truncates to zero, reopens the custom
// amount prompt instead.
func retryBuyData(amount decimal.Decimal) string {
	amount = amount.Truncate(solDecimals)
	data := buyAmountData(amount.String())
	if !amount.IsPositive() || len(data) > maxCallbackData {
		return dataBuyCustom
	}
	return data
}

func sellTokenData(mint string) string   { return dataSellToken + mint }
func sellPercentData(pct int) string     { return dataSellPercent + strconv.Itoa(pct) }
func slippageData(pct int) string        { return dataSlippage + strconv.Itoa(pct) }
