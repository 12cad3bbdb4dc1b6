// internal/bot/messages.go
package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/tokeninfo"
	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
)

const divider = "━━━━━━━━━━━━━━━━━━━━"

// Все тексты рендерятся в HTML режиме, пользовательские строки экранируются.

func welcomeText(user *models.User, balance decimal.Decimal, created bool) string {
	var b strings.Builder
	if created {
		b.WriteString("🎉 <b>Welcome to SolSniper Bot!</b>\n\nYour new wallet has been created!\n\n")
	} else {
		b.WriteString("👋 <b>Welcome back!</b>\n\n")
	}
	fmt.Fprintf(&b, "%s\n👛 <b>Your Wallet</b>\n<code>%s</code>\n\n💰 <b>Balance:</b> <code>%s SOL</code>\n%s\n\n",
		divider, user.WalletAddress, balance.StringFixed(4), divider)
	b.WriteString("<b>Quick Start:</b>\n")
	b.WriteString("1️⃣ Send SOL to your wallet address above\n")
	b.WriteString("2️⃣ Paste a token contract address\n")
	b.WriteString("3️⃣ Pick an amount to buy")
	return b.String()
}

func helpText() string {
	return strings.Join([]string{
		"❓ <b>Help - SolSniper Bot</b>",
		divider,
		"<b>How to use:</b>",
		"1️⃣ /start - Create your wallet",
		"2️⃣ Send SOL to your wallet address",
		"3️⃣ Paste a token contract address",
		"4️⃣ Pick an amount to buy",
		"5️⃣ Use /sell to sell",
		divider,
		"<b>Commands:</b>",
		"/start - Start &amp; show wallet",
		"/buy - Buy tokens",
		"/sell - Sell tokens",
		"/wallet - View wallet",
		"/positions - View positions",
		"/trades - Recent trades",
		"/settings - Settings",
	}, "\n")
}

func buyPromptText() string {
	return "💰 <b>Buy Token</b>\n\nPaste a token contract address to see its card and buy options."
}

func customAmountPromptText() string {
	return "✏️ <b>Custom Amount</b>\n\nSend the amount of SOL to spend, for example <code>0.3</code>."
}

func badCustomAmountText(input string) string {
	return fmt.Sprintf("❌ <code>%s</code> is not a valid amount.\n\nSend a positive number of SOL, for example <code>0.3</code> or <code>0,3</code>.",
		html.EscapeString(input))
}

func noTokenSelectedText() string {
	return "📝 Send me a token contract address first."
}

func notAddressText() string {
	return "📝 Send me a token contract address to trade!"
}

func invalidAddressText() string {
	return "❌ Invalid token address. Please send a valid Solana token address."
}

func notRegisteredText() string {
	return "❌ Please use /start first."
}

// tokenCardText renders the token card. A nil info means no upstream knows
// the token yet.
func tokenCardText(mint string, info *tokeninfo.TokenInfo) string {
	var b strings.Builder
	if info == nil {
		fmt.Fprintf(&b, "🆕 <b>New Token Detected</b>\n\n%s\n⚠️ Token not yet listed on DEXes\n\n📋 <b>Contract:</b>\n<code>%s</code>\n%s\n\n",
			divider, mint, divider)
		b.WriteString("Select an amount to buy:")
		return b.String()
	}

	name := orDefault(info.Name, "Unknown Token")
	symbol := orDefault(info.Symbol, "???")
	fmt.Fprintf(&b, "🪙 <b>%s</b> ($%s)\n\n%s\n", html.EscapeString(name), html.EscapeString(symbol), divider)
	fmt.Fprintf(&b, "📍 <b>Platform:</b> %s\n", html.EscapeString(info.Platform()))
	if info.HasMarket {
		change := "🟢"
		if info.PriceChange24h.IsNegative() {
			change = "🔴"
		}
		fmt.Fprintf(&b, "💵 <b>Price:</b> $%s\n", info.PriceUSD.String())
		fmt.Fprintf(&b, "💧 <b>Liquidity:</b> $%s\n", info.LiquidityUSD.StringFixed(0))
		fmt.Fprintf(&b, "📊 <b>Market Cap:</b> $%s\n", info.MarketCap.StringFixed(0))
		fmt.Fprintf(&b, "📈 <b>24h Volume:</b> $%s\n", info.Volume24h.StringFixed(0))
		fmt.Fprintf(&b, "%s <b>24h Change:</b> %s%%\n", change, signed(info.PriceChange24h))
	}
	fmt.Fprintf(&b, "%s\n\n📋 <b>Contract:</b>\n<code>%s</code>\n\nSelect an amount to buy:", divider, mint)
	return b.String()
}

func walletText(user *models.User, balance decimal.Decimal) string {
	return fmt.Sprintf("👛 <b>Your Wallet</b>\n\n%s\n📋 <b>Address:</b>\n<code>%s</code>\n\n💰 <b>Balance:</b> <code>%s SOL</code>\n%s",
		divider, user.WalletAddress, balance.StringFixed(4), divider)
}

func exportKeyText(privateKey string) string {
	return fmt.Sprintf("🔑 <b>Private Key</b>\n\n<code>%s</code>\n\n⚠️ Anyone with this key controls your wallet. Delete this message after saving it.",
		privateKey)
}

func positionLabel(p models.Position) string {
	if p.Symbol != "" {
		return p.Symbol
	}
	return logger.ShortenAddress(p.TokenAddress)
}

func positionsText(positions []models.Position) string {
	if len(positions) == 0 {
		return "📊 <b>Your Positions</b>\n\nNo open positions yet. Paste a token address to buy."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Your Positions</b>\n\n%s\n", divider)
	for _, p := range positions {
		fmt.Fprintf(&b, "🪙 <b>%s</b>\n   Amount: <code>%s</code>\n", html.EscapeString(positionLabel(p)), p.Amount.String())
		if p.EntryPrice.Valid {
			fmt.Fprintf(&b, "   Entry: <code>%s SOL</code>\n", p.EntryPrice.Decimal.String())
		}
		fmt.Fprintf(&b, "   <code>%s</code>\n", p.TokenAddress)
	}
	b.WriteString(divider)
	return b.String()
}

func sellMenuText(positions []models.Position) string {
	if len(positions) == 0 {
		return "💸 <b>Sell Token</b>\n\nYou have no positions to sell."
	}
	return "💸 <b>Sell Token</b>\n\nSelect a position to sell:"
}

func sellTokenText(mint string) string {
	return fmt.Sprintf("💸 <b>Sell Token</b>\n\n📋 <code>%s</code>\n\nSelect how much to sell:", mint)
}

func tradesText(trades []models.Trade) string {
	if len(trades) == 0 {
		return "📜 <b>Recent Trades</b>\n\nNo trades yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 <b>Recent Trades</b>\n\n%s\n", divider)
	for _, t := range trades {
		icon := "🟢"
		if t.Side == models.SideSell {
			icon = "🔴"
		}
		fmt.Fprintf(&b, "%s <b>%s</b> %s\n   in <code>%s</code> / out <code>%s</code>\n   %s\n",
			icon, t.Side, logger.ShortenAddress(t.TokenAddress),
			t.AmountIn.String(), t.AmountOut.String(),
			t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	b.WriteString(divider)
	return b.String()
}

func settingsText(settings models.Settings) string {
	mev := "off"
	if settings.MEVProtection {
		mev = "on"
	}
	return fmt.Sprintf("⚙️ <b>Settings</b>\n\n%s\n📉 <b>Slippage:</b> %s%%\n💰 <b>Auto-buy amount:</b> %s SOL\n🛡️ <b>MEV protection:</b> %s\n⚡ <b>Priority fee:</b> %s\n%s\n\nPick a slippage:",
		divider, settings.Slippage.String(), settings.AutoBuyAmount.String(), mev, settings.PriorityFee, divider)
}

func executingText(side models.TradeSide) string {
	if side == models.SideSell {
		return "⏳ <b>Executing sell order...</b>"
	}
	return "⏳ <b>Executing buy order...</b>"
}

func tradeResultText(result *trading.TradeResult) string {
	var b strings.Builder
	if result.Side == models.SideSell {
		fmt.Fprintf(&b, "✅ <b>Sell Successful!</b>\n\n%s\n🪙 Sold: <code>%s</code>\n💰 Received: <code>%s SOL</code>\n",
			divider, result.AmountIn.String(), result.AmountOut.String())
	} else {
		fmt.Fprintf(&b, "✅ <b>Buy Successful!</b>\n\n%s\n💰 Spent: <code>%s SOL</code>\n🪙 Received: <code>%s</code>\n",
			divider, result.AmountIn.String(), result.AmountOut.String())
	}
	if result.Token != nil && result.Token.Symbol != "" {
		fmt.Fprintf(&b, "🏷️ Token: %s\n", html.EscapeString(result.Token.Symbol))
	}
	fmt.Fprintf(&b, "🔗 <a href=\"https://solscan.io/tx/%s\">View transaction</a>\n%s", result.Signature, divider)
	if !result.Recorded {
		b.WriteString("\n\n⚠️ The swap landed but could not be saved to your history.")
	}
	return b.String()
}

// errorText maps trading errors to user-facing text.
func errorText(err error) string {
	var funds *trading.InsufficientFundsError
	var aggErr *jupiter.AggregatorError
	switch {
	case errors.Is(err, trading.ErrNotRegistered):
		return notRegisteredText()
	case errors.Is(err, trading.ErrInvalidAddress):
		return invalidAddressText()
	case errors.Is(err, trading.ErrInvalidAmount):
		return "❌ Invalid amount."
	case errors.As(err, &funds):
		return fmt.Sprintf("❌ <b>Insufficient balance!</b>\n\nRequired: <code>%s SOL</code>\nAvailable: <code>%s SOL</code>",
			funds.Required.String(), funds.Available.StringFixed(4))
	case errors.Is(err, trading.ErrNoHoldings):
		return "❌ You have no balance of this token."
	case errors.Is(err, trading.ErrLedgerUnavailable):
		return "❌ Could not read your balance from the network."
	case errors.As(err, &aggErr):
		return fmt.Sprintf("❌ <b>Transaction failed</b> at %s\n\n<code>%s</code>", aggErr.Stage, html.EscapeString(aggErr.Error()))
	default:
		return fmt.Sprintf("❌ <b>Transaction failed</b>\n\n<code>%s</code>", html.EscapeString(err.Error()))
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
