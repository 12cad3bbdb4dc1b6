// internal/bot/bot.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/session"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/tokeninfo"
	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
	"github.com/rovshanmuradov/solsniper-bot/internal/wallet"
)

const (
	DefaultWorkers        = 16
	DefaultHandlerTimeout = 2 * time.Minute
)

// Sender is the part of tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Trader is what the front-end needs from the trading service.
type Trader interface {
	Register(ctx context.Context, telegramID int64, username string) (*models.User, bool, error)
	User(ctx context.Context, telegramID int64) (*models.User, error)
	Balance(ctx context.Context, walletAddress string) decimal.Decimal
	Settings(ctx context.Context, telegramID int64) models.Settings
	Buy(ctx context.Context, req trading.BuyRequest) (*trading.TradeResult, error)
	Sell(ctx context.Context, req trading.SellRequest) (*trading.TradeResult, error)
	TokenInfo(ctx context.Context, mint string) (*tokeninfo.TokenInfo, error)
	Positions(ctx context.Context, telegramID int64) ([]models.Position, error)
	Trades(ctx context.Context, telegramID int64, limit int) ([]models.Trade, error)
	SetSlippage(ctx context.Context, telegramID int64, percent decimal.Decimal) error
}

// Commands is the menu registered with Telegram at startup.
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "🚀 Start the bot & show wallet"},
	{Command: "buy", Description: "💰 Buy a token"},
	{Command: "sell", Description: "💸 Sell a token"},
	{Command: "wallet", Description: "👛 View your wallet"},
	{Command: "positions", Description: "📊 View your positions"},
	{Command: "trades", Description: "📜 Recent trades"},
	{Command: "settings", Description: "⚙️ Settings"},
	{Command: "help", Description: "❓ Help"},
}

type Config struct {
	Sender   Sender
	Trader   Trader
	Sessions session.Store
	Logger   *zap.Logger

	Workers        int
	HandlerTimeout time.Duration
}

// Bot принимает апдейты Telegram и переводит их в торговые команды
type Bot struct {
	sender   Sender
	trader   Trader
	sessions session.Store
	commands *CommandBus
	logger   *zap.Logger

	sem            *semaphore.Weighted
	workers        int64
	handlerTimeout time.Duration
}

func New(cfg Config) *Bot {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	log := cfg.Logger.Named("bot")
	commands := NewCommandBus(log)
	handler := NewTradeCommandHandler(cfg.Trader)
	commands.RegisterHandler(&BuyCommand{}, handler)
	commands.RegisterHandler(&SellCommand{}, handler)

	return &Bot{
		sender:         cfg.Sender,
		trader:         cfg.Trader,
		sessions:       sessions,
		commands:       commands,
		logger:         log,
		sem:            semaphore.NewWeighted(int64(workers)),
		workers:        int64(workers),
		handlerTimeout: timeout,
	}
}

// RegisterCommands publishes the command menu.
func (b *Bot) RegisterCommands() error {
	if _, err := b.sender.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

// Run handles updates until ctx is done or the channel closes, then waits
// for in-flight handlers.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.logger.Info("Bot started", zap.Int64("workers", b.workers))
	defer b.drain()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopping", zap.Error(ctx.Err()))
			return nil
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("Update channel closed")
				return nil
			}
			if err := b.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			go func(u tgbotapi.Update) {
				defer b.sem.Release(1)
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

func (b *Bot) drain() {
	_ = b.sem.Acquire(context.Background(), b.workers)
	b.sem.Release(b.workers)
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Update handler panic",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r))
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// view is where a screen is drawn: an existing message is edited in place,
// messageID 0 sends a new one.
type view struct {
	chatID    int64
	messageID int
}

func markup(m tgbotapi.InlineKeyboardMarkup) *tgbotapi.InlineKeyboardMarkup { return &m }

func (b *Bot) show(v view, text string, keyboard *tgbotapi.InlineKeyboardMarkup) view {
	if v.messageID != 0 {
		edit := tgbotapi.NewEditMessageText(v.chatID, v.messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.DisableWebPagePreview = true
		edit.ReplyMarkup = keyboard
		if _, err := b.sender.Send(edit); err != nil {
			// Telegram rejects edits that change nothing, e.g. a refresh.
			if strings.Contains(err.Error(), "message is not modified") {
				b.logger.Debug("Edit message unchanged", zap.Int64("chat_id", v.chatID))
			} else {
				b.logger.Warn("Edit message failed", zap.Int64("chat_id", v.chatID), zap.Error(err))
			}
		}
		return v
	}

	msg := tgbotapi.NewMessage(v.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := b.sender.Send(msg)
	if err != nil {
		b.logger.Warn("Send message failed", zap.Int64("chat_id", v.chatID), zap.Error(err))
		return v
	}
	return view{chatID: v.chatID, messageID: sent.MessageID}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	v := view{chatID: msg.Chat.ID}
	userID := msg.From.ID

	if !msg.IsCommand() {
		b.handleText(ctx, v, userID, msg.Text)
		return
	}

	logger.WithUser(b.logger, userID).Debug("Command received", zap.String("command", msg.Command()))

	switch msg.Command() {
	case "start":
		b.start(ctx, v, msg.From)
	case "buy":
		b.show(v, buyPromptText(), markup(backKeyboard()))
	case "sell":
		b.showSellMenu(ctx, v, userID)
	case "wallet":
		b.showWallet(ctx, v, userID)
	case "positions":
		b.showPositions(ctx, v, userID)
	case "trades":
		b.showTrades(ctx, v, userID)
	case "settings":
		b.showSettings(ctx, v, userID)
	case "help":
		b.show(v, helpText(), nil)
	default:
		b.show(v, "❓ Unknown command. Use /help", nil)
	}
}

func (b *Bot) start(ctx context.Context, v view, from *tgbotapi.User) {
	user, created, err := b.trader.Register(ctx, from.ID, from.UserName)
	if err != nil {
		logger.WithUser(b.logger, from.ID).Error("Registration failed", zap.Error(err))
		b.show(v, "❌ Could not set up your wallet. Please try /start again.", nil)
		return
	}
	balance := b.trader.Balance(ctx, user.WalletAddress)
	b.show(v, welcomeText(user, balance, created), markup(mainMenuKeyboard()))
}

func (b *Bot) handleText(ctx context.Context, v view, userID int64, raw string) {
	text := strings.TrimSpace(raw)
	state := b.loadSession(ctx, userID)

	if state.AwaitingCustomAmount {
		amount, err := ParseCustomAmount(text)
		if err != nil {
			b.show(v, badCustomAmountText(text), markup(backKeyboard()))
			return
		}
		state.AwaitingCustomAmount = false
		b.saveSession(ctx, userID, state)
		if state.CurrentToken == "" {
			b.show(v, noTokenSelectedText(), nil)
			return
		}
		b.executeBuy(ctx, v, userID, state.CurrentToken, amount)
		return
	}

	if !wallet.LooksLikeAddress(text) {
		b.show(v, notAddressText(), nil)
		return
	}
	if _, err := wallet.ParseAddress(text); err != nil {
		b.show(v, invalidAddressText(), nil)
		return
	}

	state.CurrentToken = text
	b.saveSession(ctx, userID, state)

	loading := b.show(v, "🔍 Looking up token...", nil)
	info, err := b.trader.TokenInfo(ctx, text)
	if err != nil {
		if !errors.Is(err, tokeninfo.ErrTokenNotFound) {
			b.logger.Warn("Token lookup failed", zap.String("token", text), zap.Error(err))
		}
		info = nil
	}
	b.show(loading, tokenCardText(text, info), markup(buyKeyboard()))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	action, parseErr := ParseAction(cb.Data)

	ack := tgbotapi.NewCallback(cb.ID, "")
	if parseErr != nil {
		ack.Text = "Unknown action"
	}
	if _, err := b.sender.Request(ack); err != nil {
		b.logger.Debug("Callback ack failed", zap.Error(err))
	}

	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	if parseErr != nil {
		logger.WithUser(b.logger, cb.From.ID).Warn("Unknown callback data", zap.Error(parseErr))
		return
	}

	v := view{chatID: cb.Message.Chat.ID, messageID: cb.Message.MessageID}
	b.dispatch(ctx, v, cb.From, action)
}

func (b *Bot) dispatch(ctx context.Context, v view, from *tgbotapi.User, action Action) {
	userID := from.ID

	switch action.Kind {
	case ActionMenu, ActionBack:
		state := b.loadSession(ctx, userID)
		if state.AwaitingCustomAmount {
			state.AwaitingCustomAmount = false
			b.saveSession(ctx, userID, state)
		}
		b.showMainMenu(ctx, v, userID)

	case ActionBuyPrompt:
		b.show(v, buyPromptText(), markup(backKeyboard()))

	case ActionBuyAmount:
		token := b.loadSession(ctx, userID).CurrentToken
		if token == "" {
			b.show(v, noTokenSelectedText(), markup(backKeyboard()))
			return
		}
		b.executeBuy(ctx, v, userID, token, action.Amount)

	case ActionBuyCustom:
		state := b.loadSession(ctx, userID)
		if state.CurrentToken == "" {
			b.show(v, noTokenSelectedText(), markup(backKeyboard()))
			return
		}
		state.AwaitingCustomAmount = true
		b.saveSession(ctx, userID, state)
		b.show(v, customAmountPromptText(), markup(backKeyboard()))

	case ActionSellMenu:
		b.showSellMenu(ctx, v, userID)

	case ActionSellToken:
		state := b.loadSession(ctx, userID)
		state.CurrentToken = action.Token
		b.saveSession(ctx, userID, state)
		b.show(v, sellTokenText(action.Token), markup(sellKeyboard()))

	case ActionSellPercent:
		token := b.loadSession(ctx, userID).CurrentToken
		if token == "" {
			b.show(v, noTokenSelectedText(), markup(backKeyboard()))
			return
		}
		b.executeSell(ctx, v, userID, token, action.Percent)

	case ActionWallet, ActionRefreshBalance:
		b.showWallet(ctx, v, userID)

	case ActionExportKey:
		b.exportKey(ctx, v, userID)

	case ActionPositions:
		b.showPositions(ctx, v, userID)

	case ActionTrades:
		b.showTrades(ctx, v, userID)

	case ActionSettings:
		b.showSettings(ctx, v, userID)

	case ActionSetSlippage:
		if err := b.trader.SetSlippage(ctx, userID, decimal.NewFromInt(int64(action.Percent))); err != nil {
			logger.WithUser(b.logger, userID).Warn("Update slippage failed", zap.Error(err))
			b.show(v, errorText(err), markup(backKeyboard()))
			return
		}
		b.showSettings(ctx, v, userID)

	default:
		b.logger.Error("Unhandled action", zap.Int("kind", int(action.Kind)))
	}
}

// requireUser shows the /start hint when the user is unknown.
func (b *Bot) requireUser(ctx context.Context, v view, userID int64) (*models.User, bool) {
	user, err := b.trader.User(ctx, userID)
	if err != nil {
		if !errors.Is(err, trading.ErrNotRegistered) {
			logger.WithUser(b.logger, userID).Error("Load user failed", zap.Error(err))
		}
		b.show(v, notRegisteredText(), nil)
		return nil, false
	}
	return user, true
}

func (b *Bot) showMainMenu(ctx context.Context, v view, userID int64) {
	user, ok := b.requireUser(ctx, v, userID)
	if !ok {
		return
	}
	b.show(v, welcomeText(user, b.trader.Balance(ctx, user.WalletAddress), false), markup(mainMenuKeyboard()))
}

func (b *Bot) showWallet(ctx context.Context, v view, userID int64) {
	user, ok := b.requireUser(ctx, v, userID)
	if !ok {
		return
	}
	b.show(v, walletText(user, b.trader.Balance(ctx, user.WalletAddress)), markup(walletKeyboard()))
}

// exportKey always sends a new message so the key can be deleted on its own.
func (b *Bot) exportKey(ctx context.Context, v view, userID int64) {
	user, ok := b.requireUser(ctx, v, userID)
	if !ok {
		return
	}
	w, err := wallet.NewWallet(user.PrivateKey)
	if err != nil {
		logger.WithUser(b.logger, userID).Error("Stored key is unreadable", zap.Error(err))
		b.show(view{chatID: v.chatID}, "❌ Could not read your wallet key.", nil)
		return
	}
	logger.WithUser(b.logger, userID).Info("Private key exported")
	b.show(view{chatID: v.chatID}, exportKeyText(w.ExportKey()), nil)
}

func (b *Bot) positions(ctx context.Context, userID int64) []models.Position {
	positions, err := b.trader.Positions(ctx, userID)
	if err != nil {
		logger.WithUser(b.logger, userID).Error("Load positions failed", zap.Error(err))
		return nil
	}
	return positions
}

func (b *Bot) showPositions(ctx context.Context, v view, userID int64) {
	if _, ok := b.requireUser(ctx, v, userID); !ok {
		return
	}
	b.show(v, positionsText(b.positions(ctx, userID)), markup(refreshKeyboard(dataPositions)))
}

func (b *Bot) showSellMenu(ctx context.Context, v view, userID int64) {
	if _, ok := b.requireUser(ctx, v, userID); !ok {
		return
	}
	positions := b.positions(ctx, userID)
	if len(positions) == 0 {
		b.show(v, sellMenuText(nil), markup(noPositionsKeyboard()))
		return
	}
	b.show(v, sellMenuText(positions), markup(positionsKeyboard(positions)))
}

func (b *Bot) showTrades(ctx context.Context, v view, userID int64) {
	if _, ok := b.requireUser(ctx, v, userID); !ok {
		return
	}
	trades, err := b.trader.Trades(ctx, userID, storage.DefaultTradesLimit)
	if err != nil {
		logger.WithUser(b.logger, userID).Error("Load trades failed", zap.Error(err))
		trades = nil
	}
	b.show(v, tradesText(trades), markup(refreshKeyboard(dataTrades)))
}

func (b *Bot) showSettings(ctx context.Context, v view, userID int64) {
	if _, ok := b.requireUser(ctx, v, userID); !ok {
		return
	}
	settings := b.trader.Settings(ctx, userID)
	b.show(v, settingsText(settings), markup(settingsKeyboard(settings)))
}

func (b *Bot) executeBuy(ctx context.Context, v view, userID int64, token string, amount decimal.Decimal) {
	v = b.show(v, executingText(models.SideBuy), nil)

	cmd := &BuyCommand{TelegramID: userID, TokenMint: token, AmountSOL: amount}
	if err := b.commands.Send(ctx, cmd); err != nil {
		b.show(v, errorText(err), markup(retryKeyboard(retryBuyData(amount))))
		return
	}
	b.show(v, tradeResultText(cmd.Result), markup(tradeDoneKeyboard()))
}

func (b *Bot) executeSell(ctx context.Context, v view, userID int64, token string, percent int) {
	v = b.show(v, executingText(models.SideSell), nil)

	cmd := &SellCommand{TelegramID: userID, TokenMint: token, Percent: percent}
	if err := b.commands.Send(ctx, cmd); err != nil {
		b.show(v, errorText(err), markup(retryKeyboard(sellPercentData(percent))))
		return
	}
	b.show(v, tradeResultText(cmd.Result), markup(tradeDoneKeyboard()))
}

func (b *Bot) loadSession(ctx context.Context, userID int64) session.State {
	state, err := b.sessions.Get(ctx, userID)
	if err != nil {
		logger.WithUser(b.logger, userID).Warn("Load session failed", zap.Error(err))
		return session.State{}
	}
	return state
}

func (b *Bot) saveSession(ctx context.Context, userID int64, state session.State) {
	if err := b.sessions.Save(ctx, userID, state); err != nil {
		logger.WithUser(b.logger, userID).Warn("Save session failed", zap.Error(err))
	}
}

// ParseCustomAmount reads a typed SOL amount. Both "0.5" and "0,5" are
// accepted; the amount must be positive.
func ParseCustomAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", trading.ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be positive", trading.ErrInvalidAmount)
	}
	return amount, nil
}
