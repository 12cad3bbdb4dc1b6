package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/session"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/tokeninfo"
	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
	"github.com/rovshanmuradov/solsniper-bot/internal/wallet"
)

const (
	testUser  int64 = 1001
	testChat  int64 = 5001
	testToken       = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// fakeSender records everything the bot sends.
type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	nextID  int
	sendErr error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	if s.sendErr != nil {
		return tgbotapi.Message{}, s.sendErr
	}
	s.nextID++
	return tgbotapi.Message{MessageID: s.nextID}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every sent or edited message, in order.
func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (s *fakeSender) lastText() string {
	texts := s.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// lastKeyboardData collects callback data of the last message that had a keyboard.
func (s *fakeSender) lastKeyboardData() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		var kb *tgbotapi.InlineKeyboardMarkup
		switch m := s.sent[i].(type) {
		case tgbotapi.MessageConfig:
			if k, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				kb = &k
			}
		case tgbotapi.EditMessageTextConfig:
			kb = m.ReplyMarkup
		}
		if kb == nil {
			continue
		}
		var data []string
		for _, row := range kb.InlineKeyboard {
			for _, button := range row {
				if button.CallbackData != nil {
					data = append(data, *button.CallbackData)
				}
			}
		}
		return data
	}
	return nil
}

type fakeTrader struct {
	mu      sync.Mutex
	user    *models.User
	balance decimal.Decimal
	info    *tokeninfo.TokenInfo

	buys     []trading.BuyRequest
	sells    []trading.SellRequest
	buyErr   error
	sellErr  error
	slippage decimal.Decimal

	positions []models.Position
	trades    []models.Trade
}

func newFakeTrader(t *testing.T) *fakeTrader {
	w, err := wallet.Generate()
	require.NoError(t, err)
	return &fakeTrader{
		user: &models.User{
			TelegramID:    testUser,
			WalletAddress: w.Address(),
			PrivateKey:    w.ExportKey(),
		},
		balance: decimal.RequireFromString("2"),
	}
}

func (f *fakeTrader) Register(_ context.Context, telegramID int64, username string) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.Username = username
	return f.user, true, nil
}

func (f *fakeTrader) User(_ context.Context, telegramID int64) (*models.User, error) {
	if telegramID != testUser {
		return nil, trading.ErrNotRegistered
	}
	return f.user, nil
}

func (f *fakeTrader) Balance(context.Context, string) decimal.Decimal { return f.balance }

func (f *fakeTrader) Settings(_ context.Context, telegramID int64) models.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	settings := models.DefaultSettings(telegramID)
	if !f.slippage.IsZero() {
		settings.Slippage = f.slippage
	}
	return settings
}

func (f *fakeTrader) Buy(_ context.Context, req trading.BuyRequest) (*trading.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys = append(f.buys, req)
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	return &trading.TradeResult{
		Signature:    solana.Signature{1},
		Side:         models.SideBuy,
		TokenAddress: req.TokenAddress,
		AmountIn:     req.AmountSOL,
		AmountOut:    decimal.NewFromInt(500000),
		Recorded:     true,
	}, nil
}

func (f *fakeTrader) Sell(_ context.Context, req trading.SellRequest) (*trading.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sells = append(f.sells, req)
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	return &trading.TradeResult{
		Signature:    solana.Signature{2},
		Side:         models.SideSell,
		TokenAddress: req.TokenAddress,
		AmountIn:     decimal.NewFromInt(125000),
		AmountOut:    decimal.RequireFromString("0.25"),
		Recorded:     true,
	}, nil
}

func (f *fakeTrader) TokenInfo(context.Context, string) (*tokeninfo.TokenInfo, error) {
	if f.info == nil {
		return nil, tokeninfo.ErrTokenNotFound
	}
	return f.info, nil
}

func (f *fakeTrader) Positions(context.Context, int64) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeTrader) Trades(context.Context, int64, int) ([]models.Trade, error) {
	return f.trades, nil
}

func (f *fakeTrader) SetSlippage(_ context.Context, _ int64, percent decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slippage = percent
	return nil
}

type harness struct {
	bot      *Bot
	sender   *fakeSender
	trader   *fakeTrader
	sessions *session.MemoryStore
}

func newHarness(t *testing.T) *harness {
	sender := &fakeSender{}
	trader := newFakeTrader(t)
	sessions := session.NewMemoryStore()
	b := New(Config{
		Sender:   sender,
		Trader:   trader,
		Sessions: sessions,
		Logger:   zaptest.NewLogger(t),
		Workers:  4,
	})
	return &harness{bot: b, sender: sender, trader: trader, sessions: sessions}
}

func commandUpdate(command string) tgbotapi.Update {
	text := "/" + command
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUser, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: testUser},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}}
}

func (h *harness) handle(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	h.bot.HandleUpdate(context.Background(), update)
}

func (h *harness) selectToken(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, h.sessions.Save(context.Background(), testUser, session.State{CurrentToken: token}))
}

func TestStartShowsWalletAndBalance(t *testing.T) {
	h := newHarness(t)
	h.handle(t, commandUpdate("start"))

	text := h.sender.lastText()
	assert.Contains(t, text, "Welcome to SolSniper Bot")
	assert.Contains(t, text, h.trader.user.WalletAddress)
	assert.Contains(t, text, "2.0000 SOL")
	assert.Equal(t, "alice", h.trader.user.Username)
	assert.Contains(t, h.sender.lastKeyboardData(), dataBuy)
}

func TestRegisterCommands(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.RegisterCommands())

	require.Len(t, h.sender.sent, 1)
	cfg, ok := h.sender.sent[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	assert.Len(t, cfg.Commands, len(Commands))
}

func TestTokenAddressShowsCardAndRemembersToken(t *testing.T) {
	h := newHarness(t)
	h.trader.info = &tokeninfo.TokenInfo{
		Address:   testToken,
		Name:      "Bonk",
		Symbol:    "BONK",
		DexID:     "raydium",
		HasMarket: true,
		PriceUSD:  decimal.RequireFromString("0.00002"),
	}

	h.handle(t, textUpdate("  "+testToken+" "))

	texts := h.sender.texts()
	require.Len(t, texts, 2, "loading message then the card edit")
	assert.Contains(t, texts[0], "Looking up token")
	assert.Contains(t, texts[1], "BONK")
	assert.Contains(t, texts[1], testToken)
	assert.Contains(t, h.sender.lastKeyboardData(), buyAmountData("0.5"))

	state, err := h.sessions.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, testToken, state.CurrentToken)
}

func TestUnknownTokenShowsNewTokenCard(t *testing.T) {
	h := newHarness(t)
	h.handle(t, textUpdate(testToken))
	assert.Contains(t, h.sender.lastText(), "New Token Detected")
}

func TestFreeTextRouting(t *testing.T) {
	h := newHarness(t)

	h.handle(t, textUpdate("hello"))
	assert.Contains(t, h.sender.lastText(), "Send me a token contract address")

	// 32-44 chars but not base58.
	h.handle(t, textUpdate(strings.Repeat("0", 40)))
	assert.Contains(t, h.sender.lastText(), "Invalid token address")

	state, _ := h.sessions.Get(context.Background(), testUser)
	assert.Empty(t, state.CurrentToken)
}

func TestBuyAmountUsesSessionToken(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)

	h.handle(t, callbackUpdate(buyAmountData("0.5")))

	require.Len(t, h.trader.buys, 1)
	assert.Equal(t, testToken, h.trader.buys[0].TokenAddress)
	assert.True(t, decimal.RequireFromString("0.5").Equal(h.trader.buys[0].AmountSOL))
	assert.Equal(t, testUser, h.trader.buys[0].TelegramID)

	texts := h.sender.texts()
	assert.Contains(t, texts[0], "Executing buy order")
	assert.Contains(t, h.sender.lastText(), "Buy Successful")
	assert.Contains(t, h.sender.lastText(), "500000")
}

func TestBuyWithoutTokenAsksForOne(t *testing.T) {
	h := newHarness(t)
	h.handle(t, callbackUpdate(buyAmountData("1")))

	assert.Empty(t, h.trader.buys)
	assert.Contains(t, h.sender.lastText(), "token contract address first")
}

func TestBuyFailureOffersRetry(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)
	h.trader.buyErr = &trading.InsufficientFundsError{
		Required:  decimal.RequireFromString("5"),
		Available: decimal.RequireFromString("1"),
	}

	h.handle(t, callbackUpdate(buyAmountData("5")))

	text := h.sender.lastText()
	assert.Contains(t, text, "Insufficient balance")
	assert.Contains(t, text, "1.0000")
	assert.Contains(t, h.sender.lastKeyboardData(), buyAmountData("5"), "try again repeats the buy")
}

func TestAggregatorFailureShowsStage(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)
	h.trader.buyErr = &jupiter.AggregatorError{Stage: jupiter.StageQuote, StatusCode: 400, Body: "no route"}

	h.handle(t, callbackUpdate(buyAmountData("1")))

	assert.Contains(t, h.sender.lastText(), "no route")
	assert.Contains(t, h.sender.lastKeyboardData(), buyAmountData("1"))
}

func TestCustomAmountFlow(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)
	ctx := context.Background()

	h.handle(t, callbackUpdate(dataBuyCustom))
	state, _ := h.sessions.Get(ctx, testUser)
	assert.True(t, state.AwaitingCustomAmount)
	assert.Contains(t, h.sender.lastText(), "Custom Amount")

	for _, bad := range []string{"abc", "-1", "0"} {
		h.handle(t, textUpdate(bad))
		assert.Contains(t, h.sender.lastText(), "not a valid amount")
		state, _ = h.sessions.Get(ctx, testUser)
		assert.True(t, state.AwaitingCustomAmount, "bad input %q keeps the prompt open", bad)
	}
	assert.Empty(t, h.trader.buys)

	h.handle(t, textUpdate("0,3"))
	require.Len(t, h.trader.buys, 1)
	assert.True(t, decimal.RequireFromString("0.3").Equal(h.trader.buys[0].AmountSOL))

	state, _ = h.sessions.Get(ctx, testUser)
	assert.False(t, state.AwaitingCustomAmount)
	assert.Equal(t, testToken, state.CurrentToken)
}

func TestRetryDataFitsCallbackLimit(t *testing.T) {
	tests := []struct {
		name  string
		typed string
		want  string
	}{
		{"long fraction is cut to lamports", "0.1234567890123456789012345678901234567890123456789012345", buyAmountData("0.123456789")},
		{"below one lamport", "0.0000000001", dataBuyCustom},
		{"too many whole digits", "1" + strings.Repeat("0", 70), dataBuyCustom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.selectToken(t, testToken)
			h.trader.buyErr = &jupiter.AggregatorError{Stage: jupiter.StageQuote, StatusCode: 400, Body: "no route"}

			h.handle(t, callbackUpdate(dataBuyCustom))
			h.handle(t, textUpdate(tt.typed))
			require.Len(t, h.trader.buys, 1)

			data := h.sender.lastKeyboardData()
			assert.Contains(t, data, tt.want)
			for _, d := range data {
				assert.LessOrEqual(t, len(d), maxCallbackData, d)
				_, err := ParseAction(d)
				assert.NoError(t, err, d)
			}
		})
	}
}

func TestBackCancelsCustomAmount(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)

	h.handle(t, callbackUpdate(dataBuyCustom))
	h.handle(t, callbackUpdate(dataBack))

	state, _ := h.sessions.Get(context.Background(), testUser)
	assert.False(t, state.AwaitingCustomAmount)
	assert.Contains(t, h.sender.lastText(), "Welcome back")
}

func TestSellMenuThenPercent(t *testing.T) {
	h := newHarness(t)
	h.trader.positions = []models.Position{
		{TelegramID: testUser, TokenAddress: testToken, Symbol: "BONK", Amount: decimal.NewFromInt(500000)},
	}

	h.handle(t, commandUpdate("sell"))
	assert.Contains(t, h.sender.lastKeyboardData(), sellTokenData(testToken))

	h.handle(t, callbackUpdate(sellTokenData(testToken)))
	state, _ := h.sessions.Get(context.Background(), testUser)
	assert.Equal(t, testToken, state.CurrentToken)
	assert.Contains(t, h.sender.lastKeyboardData(), sellPercentData(25))

	h.handle(t, callbackUpdate(sellPercentData(25)))
	require.Len(t, h.trader.sells, 1)
	assert.Equal(t, 25, h.trader.sells[0].Percent)
	assert.Equal(t, testToken, h.trader.sells[0].TokenAddress)
	assert.Contains(t, h.sender.lastText(), "Sell Successful")
	assert.Contains(t, h.sender.lastText(), "0.25 SOL")
}

func TestSellNoHoldingsOffersRetry(t *testing.T) {
	h := newHarness(t)
	h.selectToken(t, testToken)
	h.trader.sellErr = fmt.Errorf("sell: %w", trading.ErrNoHoldings)

	h.handle(t, callbackUpdate(sellPercentData(100)))

	assert.Contains(t, h.sender.lastText(), "no balance of this token")
	assert.Contains(t, h.sender.lastKeyboardData(), sellPercentData(100))
}

func TestExportKeySendsNewMessage(t *testing.T) {
	h := newHarness(t)
	h.handle(t, callbackUpdate(dataExportKey))

	h.sender.mu.Lock()
	last := h.sender.sent[len(h.sender.sent)-1]
	h.sender.mu.Unlock()
	msg, ok := last.(tgbotapi.MessageConfig)
	require.True(t, ok, "the key is never edited into the menu message")
	assert.Contains(t, msg.Text, h.trader.user.PrivateKey)
}

func TestSetSlippage(t *testing.T) {
	h := newHarness(t)
	h.handle(t, callbackUpdate(slippageData(10)))

	assert.True(t, decimal.NewFromInt(10).Equal(h.trader.slippage))
	assert.Contains(t, h.sender.lastText(), "Slippage:</b> 10%")
	assert.Contains(t, h.sender.lastKeyboardData(), slippageData(25))
}

func TestUnregisteredUserIsSentToStart(t *testing.T) {
	h := newHarness(t)
	update := commandUpdate("wallet")
	update.Message.From.ID = 999

	h.handle(t, update)
	assert.Contains(t, h.sender.lastText(), "/start")
}

func TestTradesView(t *testing.T) {
	h := newHarness(t)
	h.trader.trades = []models.Trade{{
		TelegramID:   testUser,
		TokenAddress: testToken,
		Side:         models.SideBuy,
		AmountIn:     decimal.NewFromInt(1),
		AmountOut:    decimal.NewFromInt(500000),
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
	}}

	h.handle(t, commandUpdate("trades"))
	text := h.sender.lastText()
	assert.Contains(t, text, "BUY")
	assert.Contains(t, text, "2025-01-02 03:04")
}

func TestUnknownCallbackIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.handle(t, callbackUpdate("selltoken_DezXAZ8z"))

	assert.Empty(t, h.sender.texts())
	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	require.Len(t, h.sender.sent, 1)
	ack, ok := h.sender.sent[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "Unknown action", ack.Text)
}

func TestRunHandlesUpdatesUntilChannelCloses(t *testing.T) {
	h := newHarness(t)
	updates := make(chan tgbotapi.Update, 10)
	for i := 0; i < 10; i++ {
		updates <- commandUpdate("help")
	}
	close(updates)

	require.NoError(t, h.bot.Run(context.Background(), updates))
	assert.Len(t, h.sender.texts(), 10, "Run waits for in-flight handlers")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx, make(chan tgbotapi.Update)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHandleUpdateRecoversPanics(t *testing.T) {
	h := newHarness(t)
	h.bot.trader = nil // any trader call panics

	assert.NotPanics(t, func() { h.handle(t, commandUpdate("start")) })
}

func TestParseCustomAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0.5", "0.5", false},
		{"0,5", "0.5", false},
		{" 2 ", "2", false},
		{"0", "", true},
		{"-1", "", true},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCustomAmount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			assert.True(t, errors.Is(err, trading.ErrInvalidAmount), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), tt.in)
	}
}
