// internal/bot/commands_test.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
)

// MockCommandHandler для тестирования
type MockCommandHandler struct {
	handled []TradingCommand
	errors  map[string]error
}

func NewMockCommandHandler() *MockCommandHandler {
	return &MockCommandHandler{
		handled: make([]TradingCommand, 0),
		errors:  make(map[string]error),
	}
}

func (h *MockCommandHandler) Handle(ctx context.Context, cmd TradingCommand) error {
	h.handled = append(h.handled, cmd)
	if err, exists := h.errors[cmd.GetType()]; exists {
		return err
	}
	return nil
}

func (h *MockCommandHandler) CanHandle(cmd TradingCommand) bool {
	return true
}

func (h *MockCommandHandler) SetError(cmdType string, err error) {
	h.errors[cmdType] = err
}

func (h *MockCommandHandler) GetHandledCommands() []TradingCommand {
	return h.handled
}

func validBuy() *BuyCommand {
	return &BuyCommand{TelegramID: testUser, TokenMint: testToken, AmountSOL: decimal.RequireFromString("0.5")}
}

func TestBuyCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *BuyCommand
		wantErr error
	}{
		{name: "valid command", cmd: validBuy()},
		{
			name:    "empty mint",
			cmd:     &BuyCommand{TelegramID: testUser, AmountSOL: decimal.NewFromInt(1)},
			wantErr: trading.ErrInvalidAddress,
		},
		{
			name:    "zero amount",
			cmd:     &BuyCommand{TelegramID: testUser, TokenMint: testToken},
			wantErr: trading.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			cmd:     &BuyCommand{TelegramID: testUser, TokenMint: testToken, AmountSOL: decimal.NewFromInt(-1)},
			wantErr: trading.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("BuyCommand.Validate() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("BuyCommand.Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSellCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *SellCommand
		wantErr bool
	}{
		{name: "valid command", cmd: &SellCommand{TelegramID: testUser, TokenMint: testToken, Percent: 50}},
		{name: "full position", cmd: &SellCommand{TelegramID: testUser, TokenMint: testToken, Percent: 100}},
		{name: "empty token_mint", cmd: &SellCommand{TelegramID: testUser, Percent: 50}, wantErr: true},
		{name: "invalid percentage (too low)", cmd: &SellCommand{TelegramID: testUser, TokenMint: testToken}, wantErr: true},
		{name: "invalid percentage (too high)", cmd: &SellCommand{TelegramID: testUser, TokenMint: testToken, Percent: 150}, wantErr: true},
		{name: "missing user", cmd: &SellCommand{TokenMint: testToken, Percent: 50}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("SellCommand.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandBus_RegisterHandler(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))
	bus.RegisterHandler(&BuyCommand{}, NewMockCommandHandler())

	handlers := bus.GetRegisteredHandlers()
	if len(handlers) != 1 {
		t.Fatalf("Expected 1 registered handler, got %d", len(handlers))
	}
	if handlers[0] != CommandBuy {
		t.Errorf("Expected handler for '%s', got '%s'", CommandBuy, handlers[0])
	}
}

func TestCommandBus_Send_Success(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))
	handler := NewMockCommandHandler()
	bus.RegisterHandler(&BuyCommand{}, handler)

	if err := bus.Send(context.Background(), validBuy()); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	handled := handler.GetHandledCommands()
	if len(handled) != 1 {
		t.Fatalf("Expected 1 handled command, got %d", len(handled))
	}
	if handled[0].GetType() != CommandBuy {
		t.Errorf("Expected '%s' command, got '%s'", CommandBuy, handled[0].GetType())
	}
}

func TestCommandBus_Send_ValidationError(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))
	handler := NewMockCommandHandler()
	bus.RegisterHandler(&SellCommand{}, handler)

	// Процент вне диапазона
	err := bus.Send(context.Background(), &SellCommand{TelegramID: testUser, TokenMint: testToken, Percent: 0})
	if !errors.Is(err, trading.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}

	// Команда НЕ должна дойти до обработчика
	if len(handler.GetHandledCommands()) != 0 {
		t.Errorf("Expected 0 handled commands, got %d", len(handler.GetHandledCommands()))
	}
}

func TestCommandBus_Send_NoHandler(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))

	if err := bus.Send(context.Background(), validBuy()); err == nil {
		t.Error("Expected 'no handler' error, got nil")
	}
}

func TestCommandBus_Send_HandlerError(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))
	handler := NewMockCommandHandler()
	handler.SetError(CommandBuy, fmt.Errorf("wrapped: %w", trading.ErrLedgerUnavailable))
	bus.RegisterHandler(&BuyCommand{}, handler)

	err := bus.Send(context.Background(), validBuy())
	if !errors.Is(err, trading.ErrLedgerUnavailable) {
		t.Errorf("Expected handler error to stay matchable, got %v", err)
	}

	// Команда обработана несмотря на ошибку
	if len(handler.GetHandledCommands()) != 1 {
		t.Errorf("Expected 1 handled command, got %d", len(handler.GetHandledCommands()))
	}
}

func TestTradeCommandHandler_FillsResult(t *testing.T) {
	trader := newFakeTrader(t)
	bus := NewCommandBus(zaptest.NewLogger(t))
	handler := NewTradeCommandHandler(trader)
	bus.RegisterHandler(&BuyCommand{}, handler)
	bus.RegisterHandler(&SellCommand{}, handler)

	buy := validBuy()
	if err := bus.Send(context.Background(), buy); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if buy.Result == nil || !buy.Result.AmountIn.Equal(buy.AmountSOL) {
		t.Errorf("Expected buy result with amount_in %s, got %+v", buy.AmountSOL, buy.Result)
	}

	sell := &SellCommand{TelegramID: testUser, TokenMint: testToken, Percent: 25}
	if err := bus.Send(context.Background(), sell); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sell.Result == nil || len(trader.sells) != 1 || trader.sells[0].Percent != 25 {
		t.Errorf("Expected one sell of 25%%, got %+v", trader.sells)
	}
}
