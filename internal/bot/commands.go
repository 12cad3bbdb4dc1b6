// internal/bot/commands.go
package bot

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
	"github.com/rovshanmuradov/solsniper-bot/internal/wallet"
)

const (
	CommandBuy  = "buy"
	CommandSell = "sell"
)

// TradingCommand представляет команду для выполнения торговых операций
type TradingCommand interface {
	GetType() string
	GetUserID() int64
	Validate() error
}

// BuyCommand команда на покупку токена за SOL. Result is filled by the handler.
type BuyCommand struct {
	TelegramID int64           `json:"telegram_id"`
	TokenMint  string          `json:"token_mint"`
	AmountSOL  decimal.Decimal `json:"amount_sol"`

	Result *trading.TradeResult `json:"-"`
}

func (c *BuyCommand) GetType() string  { return CommandBuy }
func (c *BuyCommand) GetUserID() int64 { return c.TelegramID }

func (c *BuyCommand) Validate() error {
	if c.TelegramID == 0 {
		return fmt.Errorf("telegram_id cannot be empty")
	}
	if !wallet.LooksLikeAddress(c.TokenMint) {
		return fmt.Errorf("%w: %q", trading.ErrInvalidAddress, c.TokenMint)
	}
	if !c.AmountSOL.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", trading.ErrInvalidAmount, c.AmountSOL)
	}
	return nil
}

// SellCommand команда для продажи процента позиции
type SellCommand struct {
	TelegramID int64  `json:"telegram_id"`
	TokenMint  string `json:"token_mint"`
	Percent    int    `json:"percent"`

	Result *trading.TradeResult `json:"-"`
}

func (c *SellCommand) GetType() string  { return CommandSell }
func (c *SellCommand) GetUserID() int64 { return c.TelegramID }

func (c *SellCommand) Validate() error {
	if c.TelegramID == 0 {
		return fmt.Errorf("telegram_id cannot be empty")
	}
	if !wallet.LooksLikeAddress(c.TokenMint) {
		return fmt.Errorf("%w: %q", trading.ErrInvalidAddress, c.TokenMint)
	}
	if c.Percent < 1 || c.Percent > 100 {
		return fmt.Errorf("%w: percent must be between 1 and 100, got %d", trading.ErrInvalidAmount, c.Percent)
	}
	return nil
}

// CommandHandler интерфейс для обработчиков команд
type CommandHandler interface {
	Handle(ctx context.Context, cmd TradingCommand) error
	CanHandle(cmd TradingCommand) bool
}

// TradeCommandHandler выполняет BuyCommand и SellCommand через Trader
type TradeCommandHandler struct {
	trader Trader
}

func NewTradeCommandHandler(trader Trader) *TradeCommandHandler {
	return &TradeCommandHandler{trader: trader}
}

func (h *TradeCommandHandler) CanHandle(cmd TradingCommand) bool {
	switch cmd.(type) {
	case *BuyCommand, *SellCommand:
		return true
	default:
		return false
	}
}

func (h *TradeCommandHandler) Handle(ctx context.Context, cmd TradingCommand) error {
	var err error
	switch c := cmd.(type) {
	case *BuyCommand:
		c.Result, err = h.trader.Buy(ctx, trading.BuyRequest{
			TelegramID:   c.TelegramID,
			TokenAddress: c.TokenMint,
			AmountSOL:    c.AmountSOL,
		})
	case *SellCommand:
		c.Result, err = h.trader.Sell(ctx, trading.SellRequest{
			TelegramID:   c.TelegramID,
			TokenAddress: c.TokenMint,
			Percent:      c.Percent,
		})
	default:
		err = fmt.Errorf("unsupported command type: %s", cmd.GetType())
	}
	return err
}

// CommandBus шина для обработки команд
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewCommandBus создает новую шину команд
func NewCommandBus(logger *zap.Logger) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		logger:   logger.Named("command_bus"),
	}
}

// RegisterHandler регистрирует обработчик для типа команды
func (bus *CommandBus) RegisterHandler(cmdType TradingCommand, handler CommandHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[reflect.TypeOf(cmdType)] = handler

	bus.logger.Debug("Command handler registered",
		zap.String("command_type", cmdType.GetType()),
		zap.String("handler", reflect.TypeOf(handler).String()))
}

// Send валидирует команду и передает ее обработчику
func (bus *CommandBus) Send(ctx context.Context, cmd TradingCommand) error {
	log := bus.logger.With(
		zap.String("command_type", cmd.GetType()),
		zap.Int64("user_id", cmd.GetUserID()))

	if err := cmd.Validate(); err != nil {
		log.Debug("Command validation failed", zap.Error(err))
		return fmt.Errorf("command validation failed: %w", err)
	}

	bus.mu.RLock()
	handler, exists := bus.handlers[reflect.TypeOf(cmd)]
	bus.mu.RUnlock()

	if !exists || !handler.CanHandle(cmd) {
		log.Error("No handler for command")
		return fmt.Errorf("no handler registered for command type: %s", cmd.GetType())
	}

	log.Info("Executing command")
	if err := handler.Handle(ctx, cmd); err != nil {
		// Trading service already logged the failure with its stage.
		log.Debug("Command execution failed", zap.Error(err))
		return fmt.Errorf("command execution failed: %w", err)
	}

	log.Info("Command executed successfully")
	return nil
}

// GetRegisteredHandlers возвращает список зарегистрированных обработчиков
func (bus *CommandBus) GetRegisteredHandlers() []string {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	handlers := make([]string, 0, len(bus.handlers))
	for cmdType := range bus.handlers {
		var cmd TradingCommand
		if cmdType.Kind() == reflect.Ptr {
			cmd = reflect.New(cmdType.Elem()).Interface().(TradingCommand)
		} else {
			cmd = reflect.New(cmdType).Elem().Interface().(TradingCommand)
		}
		handlers = append(handlers, cmd.GetType())
	}
	return handlers
}
