// internal/trading/events.go
package trading

import (
	"reflect"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

const (
	EventUserRegistered = "user_registered"
	EventTradeExecuted  = "trade_executed"
	EventTradeFailed    = "trade_failed"
)

// TradingEvent представляет событие в торговой системе
type TradingEvent interface {
	GetType() string
	GetTimestamp() time.Time
	GetUserID() int64
}

// UserRegisteredEvent событие создания кошелька для нового пользователя
type UserRegisteredEvent struct {
	TelegramID    int64     `json:"telegram_id"`
	WalletAddress string    `json:"wallet_address"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e UserRegisteredEvent) GetType() string         { return EventUserRegistered }
func (e UserRegisteredEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e UserRegisteredEvent) GetUserID() int64        { return e.TelegramID }

// TradeExecutedEvent событие успешной сделки
type TradeExecutedEvent struct {
	TelegramID  int64            `json:"telegram_id"`
	Side        models.TradeSide `json:"side"`
	TokenMint   string           `json:"token_mint"`
	AmountIn    decimal.Decimal  `json:"amount_in"`
	AmountOut   decimal.Decimal  `json:"amount_out"`
	TxSignature string           `json:"tx_signature"`
	Recorded    bool             `json:"recorded"`
	Timestamp   time.Time        `json:"timestamp"`
}

func (e TradeExecutedEvent) GetType() string         { return EventTradeExecuted }
func (e TradeExecutedEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e TradeExecutedEvent) GetUserID() int64        { return e.TelegramID }

// TradeFailedEvent событие неудачной сделки
type TradeFailedEvent struct {
	TelegramID int64            `json:"telegram_id"`
	Side       models.TradeSide `json:"side"`
	TokenMint  string           `json:"token_mint"`
	Stage      string           `json:"stage"`
	Error      string           `json:"error"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (e TradeFailedEvent) GetType() string         { return EventTradeFailed }
func (e TradeFailedEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e TradeFailedEvent) GetUserID() int64        { return e.TelegramID }

// EventHandler интерфейс для обработчиков событий
type EventHandler interface {
	Handle(event TradingEvent) error
	CanHandle(event TradingEvent) bool
}

// EventSubscriber интерфейс для подписчиков на события
type EventSubscriber interface {
	OnEvent(event TradingEvent)
	GetSubscribedEventTypes() []string
}

// EventBus шина событий. Обработчики и подписчики вызываются асинхронно.
type EventBus struct {
	handlers    map[reflect.Type][]EventHandler
	subscribers map[string][]EventSubscriber // event_type -> subscribers
	logger      *zap.Logger
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewEventBus создает новую шину событий
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[reflect.Type][]EventHandler),
		subscribers: make(map[string][]EventSubscriber),
		logger:      logger.Named("event_bus"),
	}
}

// RegisterHandler регистрирует обработчик для типа события
func (bus *EventBus) RegisterHandler(eventType TradingEvent, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	eventReflectType := reflect.TypeOf(eventType)
	bus.handlers[eventReflectType] = append(bus.handlers[eventReflectType], handler)

	bus.logger.Debug("Event handler registered",
		zap.String("event_type", eventType.GetType()),
		zap.String("handler", reflect.TypeOf(handler).String()))
}

// Subscribe подписывает подписчика на события
func (bus *EventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for _, eventType := range subscriber.GetSubscribedEventTypes() {
		bus.subscribers[eventType] = append(bus.subscribers[eventType], subscriber)
		bus.logger.Debug("Subscriber registered",
			zap.String("event_type", eventType),
			zap.String("subscriber", reflect.TypeOf(subscriber).String()))
	}
}

// Publish публикует событие. Безопасно вызывать на nil шине.
func (bus *EventBus) Publish(event TradingEvent) {
	if bus == nil {
		return
	}

	bus.mu.RLock()
	handlers := bus.handlers[reflect.TypeOf(event)]
	subscribers := bus.subscribers[event.GetType()]
	bus.mu.RUnlock()

	bus.logger.Debug("Publishing event",
		zap.String("event_type", event.GetType()),
		zap.Int64("user_id", event.GetUserID()),
		zap.Int("handlers", len(handlers)),
		zap.Int("subscribers", len(subscribers)))

	for _, handler := range handlers {
		if !handler.CanHandle(event) {
			continue
		}
		bus.wg.Add(1)
		go func(h EventHandler) {
			defer bus.wg.Done()
			if err := h.Handle(event); err != nil {
				bus.logger.Error("Event handler failed",
					zap.String("event_type", event.GetType()),
					zap.String("handler", reflect.TypeOf(h).String()),
					zap.Error(err))
			}
		}(handler)
	}

	for _, subscriber := range subscribers {
		bus.wg.Add(1)
		go func(s EventSubscriber) {
			defer bus.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					bus.logger.Error("Event subscriber panic",
						zap.String("event_type", event.GetType()),
						zap.String("subscriber", reflect.TypeOf(s).String()),
						zap.Any("panic", r))
				}
			}()
			s.OnEvent(event)
		}(subscriber)
	}
}

// Wait blocks until every delivery started so far has returned.
func (bus *EventBus) Wait() {
	bus.wg.Wait()
}

// GetSubscriberCount возвращает количество подписчиков для типа события
func (bus *EventBus) GetSubscriberCount(eventType string) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscribers[eventType])
}

// GetHandlerCount возвращает количество обработчиков для типа события
func (bus *EventBus) GetHandlerCount(eventType TradingEvent) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.handlers[reflect.TypeOf(eventType)])
}
