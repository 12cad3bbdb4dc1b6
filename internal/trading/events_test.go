// internal/trading/events_test.go
package trading

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

// MockEventHandler для тестирования
type MockEventHandler struct {
	handled []TradingEvent
	err     error
	mu      sync.Mutex
}

func (h *MockEventHandler) Handle(event TradingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *MockEventHandler) CanHandle(event TradingEvent) bool {
	return true
}

func (h *MockEventHandler) GetHandledEvents() []TradingEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TradingEvent(nil), h.handled...)
}

// MockEventSubscriber для тестирования
type MockEventSubscriber struct {
	received []TradingEvent
	types    []string
	panics   bool
	mu       sync.Mutex
}

func (s *MockEventSubscriber) OnEvent(event TradingEvent) {
	s.mu.Lock()
	s.received = append(s.received, event)
	s.mu.Unlock()
	if s.panics {
		panic("subscriber exploded")
	}
}

func (s *MockEventSubscriber) GetSubscribedEventTypes() []string {
	return s.types
}

func (s *MockEventSubscriber) GetReceivedEvents() []TradingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TradingEvent(nil), s.received...)
}

func executedEvent() TradeExecutedEvent {
	return TradeExecutedEvent{
		TelegramID:  42,
		Side:        models.SideBuy,
		TokenMint:   testMint,
		AmountIn:    decimal.NewFromInt(1),
		AmountOut:   decimal.NewFromInt(500000),
		TxSignature: "sig",
		Recorded:    true,
		Timestamp:   time.Now(),
	}
}

func TestEventMethods(t *testing.T) {
	timestamp := time.Now()
	events := []struct {
		event    TradingEvent
		wantType string
	}{
		{UserRegisteredEvent{TelegramID: 42, Timestamp: timestamp}, EventUserRegistered},
		{TradeExecutedEvent{TelegramID: 42, Timestamp: timestamp}, EventTradeExecuted},
		{TradeFailedEvent{TelegramID: 42, Timestamp: timestamp}, EventTradeFailed},
	}

	for _, tt := range events {
		if tt.event.GetType() != tt.wantType {
			t.Errorf("Expected type '%s', got '%s'", tt.wantType, tt.event.GetType())
		}
		if tt.event.GetUserID() != 42 {
			t.Errorf("Expected user_id 42, got %d", tt.event.GetUserID())
		}
		if !tt.event.GetTimestamp().Equal(timestamp) {
			t.Errorf("Expected timestamp %v, got %v", timestamp, tt.event.GetTimestamp())
		}
	}
}

func TestEventBus_RegisterHandler(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	bus.RegisterHandler(TradeExecutedEvent{}, &MockEventHandler{})

	if count := bus.GetHandlerCount(TradeExecutedEvent{}); count != 1 {
		t.Errorf("Expected 1 registered handler, got %d", count)
	}
	if count := bus.GetHandlerCount(TradeFailedEvent{}); count != 0 {
		t.Errorf("Expected no handlers for trade_failed, got %d", count)
	}
}

func TestEventBus_PublishHandlerError(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	handler := &MockEventHandler{err: errors.New("handler failed")}
	bus.RegisterHandler(TradeExecutedEvent{}, handler)

	bus.Publish(executedEvent())
	bus.Wait()

	handled := handler.GetHandledEvents()
	if len(handled) != 1 {
		t.Fatalf("Expected 1 handled event, got %d", len(handled))
	}
	if handled[0].GetType() != EventTradeExecuted {
		t.Errorf("Expected '%s' event, got '%s'", EventTradeExecuted, handled[0].GetType())
	}
}

func TestEventBus_PublishMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	subscriber1 := &MockEventSubscriber{types: []string{EventTradeExecuted}}
	subscriber2 := &MockEventSubscriber{types: []string{EventTradeExecuted, EventTradeFailed}}
	bus.Subscribe(subscriber1)
	bus.Subscribe(subscriber2)

	bus.Publish(executedEvent())
	bus.Publish(TradeFailedEvent{TelegramID: 42, Stage: string(jupiter.StageQuote), Timestamp: time.Now()})
	bus.Wait()

	if got := len(subscriber1.GetReceivedEvents()); got != 1 {
		t.Errorf("Expected 1 received event for subscriber1, got %d", got)
	}
	if got := len(subscriber2.GetReceivedEvents()); got != 2 {
		t.Errorf("Expected 2 received events for subscriber2, got %d", got)
	}
}

func TestEventBus_SubscriberPanicIsRecovered(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	bad := &MockEventSubscriber{types: []string{EventTradeExecuted}, panics: true}
	good := &MockEventSubscriber{types: []string{EventTradeExecuted}}
	bus.Subscribe(bad)
	bus.Subscribe(good)

	bus.Publish(executedEvent())
	bus.Wait()

	if got := len(good.GetReceivedEvents()); got != 1 {
		t.Errorf("Expected healthy subscriber to receive the event, got %d", got)
	}
}

func TestEventBus_NilBusIsNoop(t *testing.T) {
	var bus *EventBus
	bus.Publish(executedEvent())
}

func TestFailureStage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&jupiter.AggregatorError{Stage: jupiter.StageBuild}, "build"},
		{&InsufficientFundsError{}, StageBalance},
		{ErrNoHoldings, StageBalance},
		{ErrLedgerUnavailable, StageBalance},
		{ErrInvalidAmount, StageValidate},
		{errors.New("sign swap transaction: bad"), StageSign},
	}
	for _, tt := range tests {
		if got := FailureStage(tt.err); got != tt.want {
			t.Errorf("FailureStage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
