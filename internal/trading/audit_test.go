// internal/trading/audit_test.go
package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

func TestFailureAuditThroughEventBus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := NewEventBus(zaptest.NewLogger(t))
	bus.RegisterHandler(TradeFailedEvent{}, NewFailureAudit(zap.New(core)))
	require.Equal(t, 1, bus.GetHandlerCount(TradeFailedEvent{}))

	now := time.Now()
	bus.Publish(TradeFailedEvent{TelegramID: 7, Side: models.SideBuy, Stage: StageValidate, Error: "invalid amount", Timestamp: now})
	bus.Publish(TradeFailedEvent{TelegramID: 7, Side: models.SideSell, Stage: StageBalance, Error: "no token balance", Timestamp: now})
	bus.Publish(TradeFailedEvent{TelegramID: 7, Side: models.SideBuy, Stage: string(jupiter.StageQuote), Error: "route not found", Timestamp: now})
	bus.Publish(TradeFailedEvent{TelegramID: 7, Side: models.SideBuy, Stage: string(jupiter.StageSubmit), Error: "blockhash not found", Timestamp: now})
	bus.Wait()

	entries := logs.FilterLoggerName("trade_audit").All()
	require.Len(t, entries, 2)

	byStage := map[string]observer.LoggedEntry{}
	for _, e := range entries {
		byStage[e.ContextMap()["stage"].(string)] = e
	}
	assert.Equal(t, zapcore.WarnLevel, byStage[string(jupiter.StageQuote)].Level)
	submit := byStage[string(jupiter.StageSubmit)]
	assert.Equal(t, zapcore.ErrorLevel, submit.Level)
	assert.Equal(t, int64(7), submit.ContextMap()["telegram_id"])
	assert.Equal(t, "blockhash not found", submit.ContextMap()["error"])
}

func TestFailureAuditIgnoresOtherEvents(t *testing.T) {
	audit := NewFailureAudit(zaptest.NewLogger(t))
	ev := TradeExecutedEvent{TelegramID: 1, Timestamp: time.Now()}
	assert.False(t, audit.CanHandle(ev))
	assert.Error(t, audit.Handle(ev))
}
