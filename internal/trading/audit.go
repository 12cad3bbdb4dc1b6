// internal/trading/audit.go
package trading

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
)

// FailureAudit пишет в отдельный лог сделки, которые сорвались после
// того, как пользователь прошёл проверки: ошибки агрегатора и подписи.
// Отказы на этапах validate и balance сюда не попадают.
type FailureAudit struct {
	logger *zap.Logger
}

func NewFailureAudit(logger *zap.Logger) *FailureAudit {
	return &FailureAudit{logger: logger.Named("trade_audit")}
}

func (a *FailureAudit) CanHandle(event TradingEvent) bool {
	e, ok := event.(TradeFailedEvent)
	if !ok {
		return false
	}
	return e.Stage != StageValidate && e.Stage != StageBalance
}

func (a *FailureAudit) Handle(event TradingEvent) error {
	e, ok := event.(TradeFailedEvent)
	if !ok {
		return fmt.Errorf("trade audit: unexpected event %s", event.GetType())
	}

	fields := []zap.Field{
		zap.Int64("telegram_id", e.TelegramID),
		zap.String("side", string(e.Side)),
		zap.String("token", e.TokenMint),
		zap.String("stage", e.Stage),
		zap.String("error", e.Error),
		zap.Time("failed_at", e.Timestamp),
	}
	// после submit подпись могла уйти в сеть, исход неизвестен
	if e.Stage == string(jupiter.StageSubmit) {
		a.logger.Error("Trade failed after submission, outcome unknown", fields...)
		return nil
	}
	a.logger.Warn("Trade failed", fields...)
	return nil
}
