package observability

import (
	"context"

	llmhttp "github.com/jmorrow/prompt-arena/internal/adapter/llm/http"
	"github.com/jmorrow/prompt-arena/internal/usecase/battle"
)

// BattleLogger adapts llmhttp.Logger to the battle.Logger interface.
// This lets the battle engine share the same structured logging
// infrastructure as the LLM HTTP clients.
type BattleLogger struct {
	logger llmhttp.Logger
}

// NewBattleLogger creates a new battle logger adapter.
func NewBattleLogger(logger llmhttp.Logger) battle.Logger {
	return &BattleLogger{logger: logger}
}

// LogInfo logs an informational message with structured fields.
func (l *BattleLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *BattleLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}
