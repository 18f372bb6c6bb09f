package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// LogHooks returns hooks that write one log line per lifecycle event.
// Tool inputs and outputs are logged at debug level only.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "run_id", e.RunID, "model", e.Model, "dialect", e.Dialect)
		},
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step",
				"run_id", e.RunID,
				"step", e.Step,
				"stop_reason", e.StopReason,
				"tool_calls", e.ToolCalls,
				"latency", e.Latency,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", "run_id", e.RunID, "tool", e.ToolName, "call_id", e.CallID, "input", e.Input)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			if e.IsError {
				logger.WarnContext(ctx, "tool_return", "run_id", e.RunID, "tool", e.ToolName, "call_id", e.CallID, "error", e.Output)
				return
			}
			logger.DebugContext(ctx, "tool_return", "run_id", e.RunID, "tool", e.ToolName, "call_id", e.CallID, "output", e.Output)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "run_end", "run_id", e.RunID, "status", e.Status, "steps", e.Steps, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_end", "run_id", e.RunID, "status", e.Status, "steps", e.Steps)
		},
	}
}
