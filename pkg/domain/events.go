package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart   EventType = "run_start"
	EventStep       EventType = "step"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventRunEnd     EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// RunEvent marks the start or the end of a run.
type RunEvent struct {
	EventBase
	Model   string    `json:"model"`
	Dialect Dialect   `json:"dialect"`
	Status  RunStatus `json:"status"`
	Steps   int       `json:"steps"`
	Err     error     `json:"-"`
}

// StepEvent is emitted after every request/response exchange.
type StepEvent struct {
	EventBase
	Step       int           `json:"step"`
	StopReason string        `json:"stop_reason"`
	ToolCalls  int           `json:"tool_calls"`
	Latency    time.Duration `json:"latency"`
}

// ToolEvent represents a local tool execution.
type ToolEvent struct {
	EventBase
	Step     int    `json:"step"`
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Input    any    `json:"input,omitempty"`
	Output   any    `json:"output,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for run observability.
type LifecycleHooks struct {
	OnRunStart   func(context.Context, *RunEvent)
	OnStep       func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunEnd     func(context.Context, *RunEvent)
}

// Combine returns hooks that call every non-nil hook of hs in order.
func Combine(hs ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *RunEvent) {
			for _, h := range hs {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnStep: func(ctx context.Context, e *StepEvent) {
			for _, h := range hs {
				if h.OnStep != nil {
					h.OnStep(ctx, e)
				}
			}
		},
		OnToolCall: func(ctx context.Context, e *ToolEvent) {
			for _, h := range hs {
				if h.OnToolCall != nil {
					h.OnToolCall(ctx, e)
				}
			}
		},
		OnToolReturn: func(ctx context.Context, e *ToolEvent) {
			for _, h := range hs {
				if h.OnToolReturn != nil {
					h.OnToolReturn(ctx, e)
				}
			}
		},
		OnRunEnd: func(ctx context.Context, e *RunEvent) {
			for _, h := range hs {
				if h.OnRunEnd != nil {
					h.OnRunEnd(ctx, e)
				}
			}
		},
	}
}
