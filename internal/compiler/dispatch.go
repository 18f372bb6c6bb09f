package compiler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// Dispatch runs the step function named by call.
//
// Arguments that are not a valid JSON object are treated as an empty object. The
// function receives the "state" argument, or an empty state when it is missing or
// not an object. A missing or unknown tool name is a domain.ErrDispatch.
func (c *Compiler) Dispatch(ctx context.Context, call domain.ToolCall) (domain.State, error) {
	if call.Name == "" {
		return nil, fmt.Errorf("%w: tool call %q has no tool name", domain.ErrDispatch, call.ID)
	}

	fn, ok := c.funcs[call.Name]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: no function found for external node %q", domain.ErrDispatch, call.Name)
	}

	state := domain.State{}
	if s, ok := c.decodeArguments(call)[domain.KeyState].(map[string]any); ok {
		state = domain.State(s)
	}

	result, err := fn(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("tool %q failed: %w", call.Name, err)
	}
	return result, nil
}

func (c *Compiler) decodeArguments(call domain.ToolCall) map[string]any {
	if len(call.Arguments) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		c.logger.Debug("Malformed tool arguments, using empty object",
			"tool", call.Name, "call_id", call.ID, "err", err)
		return map[string]any{}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}
