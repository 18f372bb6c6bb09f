package domain

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolCall is a request from the remote planner to run an external node locally.
// Arguments holds the raw JSON argument object as received on the wire.
type ToolCall struct {
	ID        string          `json:"id" yaml:"id" mapstructure:"id"`
	Name      string          `json:"name" yaml:"name" mapstructure:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"arguments,omitempty" mapstructure:"arguments"`
}

// ToolSchema describes an external node as an invocable tool.
type ToolSchema struct {
	Name        string             `json:"name" yaml:"name" mapstructure:"name"`
	Description string             `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  *jsonschema.Schema `json:"parameters" yaml:"parameters" mapstructure:"parameters"`
}

// Dialect selects the wire format spoken with the remote orchestrator.
type Dialect string

const (
	DialectChatCompletions Dialect = "chat_completions" // flat tool_calls, role=tool results
	DialectMessages        Dialect = "messages"         // tool_use / tool_result content blocks
)
