package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// dialect adapts the loop to one wire protocol.
type dialect interface {
	kind() domain.Dialect
	// request builds the body of the next request from the run history.
	request(r *run) any
	// decode turns a raw response into a turn.
	decode(body []byte, step int) (*turn, error)
	// results renders the tool outputs of one turn as history messages.
	results(rs []toolResult) []any
}

func dialectFor(d domain.Dialect) dialect {
	if d == domain.DialectMessages {
		return messagesDialect{}
	}
	return chatDialect{}
}

// turn is one decoded response.
type turn struct {
	stopReason string
	wantsTools bool
	calls      []domain.ToolCall
	// assistant is appended to the history verbatim before tool results.
	assistant any
	// violation builds the error for a tool request that carries no calls.
	violation func(step int) error
}

type toolResult struct {
	callID  string
	content string
}

type userMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// baseRequest holds the fields both dialects send.
type baseRequest struct {
	Messages            []any                           `json:"messages"`
	Model               string                          `json:"model"`
	Tools               []any                           `json:"tools,omitempty"`
	UserProvidedProgram string                          `json:"user_provided_program"`
	ContextVars         map[string]domain.ValueWithMeta `json:"context_vars"`
}

func newBaseRequest(r *run) baseRequest {
	return baseRequest{
		Messages:            r.messages,
		Model:               r.model,
		Tools:               r.tools,
		UserProvidedProgram: r.program,
		ContextVars:         r.ctxVars,
	}
}

// jsonString encodes v for the model. Values JSON cannot represent fall back to
// their printed form.
func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(v))
	}
	return string(b)
}
