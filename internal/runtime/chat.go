package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
)

const finishToolCalls = "tool_calls"

type chatDialect struct{}

func (chatDialect) kind() domain.Dialect { return domain.DialectChatCompletions }

func (chatDialect) request(r *run) any { return newBaseRequest(r) }

type chatResponse struct {
	Choices []struct {
		Message      json.RawMessage `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
}

type chatMessage struct {
	Content   *string `json:"content"`
	ToolCalls []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (chatDialect) decode(body []byte, step int) (*turn, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ProtocolError{Step: step, Reason: fmt.Sprintf("undecodable response: %v", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ProtocolError{Step: step, Reason: "response has no choices"}
	}
	choice := resp.Choices[0]

	var msg chatMessage
	if len(choice.Message) > 0 {
		if err := json.Unmarshal(choice.Message, &msg); err != nil {
			return nil, &domain.ProtocolError{Step: step, Reason: fmt.Sprintf("undecodable message: %v", err)}
		}
	}

	t := &turn{
		stopReason: choice.FinishReason,
		wantsTools: choice.FinishReason == finishToolCalls,
		assistant:  choice.Message,
	}
	for _, tc := range msg.ToolCalls {
		t.calls = append(t.calls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: unquoteArguments(tc.Function.Arguments),
		})
	}
	t.violation = func(step int) error {
		pe := &domain.ProtocolError{Step: step, Reason: "tool_calls requested without any tool call"}
		if msg.Content == nil {
			return pe
		}
		rc := control.ParseResponseContent(*msg.Content)
		if rc.Status == control.ContentSuccess {
			return pe
		}
		pe.Reason = fmt.Sprintf("remote execution reported %s", rc.Status)
		if rc.Error != nil {
			pe.Code = rc.Error.Code
			pe.Message = rc.Error.Message
		}
		return pe
	}
	return t, nil
}

// unquoteArguments accepts arguments either as a JSON-encoded string, as chat
// completions sends them, or as an inline object.
func unquoteArguments(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.RawMessage(s)
	}
	return raw
}

type chatToolMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func (chatDialect) results(rs []toolResult) []any {
	out := make([]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, chatToolMessage{Role: "tool", ToolCallID: r.callID, Content: r.content})
	}
	return out
}
