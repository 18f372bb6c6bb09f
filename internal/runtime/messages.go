package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

const (
	stopToolUse = "tool_use"

	// messagesMaxTokens is sent with every messages request; the API requires it.
	messagesMaxTokens = 16384
)

type messagesDialect struct{}

func (messagesDialect) kind() domain.Dialect { return domain.DialectMessages }

type messagesRequest struct {
	baseRequest
	MaxTokens int `json:"max_tokens"`
}

func (messagesDialect) request(r *run) any {
	return messagesRequest{baseRequest: newBaseRequest(r), MaxTokens: messagesMaxTokens}
}

type messagesResponse struct {
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type assistantMessage struct {
	Role    string            `json:"role"`
	Content []json.RawMessage `json:"content"`
}

func (messagesDialect) decode(body []byte, step int) (*turn, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ProtocolError{Step: step, Reason: fmt.Sprintf("undecodable response: %v", err)}
	}

	t := &turn{
		stopReason: resp.StopReason,
		wantsTools: resp.StopReason == stopToolUse,
		assistant:  assistantMessage{Role: "assistant", Content: resp.Content},
		violation: func(step int) error {
			return &domain.ProtocolError{Step: step, Reason: "tool_use requested without any tool_use block"}
		},
	}
	for _, raw := range resp.Content {
		var b contentBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, &domain.ProtocolError{Step: step, Reason: fmt.Sprintf("undecodable content block: %v", err)}
		}
		if b.Type != stopToolUse {
			continue
		}
		t.calls = append(t.calls, domain.ToolCall{ID: b.ID, Name: b.Name, Arguments: b.Input})
	}
	return t, nil
}

type toolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

type blocksMessage struct {
	Role    string            `json:"role"`
	Content []toolResultBlock `json:"content"`
}

// results folds every tool output of a turn into one user message.
func (messagesDialect) results(rs []toolResult) []any {
	blocks := make([]toolResultBlock, 0, len(rs))
	for _, r := range rs {
		blocks = append(blocks, toolResultBlock{Type: "tool_result", ToolUseID: r.callID, Content: r.content})
	}
	return []any{blocksMessage{Role: "user", Content: blocks}}
}
