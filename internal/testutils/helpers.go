package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/ports"
)

// Reply is one scripted answer of a ScriptedTransport.
type Reply struct {
	Body      any
	SessionID string
	Err       error
}

// Sent is a request as the transport observed it, with the body re-decoded.
type Sent struct {
	URL     string
	Headers map[string]string
	Body    map[string]any
	// Deadline is the request context deadline; zero when there is none.
	Deadline time.Time
}

// ScriptedTransport answers requests from a fixed script and records them.
// Running past the end of the script is an error.
type ScriptedTransport struct {
	t       *testing.T
	mu      sync.Mutex
	replies []Reply
	sent    []Sent
}

var _ ports.Transport = (*ScriptedTransport)(nil)

// NewScriptedTransport creates a transport that answers with replies in order.
func NewScriptedTransport(t *testing.T, replies ...Reply) *ScriptedTransport {
	t.Helper()
	return &ScriptedTransport{t: t, replies: replies}
}

func (s *ScriptedTransport) Post(ctx context.Context, req ports.Request) (*ports.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(req.Body)
	require.NoError(s.t, err, "request body must encode")
	var body map[string]any
	require.NoError(s.t, json.Unmarshal(raw, &body))

	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}
	deadline, _ := ctx.Deadline()
	s.sent = append(s.sent, Sent{URL: req.URL, Headers: headers, Body: body, Deadline: deadline})

	idx := len(s.sent) - 1
	if idx >= len(s.replies) {
		return nil, fmt.Errorf("script exhausted at request %d", idx)
	}
	r := s.replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	out, err := json.Marshal(r.Body)
	require.NoError(s.t, err, "scripted reply must encode")
	return &ports.Response{StatusCode: 200, Body: out, SessionID: r.SessionID}, nil
}

// Sent returns the requests received so far.
func (s *ScriptedTransport) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// ChatToolCall builds an OpenAI-style tool call with JSON-string arguments.
func ChatToolCall(id, name string, args any) map[string]any {
	b, _ := json.Marshal(args)
	return map[string]any{
		"id":       id,
		"type":     "function",
		"function": map[string]any{"name": name, "arguments": string(b)},
	}
}

// ChatToolTurn is a chat completion asking for the given tool calls.
func ChatToolTurn(calls ...map[string]any) map[string]any {
	return map[string]any{
		"choices": []any{map[string]any{
			"finish_reason": "tool_calls",
			"message":       map[string]any{"role": "assistant", "content": nil, "tool_calls": calls},
		}},
	}
}

// ChatStopTurn is a chat completion that ends the run.
func ChatStopTurn(content string) map[string]any {
	return map[string]any{
		"choices": []any{map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

// ToolUseBlock builds a messages tool_use content block.
func ToolUseBlock(id, name string, input any) map[string]any {
	return map[string]any{"type": "tool_use", "id": id, "name": name, "input": input}
}

// MessagesTurn is a messages response with the given stop reason and blocks.
func MessagesTurn(stopReason string, blocks ...map[string]any) map[string]any {
	content := make([]any, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, b)
	}
	return map[string]any{"role": "assistant", "stop_reason": stopReason, "content": content}
}
