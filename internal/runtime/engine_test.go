package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
)

func newsletter(t *testing.T, calls *atomic.Int32) *compiler.Compiler {
	t.Helper()
	b := dsl.New("newsletter")
	b.Entry("fetch")
	b.Add("fetch", func(_ context.Context, s domain.State) (domain.State, error) {
		calls.Add(1)
		return domain.State{"posts": []any{"p1"}, "seen_topic": s["topic"]}, nil
	}).Go("send")
	b.Add("send", func(_ context.Context, _ domain.State) (domain.State, error) {
		calls.Add(1)
		return domain.State{"sent": true}, nil
	}).Terminal()
	g, err := b.Build()
	require.NoError(t, err)

	c, err := compiler.New(g)
	require.NoError(t, err)
	return c
}

func testConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = "https://control.test"
	return cfg
}

func TestEngine_LinearChatRun(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.ChatToolTurn(testutils.ChatToolCall("c1", "fetch", map[string]any{"state": map[string]any{"topic": "go"}}))},
		testutils.Reply{Body: testutils.ChatToolTurn(testutils.ChatToolCall("c2", "send", map[string]any{"state": map[string]any{}}))},
		testutils.Reply{Body: testutils.ChatStopTurn(`{"status":"success"}`)},
	)
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	res, err := e.Run(context.Background(), domain.State{"topic": "go"}, RunOptions{Model: "gpt-test"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, domain.StatusDone, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, domain.State{
		"topic":      "go",
		"posts":      []any{"p1"},
		"seen_topic": "go",
		"sent":       true,
	}, res.State)

	sent := tr.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "https://control.test/control/lang-graph/v1/chat/completions", sent[0].URL)

	first := sent[0].Body
	assert.Equal(t, "gpt-test", first["model"])
	assert.Equal(t, e.compiler.Program(), first["user_provided_program"])
	assert.Len(t, first["tools"], 2)
	assert.Equal(t, map[string]any{
		"initial_state": map[string]any{
			"value": map[string]any{"topic": "go"},
			"meta":  map[string]any{"producers": []any{}, "consumers": []any{"*"}, "tags": []any{}},
		},
	}, first["context_vars"])
	msgs := first["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{
		"role":    "user",
		"content": `Execute the LangGraph StateGraph with initial_state: {"topic":"go"}.`,
	}, msgs[0])

	// The second request replays the assistant turn and the tool output.
	msgs = sent[1].Body["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	assert.Len(t, assistant["tool_calls"], 1)
	tool := msgs[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "c1", tool["tool_call_id"])
	assert.JSONEq(t, `{"posts":["p1"],"seen_topic":"go"}`, tool["content"].(string))

	assert.Len(t, sent[2].Body["messages"], 5)
}

func TestEngine_StepBudget(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.ChatToolTurn(testutils.ChatToolCall("c1", "fetch", map[string]any{"state": map[string]any{}}))},
	)
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m", MaxSteps: 1})
	assert.ErrorIs(t, err, domain.ErrStepBudgetExceeded)
	assert.Len(t, tr.Sent(), 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEngine_ToolRequestWithoutCallsIsProtocolViolation(t *testing.T) {
	var calls atomic.Int32
	turn := map[string]any{
		"choices": []any{map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role":    "assistant",
				"content": `{"status":"failure","error":{"code":"PolicyViolation","message":"blocked"}}`,
			},
		}},
	}
	tr := testutils.NewScriptedTransport(t, testutils.Reply{Body: turn})
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.ErrorIs(t, err, domain.ErrProtocolViolation)

	var pe *domain.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.Step)
	assert.Equal(t, "PolicyViolation", pe.Code)
	assert.Equal(t, "blocked", pe.Message)
	assert.Zero(t, calls.Load())
}

func TestEngine_ReplaysSessionID(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{
			Body:      testutils.ChatToolTurn(testutils.ChatToolCall("c1", "fetch", map[string]any{"state": map[string]any{}})),
			SessionID: "sess-1",
		},
		testutils.Reply{Body: testutils.ChatStopTurn("done")},
	)
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	res, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", res.SessionID)

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.NotContains(t, sent[0].Headers, control.HeaderSessionID)
	assert.Equal(t, "sess-1", sent[1].Headers[control.HeaderSessionID])
}

func TestEngine_MessagesDialect(t *testing.T) {
	var calls atomic.Int32
	block := testutils.ToolUseBlock("tu1", "fetch", map[string]any{"state": map[string]any{"topic": "rust"}})
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.MessagesTurn("tool_use", map[string]any{"type": "text", "text": "fetching"}, block)},
		testutils.Reply{Body: testutils.MessagesTurn("end_turn")},
	)
	cfg := testConfig()
	cfg.Provider = control.ProviderAnthropic
	e := NewEngine(newsletter(t, &calls), tr, cfg)

	res, err := e.Run(context.Background(), domain.State{"topic": "rust"}, RunOptions{Model: "claude-test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, "rust", res.State["seen_topic"])

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "https://control.test/control/lang-graph/anthropic/v1/messages", sent[0].URL)
	assert.Equal(t, float64(16384), sent[0].Body["max_tokens"])

	tools := sent[0].Body["tools"].([]any)
	require.Len(t, tools, 2)
	assert.Contains(t, tools[0], "input_schema")

	msgs := sent[1].Body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, map[string]any{
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": "fetching"},
			map[string]any{"type": "tool_use", "id": "tu1", "name": "fetch", "input": map[string]any{"state": map[string]any{"topic": "rust"}}},
		},
	}, msgs[1])

	user := msgs[2].(map[string]any)
	assert.Equal(t, "user", user["role"])
	results := user["content"].([]any)
	require.Len(t, results, 1)
	result := results[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "tu1", result["tool_use_id"])
	assert.JSONEq(t, `{"posts":["p1"],"seen_topic":"rust"}`, result["content"].(string))
}

func TestEngine_MessagesToolUseWithoutBlocks(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.MessagesTurn("tool_use", map[string]any{"type": "text", "text": "hm"})},
	)
	cfg := testConfig()
	cfg.Provider = control.ProviderAnthropic
	e := NewEngine(newsletter(t, &calls), tr, cfg)

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)
	assert.Zero(t, calls.Load())
}

func TestEngine_PreflightHeaders(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t, testutils.Reply{Body: testutils.ChatStopTurn("ok")})
	cfg := testConfig()
	cfg.FineGrained = nil
	e := NewEngine(newsletter(t, &calls), tr, cfg)

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.NoError(t, err)

	var fine map[string]any
	require.NoError(t, json.Unmarshal([]byte(tr.Sent()[0].Headers[control.HeaderConfig]), &fine))
	assert.Equal(t, map[string]any{"disable_rllm": true}, fine["fsm"])
	assert.Nil(t, cfg.FineGrained)
}

func TestEngine_PreflightFailuresSendNothing(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() control.Config
	}{
		{"single planner", func() control.Config {
			c := testConfig()
			c.Features = control.SingleLLMFeatures(control.FeatureFlags{})
			return c
		}},
		{"no features", func() control.Config {
			c := testConfig()
			c.Features = nil
			return c
		}},
		{"stripped content", func() control.Config {
			c := testConfig()
			c.FineGrained.ResponseFormat = &control.ResponseFormatOverrides{StripResponseContent: control.Ptr(true)}
			return c
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			tr := testutils.NewScriptedTransport(t)
			e := NewEngine(newsletter(t, &calls), tr, tt.cfg())

			_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Empty(t, tr.Sent())
		})
	}
}

func TestEngine_PerRunConfigOverlay(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t, testutils.Reply{Body: testutils.ChatStopTurn("ok")})
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{
		Model:  "m",
		Config: &control.Config{Provider: control.ProviderOpenRouter},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://control.test/control/lang-graph/openrouter/v1/chat/completions", tr.Sent()[0].URL)
}

func TestEngine_PerRunConfigTurnsFlagOff(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig()
	cfg.FineGrained.ResponseFormat = &control.ResponseFormatOverrides{StripResponseContent: control.Ptr(true)}
	tr := testutils.NewScriptedTransport(t, testutils.Reply{Body: testutils.ChatStopTurn("ok")})
	e := NewEngine(newsletter(t, &calls), tr, cfg)

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{
		Model: "m",
		Config: &control.Config{FineGrained: &control.FineGrainedConfigHeader{
			ResponseFormat: &control.ResponseFormatOverrides{StripResponseContent: control.Ptr(false)},
		}},
	})
	require.NoError(t, err)
	require.Len(t, tr.Sent(), 1)
	assert.Contains(t, tr.Sent()[0].Headers[control.HeaderConfig], `"strip_response_content":false`)
}

func TestEngine_PerRunTimeoutBoundsRequests(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.ChatStopTurn("ok")},
		testutils.Reply{Body: testutils.ChatStopTurn("ok")},
	)
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	_, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.NoError(t, err)

	before := time.Now()
	_, err = e.Run(context.Background(), domain.State{}, RunOptions{
		Model:  "m",
		Config: &control.Config{Timeout: time.Minute},
	})
	require.NoError(t, err)

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.True(t, sent[0].Deadline.IsZero())
	assert.WithinDuration(t, before.Add(time.Minute), sent[1].Deadline, 5*time.Second)
}

func TestEngine_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	tr := testutils.NewScriptedTransport(t)
	e := NewEngine(newsletter(t, &calls), tr, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, domain.State{}, RunOptions{Model: "m"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsFatal(err))
	assert.Empty(t, tr.Sent())
}

func TestEngine_HooksAndRecorder(t *testing.T) {
	var calls atomic.Int32
	var events []domain.EventType
	hooks := domain.LifecycleHooks{
		OnRunStart:   func(_ context.Context, e *domain.RunEvent) { events = append(events, e.Type) },
		OnStep:       func(_ context.Context, e *domain.StepEvent) { events = append(events, e.Type) },
		OnToolCall:   func(_ context.Context, e *domain.ToolEvent) { events = append(events, e.Type) },
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) { events = append(events, e.Type) },
		OnRunEnd:     func(_ context.Context, e *domain.RunEvent) { events = append(events, e.Type) },
	}
	rec := memory.NewRecorder()
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.ChatToolTurn(testutils.ChatToolCall("c1", "fetch", map[string]any{"state": map[string]any{}}))},
		testutils.Reply{Body: testutils.ChatStopTurn("ok")},
	)
	e := NewEngine(newsletter(t, &calls), tr, testConfig(), WithLifecycleHooks(hooks), WithRecorder(rec))

	res, err := e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventRunStart,
		domain.EventStep, domain.EventToolCall, domain.EventToolReturn,
		domain.EventStep,
		domain.EventRunEnd,
	}, events)

	stored, err := rec.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, stored.Status)
	assert.Equal(t, "newsletter", stored.Graph)
	assert.Equal(t, 2, stored.Steps)
	assert.Equal(t, []any{"p1"}, stored.State["posts"])
	assert.Equal(t, []string{"fetch"}, stored.Dispatched)
}

func TestEngine_ToolFailureIsFatal(t *testing.T) {
	b := dsl.New("failing")
	b.Entry("boom")
	b.Add("boom", func(_ context.Context, _ domain.State) (domain.State, error) {
		return nil, errors.New("disk full")
	}).Terminal()
	g, err := b.Build()
	require.NoError(t, err)
	c, err := compiler.New(g)
	require.NoError(t, err)

	rec := memory.NewRecorder()
	tr := testutils.NewScriptedTransport(t,
		testutils.Reply{Body: testutils.ChatToolTurn(testutils.ChatToolCall("c1", "boom", map[string]any{"state": map[string]any{}}))},
	)
	e := NewEngine(c, tr, testConfig(), WithRecorder(rec))

	_, err = e.Run(context.Background(), domain.State{}, RunOptions{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, IsFatal(err))

	ids, err := rec.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	stored, err := rec.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "disk full")
}
