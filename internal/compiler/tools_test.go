package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
)

const stateParams = `{"type":"object","properties":{"state":{"type":"object","description":"Current state dict"}},"required":["state"]}`

func TestTools_ChatCompletionsShape(t *testing.T) {
	b := dsl.New("g")
	b.Entry("fetch")
	b.Add("fetch", returning(nil)).Describe("Fetch the latest posts").Go("send")
	b.Add("send", returning(nil)).Terminal()
	g, err := b.Build()
	require.NoError(t, err)

	c, err := New(g)
	require.NoError(t, err)

	raw, err := json.Marshal(c.Tools(domain.DialectChatCompletions))
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"type":"function","function":{"name":"fetch","description":"Fetch the latest posts","parameters":`+stateParams+`}},
		{"type":"function","function":{"name":"send","description":"Execute node: send","parameters":`+stateParams+`}}
	]`, string(raw))
}

func TestTools_MessagesShape(t *testing.T) {
	c, err := New(linearGraph(t))
	require.NoError(t, err)

	raw, err := json.Marshal(c.Tools(domain.DialectMessages))
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"name":"fetch","description":"Execute node: fetch","input_schema":`+stateParams+`},
		{"name":"send","description":"Execute node: send","input_schema":`+stateParams+`}
	]`, string(raw))
}

func TestTools_InternalNodesAreNotTools(t *testing.T) {
	c, err := New(linearGraph(t), WithInternalNodes(map[string]string{"fetch": "parse_with_ai"}))
	require.NoError(t, err)

	schemas := c.ToolSchemas()
	require.Len(t, schemas, 1)
	assert.Equal(t, "send", schemas[0].Name)
}

func TestTools_ByteIdenticalAcrossCalls(t *testing.T) {
	c, err := New(linearGraph(t))
	require.NoError(t, err)

	first, err := json.Marshal(c.Tools(domain.DialectChatCompletions))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(c.Tools(domain.DialectChatCompletions))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestTools_EmptyWhenAllInternal(t *testing.T) {
	c, err := New(linearGraph(t), WithInternalNodes(map[string]string{"fetch": "a", "send": "b"}))
	require.NoError(t, err)
	assert.Empty(t, c.Tools(domain.DialectMessages))
}
