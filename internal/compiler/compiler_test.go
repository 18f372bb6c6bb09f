package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
)

func returning(partial domain.State) domain.NodeFunc {
	return func(_ context.Context, _ domain.State) (domain.State, error) {
		return partial, nil
	}
}

func linearGraph(t *testing.T) *domain.Graph {
	t.Helper()
	b := dsl.New("linear")
	b.Entry("fetch")
	b.Add("fetch", returning(domain.State{"posts": []any{"p1"}})).Go("send")
	b.Add("send", returning(domain.State{"sent": true})).Terminal()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestNew_FailsWithoutStepFunctions(t *testing.T) {
	g := &domain.Graph{
		Name:  "bare",
		Nodes: []domain.Node{{Name: "a"}},
		Edges: []domain.Edge{{Source: domain.Start, Target: "a"}},
	}

	_, err := New(g)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_ExplicitEmptyMapIsAccepted(t *testing.T) {
	c, err := New(&domain.Graph{}, WithNodeFunctions(map[string]domain.NodeFunc{}))
	require.NoError(t, err)
	assert.Empty(t, c.External())
	assert.Empty(t, c.Internal())
}

func TestNew_InvalidGraphIsConfigurationError(t *testing.T) {
	g := &domain.Graph{
		Nodes: []domain.Node{{Name: "a", Func: returning(nil)}},
		Edges: []domain.Edge{{Source: "a", Target: "ghost"}},
	}
	_, err := New(g)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, domain.ErrInvalidGraph)
}

func TestPartition_Invariant(t *testing.T) {
	b := dsl.New("mixed")
	b.Entry("plan")
	b.Add("plan", returning(nil)).Go("fetch")
	b.Add("fetch", returning(nil)).Go("summarize")
	b.Add("summarize", returning(nil)).Go("send")
	b.Add("send", returning(nil)).Terminal()
	g, err := b.Build()
	require.NoError(t, err)

	c, err := New(g, WithInternalNodes(map[string]string{
		"plan":       "parse_with_ai",
		"summarize":  "parse_with_ai",
		"not_a_node": "ignored",
	}))
	require.NoError(t, err)

	internal, external := c.Internal(), c.External()
	assert.Equal(t, []string{"plan", "summarize"}, internal)
	assert.Equal(t, []string{"fetch", "send"}, external)

	all := append(append([]string{}, internal...), external...)
	assert.ElementsMatch(t, []string{"plan", "fetch", "summarize", "send"}, all)
	for _, n := range internal {
		assert.NotContains(t, external, n)
	}
}

func TestPartition_ExplicitMapExtrasSortedAfterGraphOrder(t *testing.T) {
	g := linearGraph(t)
	c, err := New(g, WithNodeFunctions(map[string]domain.NodeFunc{
		"zeta":  returning(nil),
		"send":  returning(nil),
		"alpha": returning(nil),
		"fetch": returning(nil),
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "send", "alpha", "zeta"}, c.External())
}

func TestCompiler_ProgramFrozenAtConstruction(t *testing.T) {
	g := linearGraph(t)
	c, err := New(g)
	require.NoError(t, err)
	before := c.Program()

	g.Nodes = append(g.Nodes, domain.Node{Name: "late", Func: returning(nil)})
	g.Edges[1].Target = "late"

	assert.Equal(t, before, c.Program())
	assert.Equal(t, []string{"fetch", "send"}, c.External())
}
