package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
)

const triageYAML = `
name: triage
entry: classify
tools:
  - name: classify
    command: sh
    args: ["-c", "echo '{\"urgent\": true}'"]
    description: Classify the ticket
  - name: router
    command: echo
    args: [escalate]
  - name: page
    command: sh
    args: ["-c", "cat marker.txt"]
nodes:
  - name: classify
    branch:
      name: route
      tool: router
      targets: [escalate, archive]
  - name: escalate
    tool: page
    next: end
  - name: archive
    internal: archive_mail
    next: [end]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWorkflow(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "triage.yaml", triageYAML)
	writeFile(t, dir, "marker.txt", `{"paged": true}`)

	wf, err := LoadWorkflow(path, nil)
	require.NoError(t, err)

	g := wf.Graph
	assert.Equal(t, "triage", g.Name)
	assert.Equal(t, map[string]string{"archive": "archive_mail"}, wf.Internal)
	assert.Equal(t, []string{"classify", "escalate", "archive"}, wf.Functions.Names())
	assert.Equal(t, []string{"classify"}, g.Successors(domain.Start))
	assert.Equal(t, []string{domain.End}, g.Successors("archive"))

	classify, ok := g.Node("classify")
	require.True(t, ok)
	assert.Equal(t, "Classify the ticket", classify.Description)

	out, err := classify.Func(context.Background(), domain.State{})
	require.NoError(t, err)
	assert.Equal(t, domain.State{"urgent": true}, out)

	br, ok := g.BranchOf("classify")
	require.True(t, ok)
	assert.Equal(t, "route", br.Name)
	next, err := br.Decide(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "escalate", next)

	// Commands run next to the workflow file.
	escalate, _ := g.Node("escalate")
	out, err = escalate.Func(context.Background(), domain.State{})
	require.NoError(t, err)
	assert.Equal(t, true, out["paged"])

	archive, _ := g.Node("archive")
	_, err = archive.Func(context.Background(), domain.State{})
	assert.ErrorIs(t, err, domain.ErrDispatch)
}

func TestLoadWorkflow_JSONAndSharedTools(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "flow.json", `{
		"entry": "only",
		"nodes": [{"name": "only", "tool": "shared", "next": "end"}]
	}`)

	wf, err := LoadWorkflow(path, map[string]ProcessConfig{"shared": {Name: "shared", Command: "true"}})
	require.NoError(t, err)
	assert.Equal(t, "flow", wf.Graph.Name)
	assert.Contains(t, wf.Processes, "shared")
}

func TestLoadWorkflow_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadWorkflow(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorContains(t, err, "not found")

	path := writeFile(t, dir, "unknown.yaml", "entry: a\nnodes:\n  - name: a\n    tool: nope\n")
	_, err = LoadWorkflow(path, nil)
	assert.ErrorContains(t, err, "not registered")

	path = writeFile(t, dir, "dangling.yaml", "entry: a\ntools:\n  - {name: a, command: \"true\"}\nnodes:\n  - name: a\n    next: ghost\n")
	_, err = LoadWorkflow(path, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidGraph)

	path = writeFile(t, dir, "bad.yaml", "nodes: {")
	_, err = LoadWorkflow(path, nil)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tools.yaml", "tools:\n  - name: a\n    command: echo\n  - command: nameless\n")

	tools, err := LoadTools(path)
	require.NoError(t, err)
	assert.Len(t, tools, 1)
	assert.Equal(t, "echo", tools["a"].Command)

	tools, err = LoadTools(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tools)
}
