package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestWriteProgramAndTools(t *testing.T) {
	requireShell(t)
	app, err := NewApp(digestSettings(t), nil)
	require.NoError(t, err)

	var prog bytes.Buffer
	require.NoError(t, WriteProgram(&prog, app))
	assert.Contains(t, prog.String(), "fetch(")
	assert.Contains(t, prog.String(), "send_email(")

	var tools bytes.Buffer
	require.NoError(t, WriteTools(&tools, app, domain.DialectMessages))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(tools.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "fetch", decoded[0]["name"])
	assert.Equal(t, "Fetch recent posts", decoded[0]["description"])
	assert.Contains(t, decoded[0], "input_schema")
}

func TestWriteGraph(t *testing.T) {
	requireShell(t)
	app, err := NewApp(digestSettings(t), nil, lattice.WithTransport(fetchScript(t)))
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, WriteGraph(context.Background(), &plain, app, ""))
	assert.True(t, strings.HasPrefix(plain.String(), "graph TD"))
	assert.Contains(t, plain.String(), "send_email")
	assert.NotContains(t, plain.String(), "classDef visited")

	res, err := app.Run(context.Background(), ports.RunRequest{})
	require.NoError(t, err)

	var overlay bytes.Buffer
	require.NoError(t, WriteGraph(context.Background(), &overlay, app, res.RunID))
	assert.Contains(t, overlay.String(), "classDef visited")

	err = WriteGraph(context.Background(), &overlay, app, "missing")
	assert.True(t, errors.Is(err, domain.ErrRunNotFound))
}

func TestValidate(t *testing.T) {
	requireShell(t)

	t.Run("valid workflow", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Validate(&out, digestSettings(t), true))
		assert.Contains(t, out.String(), "Workflow 'digest' is valid (2 nodes).")
	})

	cyclic := `
name: retry
entry: attempt
tools:
  - name: attempt
    command: "true"
  - name: check
    command: "true"
nodes:
  - name: attempt
    next: check
  - name: check
    next: [attempt]
`
	write := func(t *testing.T) Settings {
		path := filepath.Join(t.TempDir(), "retry.yaml")
		require.NoError(t, os.WriteFile(path, []byte(cyclic), 0o644))
		s := DefaultSettings()
		s.Workflow = path
		return s
	}

	t.Run("cycle is a warning by default", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Validate(&out, write(t), false))
		assert.Contains(t, out.String(), "warning: ")
		assert.Contains(t, out.String(), "closes a cycle")
	})

	t.Run("cycle fails when strict", func(t *testing.T) {
		var out bytes.Buffer
		err := Validate(&out, write(t), true)
		assert.True(t, errors.Is(err, domain.ErrCyclicGraph))
	})
}
