package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/control"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	t.Chdir(t.TempDir())
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadSettings_FlagsOverride(t *testing.T) {
	t.Setenv("LATTICE_MODEL", "from-env")
	cmd := newTestCommand(t, "--workflow", "flow.yaml", "--provider", "anthropic", "--max-steps", "4")

	s, err := loadSettings(cmd)
	require.NoError(t, err)

	assert.Equal(t, "flow.yaml", s.Workflow)
	assert.Equal(t, control.ProviderAnthropic, s.Provider)
	assert.Equal(t, 4, s.MaxSteps)
	assert.Equal(t, "from-env", s.Model)
}

func TestLoadSettings_BadProvider(t *testing.T) {
	cmd := newTestCommand(t, "--provider", "mistral")
	_, err := loadSettings(cmd)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "compile", "tools", "graph", "validate", "runs", "serve", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
