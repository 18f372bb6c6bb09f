package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice compiles workflow graphs and runs them against a remote orchestrator",
	Long: `Lattice turns a workflow graph into a program for a dual-planner orchestrator,
executes the nodes the orchestrator asks for on this machine and returns the
final state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Settings file (default: ./"+cli.DefaultConfigFile+" when present)")
	flags.StringP("workflow", "w", "", "Workflow file (YAML or JSON)")
	flags.String("tools", "", "Shared tools file (default: tools.yaml)")
	flags.StringP("model", "m", "", "Model identifier passed to the orchestrator")
	flags.String("provider", "", "LLM provider: openai, openrouter, anthropic or sequrity_azure")
	flags.Int("max-steps", 0, "Step budget of a run")
	flags.String("log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	flags.String("log-format", "text", "Log format: text or json")
}

// loadSettings reads the settings file and environment, then applies the
// flags that were set explicitly.
func loadSettings(cmd *cobra.Command) (cli.Settings, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	s, err := cli.LoadSettings(path)
	if err != nil {
		return s, err
	}

	if flags.Changed("workflow") {
		s.Workflow, _ = flags.GetString("workflow")
	}
	if flags.Changed("tools") {
		s.Tools, _ = flags.GetString("tools")
	}
	if flags.Changed("model") {
		s.Model, _ = flags.GetString("model")
	}
	if flags.Changed("max-steps") {
		s.MaxSteps, _ = flags.GetInt("max-steps")
	}
	if flags.Changed("provider") {
		raw, _ := flags.GetString("provider")
		if s.Provider, err = cli.ParseProvider(raw); err != nil {
			return s, err
		}
	}
	return s, nil
}

// openApp loads settings and builds the workflow engine for cmd.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger, err := cli.CreateLogger(level, format)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(s, logger)
}
