package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the workflow. Nodes run by the
orchestrator show their remote tool. With --run the nodes dispatched by a
recorded run are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		runID, _ := cmd.Flags().GetString("run")
		return cli.WriteGraph(cmd.Context(), os.Stdout, app, runID)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the nodes dispatched by this recorded run")
}
