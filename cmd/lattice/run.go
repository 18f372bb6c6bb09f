package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow once",
	Long: `Sends the compiled workflow to the orchestrator and executes the nodes it asks
for until the orchestrator stops. The final state is printed to stdout.

The initial state is inline JSON, @file or - for stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		state, _ := cmd.Flags().GetString("state")
		session, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Execute(ctx, app, cli.RunOptions{
			Settings:  app.Settings,
			State:     state,
			SessionID: session,
			JSON:      jsonMode,
			Quiet:     quiet,
		}, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("state", "s", "", "Initial state: JSON object, @file or -")
	runCmd.Flags().String("session", "", "Resume an existing orchestrator session")
	runCmd.Flags().Bool("json", false, "Print the run result as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Print only the final state")
}
