package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long:  `Lists the runs kept by the configured recorder. Only a Redis recorder outlives the process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ListRuns(cmd.Context(), os.Stdout, app.Recorder)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
