package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Print the program synthesized from the workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.WriteProgram(os.Stdout, app)
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}
