package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/pkg/domain"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool definitions sent to the orchestrator",
	Long: `Prints the definitions of the nodes executed locally, in the wire format of the
selected dialect. Without --dialect the provider decides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		d := app.Settings.Provider.Dialect()
		raw, _ := cmd.Flags().GetString("dialect")
		switch raw {
		case "":
		case "chat", string(domain.DialectChatCompletions):
			d = domain.DialectChatCompletions
		case string(domain.DialectMessages):
			d = domain.DialectMessages
		default:
			return fmt.Errorf("unknown dialect %q (use chat or messages)", raw)
		}
		return cli.WriteTools(os.Stdout, app, d)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().String("dialect", "", "Wire dialect: chat or messages")
}
