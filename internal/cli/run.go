package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/lattice/pkg/ports"
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	Settings  Settings
	State     string // inline JSON, @file or "-"
	SessionID string
	JSON      bool
	Quiet     bool
}

// Execute runs the workflow once and prints the final state to out.
func Execute(ctx context.Context, app *App, opts RunOptions, in io.Reader, out io.Writer) error {
	initial, err := ParseInitialState(opts.State, in)
	if err != nil {
		return err
	}

	res, err := app.Run(ctx, ports.RunRequest{
		Model:        opts.Settings.Model,
		InitialState: initial,
		MaxSteps:     opts.Settings.MaxSteps,
		SessionID:    opts.SessionID,
	})
	if err != nil {
		return handleExecutionError(out, err)
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if !opts.Quiet {
		printSystemMessage(out, "Run %s finished in %d steps.", res.RunID, res.Steps)
		if res.SessionID != "" {
			printSystemMessage(out, "Session '%s' active.", res.SessionID)
		}
	}
	state, err := json.MarshalIndent(res.State, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render final state: %w", err)
	}
	_, err = fmt.Fprintln(out, string(state))
	return err
}
