package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// WriteProgram prints the synthesized program.
func WriteProgram(w io.Writer, app *App) error {
	_, err := fmt.Fprintln(w, app.Engine.Program())
	return err
}

// WriteTools prints the tool definitions of the given dialect as JSON.
func WriteTools(w io.Writer, app *App, d domain.Dialect) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(app.Engine.Tools(d))
}

// WriteGraph prints a Mermaid flowchart of the workflow. When runID names a
// recorded run its dispatched nodes are highlighted.
func WriteGraph(ctx context.Context, w io.Writer, app *App, runID string) error {
	overlay := &graph.GraphOverlay{Internal: app.Engine.InternalTools()}
	if runID != "" {
		rec, err := app.Recorder.Load(ctx, runID)
		if err != nil {
			return fmt.Errorf("error loading run %s: %w", runID, err)
		}
		overlay.VisitedNodes = rec.Dispatched
	}
	_, err := io.WriteString(w, graph.GenerateMermaid(app.Engine.Graph(), overlay))
	return err
}

// Validate checks the workflow named by s without contacting the orchestrator.
// Warnings are printed; errors, including synthesis failures under the strict
// cycle policy, are returned.
func Validate(w io.Writer, s Settings, strict bool) error {
	wf, err := LoadWorkflow(s)
	if err != nil {
		return err
	}

	report := validator.ValidateGraph(wf.Graph, wf.Internal)
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if err := report.Err(); err != nil {
		return err
	}

	policy := compiler.TruncateCycles
	if strict {
		policy = compiler.RejectCycles
	}
	if _, err := compiler.New(wf.Graph, compiler.WithInternalNodes(wf.Internal), compiler.WithCyclePolicy(policy)); err != nil {
		return err
	}
	printSystemMessage(w, "Workflow '%s' is valid (%d nodes).", wf.Graph.Name, len(wf.Graph.Nodes))
	return nil
}

// ListRuns prints the recorded runs, one per line.
func ListRuns(ctx context.Context, w io.Writer, recorder ports.RunRecorder) error {
	ids, err := recorder.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		rec, err := recorder.Load(ctx, id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d steps\n", rec.RunID, rec.Status, rec.Model, rec.Steps)
	}
	return nil
}
